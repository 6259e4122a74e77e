package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/Hara602/liteDefender/internal/analysis"
	"github.com/Hara602/liteDefender/internal/model"
	"github.com/Hara602/liteDefender/internal/signature"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const DefaultSignaturePath = "signatures/malware_signatures.txt"

// Recorder 接收每一个检测结论 (例如写入历史库)
type Recorder interface {
	Record(ctx context.Context, v model.Verdict) error
}

// Inspector 单文件检测: 先查签名，再查可疑特征
type Inspector struct {
	fs            afero.Fs
	store         *signature.Store
	hasher        *signature.Hasher
	log           *zap.Logger
	signaturePath string
	recorder      Recorder
	now           func() time.Time

	mu         sync.Mutex
	lastResult string
}

type Option func(*Inspector)

// WithSignaturePath Initialize 时加载的签名文件
func WithSignaturePath(path string) Option {
	return func(i *Inspector) { i.signaturePath = path }
}

func WithRecorder(r Recorder) Option {
	return func(i *Inspector) { i.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(i *Inspector) { i.now = now }
}

func New(fsys afero.Fs, store *signature.Store, hasher *signature.Hasher, log *zap.Logger, opts ...Option) *Inspector {
	if log == nil {
		log = zap.NewNop()
	}
	i := &Inspector{
		fs:            fsys,
		store:         store,
		hasher:        hasher,
		log:           log,
		signaturePath: DefaultSignaturePath,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Initialize (重新) 加载签名库，失败时不应继续扫描
func (i *Inspector) Initialize() error {
	i.log.Info("Initializing scanner", zap.String("signatures", i.signaturePath))
	if err := i.store.Load(i.signaturePath); err != nil {
		i.setLastResult("Failed to load signatures: " + i.signaturePath)
		return err
	}
	return nil
}

// Inspect 检测单个普通文件
// 显式传入的路径会跟随符号链接解析
// 每次调用只记录一条摘要日志; 特征命中时在摘要之前另有一条 "Detected malicious pattern"
func (i *Inspector) Inspect(filePath string) (model.Verdict, error) {
	info, err := i.fs.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Verdict{}, i.fail("File not found: "+filePath, fmt.Errorf("%w: %s", ErrNotFound, filePath))
		}
		return model.Verdict{}, i.fail("Failed to access file: "+filePath, fmt.Errorf("%w: %s: %w", ErrIO, filePath, err))
	}
	if !info.Mode().IsRegular() {
		return model.Verdict{}, i.fail("Not a regular file: "+filePath, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, filePath))
	}

	content, err := afero.ReadFile(i.fs, filePath)
	if err != nil {
		return model.Verdict{}, i.fail("Failed to read file: "+filePath, fmt.Errorf("%w: %s: %w", ErrIO, filePath, err))
	}

	v := model.Verdict{
		Path:        filePath,
		Fingerprint: i.hasher.Fingerprint(content),
		Algorithm:   i.hasher.Algorithm(),
		ContentType: analysis.DetectType(content),
		ScannedAt:   i.now(),
	}

	// 签名命中优先于特征命中
	if i.store.Contains(v.Fingerprint) {
		v.Kind = model.SignatureMatch
		v.Message = fmt.Sprintf("Malware detected in file: %s (Signature match)", filePath)
	} else if p, ok := matchPattern(asciiLower(content)); ok {
		i.log.Warn("Detected malicious pattern", zap.String("pattern", p), zap.String("path", filePath))
		v.Kind = model.PatternMatch
		v.Pattern = p
		v.Message = fmt.Sprintf("Suspicious patterns detected in file: %s (pattern: %s)", filePath, p)
	} else {
		v.Kind = model.Clean
		v.Message = "No threats detected in file: " + filePath
	}

	i.setLastResult(v.Message)
	fields := []zap.Field{
		zap.String("path", filePath),
		zap.Stringer("verdict", v.Kind),
		zap.String("fingerprint", v.Fingerprint),
	}
	if v.Threat() {
		i.log.Warn(v.Message, fields...)
	} else {
		i.log.Info(v.Message, fields...)
	}

	if i.recorder != nil {
		if err := i.recorder.Record(context.Background(), v); err != nil {
			i.log.Error("Failed to record verdict", zap.String("path", filePath), zap.Error(err))
		}
	}
	return v, nil
}

// LastResult 最近一次扫描的结论文本
func (i *Inspector) LastResult() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastResult
}

func (i *Inspector) SignatureCount() int { return i.store.Len() }

// SignaturesLoaded 签名库是否已成功加载过
func (i *Inspector) SignaturesLoaded() bool { return i.store.Source() != "" }

func (i *Inspector) setLastResult(msg string) {
	i.mu.Lock()
	i.lastResult = msg
	i.mu.Unlock()
}

func (i *Inspector) fail(msg string, err error) error {
	i.setLastResult(msg)
	i.log.Error(msg, zap.Error(err))
	return err
}
