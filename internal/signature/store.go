package signature

import (
	"bufio"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Store 已知恶意文件指纹集合
// 只支持成员查询，重复项自动合并
type Store struct {
	fs  afero.Fs
	log *zap.Logger

	mu     sync.RWMutex
	sigs   map[string]struct{}
	source string
}

// NewStore 创建一个空的签名库
func NewStore(fs afero.Fs, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		fs:   fs,
		log:  log,
		sigs: make(map[string]struct{}),
	}
}

// Load 从按行组织的文件加载签名，成功时整体替换当前集合
// 空行和 # 开头的行会被忽略，其它行去除首尾空白后原样入库
func (s *Store) Load(sourcePath string) error {
	f, err := s.fs.Open(sourcePath)
	if err != nil {
		s.log.Error("Failed to open signatures file", zap.String("path", sourcePath), zap.Error(err))
		return fmt.Errorf("open signatures %s: %w", sourcePath, err)
	}
	defer f.Close()

	// 先在旁边构建新集合，读取失败时旧集合保持不变
	next := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		next[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		s.log.Error("Failed to read signatures file", zap.String("path", sourcePath), zap.Error(err))
		return fmt.Errorf("read signatures %s: %w", sourcePath, err)
	}

	s.mu.Lock()
	s.sigs = next
	s.source = sourcePath
	s.mu.Unlock()

	s.log.Info(fmt.Sprintf("Loaded %d signatures from %s", len(next), sourcePath),
		zap.Int("count", len(next)),
		zap.String("path", sourcePath))
	return nil
}

// Contains 指纹是否在库中
func (s *Store) Contains(fingerprint string) bool {
	s.mu.RLock()
	_, ok := s.sigs[fingerprint]
	s.mu.RUnlock()
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sigs)
}

// Source 最近一次成功加载的文件路径
func (s *Store) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}
