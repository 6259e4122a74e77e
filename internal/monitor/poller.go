package monitor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hara602/liteDefender/internal/model"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var errStopped = errors.New("poll cycle interrupted")

// Watcher 轮询式目录监控
// 每个实例独占自己的监控列表和文件修改时间记录
type Watcher struct {
	fs       afero.Fs
	scanner  Scanner
	log      *zap.Logger
	interval time.Duration
	onChange func(model.FileChange)

	running   atomic.Bool
	lifecycle sync.Mutex // 串行化 Start/Stop
	stop      chan struct{}
	wg        sync.WaitGroup

	// mu 同时保护 dirs 和 lastModified，只在快照/更新时持有，检测文件时不持有
	mu           sync.Mutex
	dirs         []string
	lastModified map[string]time.Time
}

func New(cfg Config, fsys afero.Fs, scanner Scanner, log *zap.Logger) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		fs:           fsys,
		scanner:      scanner,
		log:          log,
		interval:     cfg.Interval,
		onChange:     cfg.OnChange,
		dirs:         append([]string(nil), cfg.Directories...),
		lastModified: make(map[string]time.Time),
	}
}

// Start 初始化检测器并启动后台轮询
func (w *Watcher) Start() error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.running.Load() {
		w.log.Warn("Monitor is already running")
		return ErrAlreadyRunning
	}
	if err := w.scanner.Initialize(); err != nil {
		w.log.Error("Failed to initialize scanner", zap.Error(err))
		return fmt.Errorf("initialize scanner: %w", err)
	}

	w.log.Info("Starting real-time monitoring", zap.Duration("interval", w.interval))
	w.stop = make(chan struct{})
	w.running.Store(true)
	w.wg.Add(1)
	go w.run(w.stop)
	return nil
}

// Stop 通知后台 goroutine 退出并等待其结束
func (w *Watcher) Stop() error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if !w.running.Load() {
		w.log.Warn("Monitor is not running")
		return ErrNotRunning
	}
	w.log.Info("Stopping real-time monitoring")
	close(w.stop)
	w.wg.Wait()
	w.running.Store(false)
	w.log.Info("Real-time monitoring stopped")
	return nil
}

func (w *Watcher) IsRunning() bool {
	return w.running.Load()
}

// AddWatchDirectory 重复添加不会去重
func (w *Watcher) AddWatchDirectory(path string) {
	w.mu.Lock()
	w.dirs = append(w.dirs, path)
	w.mu.Unlock()
	w.log.Info("Added directory to watch list", zap.String("path", path))
}

// RemoveWatchDirectory 移除所有与 path 相同的条目
// 已记录的文件时间保留，重新添加时未变化的文件不会再次检测
func (w *Watcher) RemoveWatchDirectory(path string) {
	w.mu.Lock()
	kept := w.dirs[:0]
	for _, d := range w.dirs {
		if d != path {
			kept = append(kept, d)
		}
	}
	w.dirs = kept
	w.mu.Unlock()
	w.log.Info("Removed directory from watch list", zap.String("path", path))
}

func (w *Watcher) WatchDirectories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.dirs...)
}

// Tracked 已记录修改时间的文件数
func (w *Watcher) Tracked() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.lastModified)
}

func (w *Watcher) run(stop <-chan struct{}) {
	defer w.wg.Done()
	w.log.Info("Monitor goroutine started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.checkForChanges(stop)
		select {
		case <-stop:
			w.log.Info("Monitor goroutine stopped")
			return
		case <-ticker.C:
		}
	}
}

// checkForChanges 一轮轮询: 按监控列表顺序遍历目录，检测新增或修改的文件
func (w *Watcher) checkForChanges(stop <-chan struct{}) {
	for _, dir := range w.WatchDirectories() {
		if stopped(stop) {
			return
		}
		info, err := w.fs.Stat(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				w.log.Warn("Watch directory does not exist", zap.String("path", dir))
			} else {
				w.log.Error("Filesystem error", zap.String("path", dir), zap.Error(err))
			}
			continue
		}
		if !info.IsDir() {
			w.log.Warn("Watch path is not a directory", zap.String("path", dir))
			continue
		}

		root := dir
		if abs, err := filepath.Abs(dir); err == nil {
			root = abs
		}
		// 监控目录本身是符号链接时跟随到目标目录，目录内的链接不跟随
		if !strings.HasSuffix(root, string(filepath.Separator)) {
			root += string(filepath.Separator)
		}
		err = afero.Walk(w.fs, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				w.log.Error("Filesystem error", zap.String("path", path), zap.Error(err))
				return nil
			}
			if stopped(stop) {
				return errStopped
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			w.checkFile(path, info.ModTime())
			return nil
		})
		if errors.Is(err, errStopped) {
			return
		}
		if err != nil {
			w.log.Error("Filesystem error", zap.String("path", dir), zap.Error(err))
		}
	}
}

func (w *Watcher) checkFile(path string, modTime time.Time) {
	w.mu.Lock()
	last, seen := w.lastModified[path]
	w.mu.Unlock()
	if seen && last.Equal(modTime) {
		return
	}

	w.log.Info("Detected file change", zap.String("path", path), zap.Bool("new", !seen))
	v, err := w.scanner.Inspect(path)

	w.mu.Lock()
	w.lastModified[path] = modTime
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(model.FileChange{
			Path:    path,
			ModTime: modTime,
			IsNew:   !seen,
			Verdict: v,
			Err:     err,
		})
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
