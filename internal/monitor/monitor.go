package monitor

import (
	"errors"
	"time"

	"github.com/Hara602/liteDefender/internal/model"
)

// DefaultInterval 两次轮询之间的间隔
const DefaultInterval = time.Second

var (
	ErrAlreadyRunning = errors.New("monitor is already running")
	ErrNotRunning     = errors.New("monitor is not running")
)

// FileMonitor 目录监控的生命周期
type FileMonitor interface {
	Start() error
	Stop() error
	AddWatchDirectory(path string) // 运行中也可以动态添加，下一轮生效
	RemoveWatchDirectory(path string)
	WatchDirectories() []string
	IsRunning() bool
}

// Scanner 监控发现变化后调用的检测器
type Scanner interface {
	// Initialize 每次 Start 时重新初始化，失败则不启动
	Initialize() error
	Inspect(path string) (model.Verdict, error)
}

// Config 监控配置
type Config struct {
	Interval    time.Duration // 默认 1s
	Directories []string      // 初始监控目录
	OnChange    func(model.FileChange)
}

var _ FileMonitor = (*Watcher)(nil)
