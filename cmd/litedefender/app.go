package main

import (
	"fmt"

	"github.com/Hara602/liteDefender/internal/config"
	"github.com/Hara602/liteDefender/internal/history"
	"github.com/Hara602/liteDefender/internal/model"
	"github.com/Hara602/liteDefender/internal/monitor"
	"github.com/Hara602/liteDefender/internal/scanner"
	"github.com/Hara602/liteDefender/internal/signature"
	"github.com/Hara602/liteDefender/internal/sysutil"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// app 组装检测引擎 (依赖注入)
type app struct {
	cfg     *config.Config
	fs      afero.Fs
	hasher  *signature.Hasher
	history *history.Store
	log     *zap.Logger

	inspector *scanner.Inspector
	walker    *scanner.Walker
	monitor   *monitor.Watcher
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	hasher, err := signature.NewHasher(cfg.Signatures.Algorithm)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, fs: afero.NewOsFs(), hasher: hasher, log: log}

	if cfg.History.Path != "" {
		a.history, err = history.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
	}

	a.inspector = a.newInspector()
	a.walker = scanner.NewWalker(a.inspector)
	// 监控使用独立的检测器，前台命令的 LastResult 不会被后台覆盖
	a.monitor = monitor.New(monitor.Config{
		Interval:    cfg.Monitor.Interval,
		Directories: cfg.Monitor.Directories,
		OnChange:    a.reportChange,
	}, a.fs, a.newInspector(), log.Named("monitor"))
	return a, nil
}

func (a *app) newInspector() *scanner.Inspector {
	opts := []scanner.Option{scanner.WithSignaturePath(a.cfg.Signatures.Path)}
	if a.history != nil {
		opts = append(opts, scanner.WithRecorder(a.history))
	}
	store := signature.NewStore(a.fs, a.log.Named("signatures"))
	return scanner.New(a.fs, store, a.hasher, a.log.Named("scanner"), opts...)
}

// reportChange 后台发现威胁时打印到终端
func (a *app) reportChange(c model.FileChange) {
	if c.Err == nil && c.Verdict.Threat() {
		fmt.Printf("\n[!] %s\n", c.Verdict.Message)
	}
}

func (a *app) Close() error {
	var err error
	if a.monitor != nil && a.monitor.IsRunning() {
		err = multierr.Append(err, a.monitor.Stop())
	}
	if a.history != nil {
		err = multierr.Append(err, a.history.Close())
	}
	return err
}

func initLogging(cfg *config.Config) error {
	if err := sysutil.InitLogger(cfg.LogOptions()); err != nil {
		return err
	}
	sysutil.Log.Debug("LiteDefender started",
		zap.String("host", sysutil.Hostname()),
		zap.String("user", sysutil.Username()))
	return nil
}
