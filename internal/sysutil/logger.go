package sysutil

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Log = zap.NewNop()
var LogSugar = Log.Sugar()

var logFile *lumberjack.Logger

// LogOptions 日志输出配置
type LogOptions struct {
	Level      string // debug, info, warn, error
	File       string // 为空时不写文件
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Console    bool
}

// InitLogger 控制台 + 滚动日志文件
// warn 及以上输出到 stderr，其余输出到 stdout
func InitLogger(opts LogOptions) error {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		l, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}

	var cores []zapcore.Core
	if opts.Console {
		config := zap.NewDevelopmentEncoderConfig()
		config.EncodeTime = zapcore.ISO8601TimeEncoder        // 格式化时间输出
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder // 彩色级别
		enc := zapcore.NewConsoleEncoder(config)
		low := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= level && l < zapcore.WarnLevel })
		high := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= level && l >= zapcore.WarnLevel })
		cores = append(cores,
			zapcore.NewCore(enc, zapcore.Lock(os.Stdout), low),
			zapcore.NewCore(enc, zapcore.Lock(os.Stderr), high),
		)
	}
	if opts.File != "" {
		logFile = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		config := zap.NewProductionEncoderConfig()
		config.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		config.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(config), zapcore.AddSync(logFile), level))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	LogSugar = Log.Sugar()
	return nil
}

// CloseLogger 刷新并关闭日志文件
func CloseLogger() error {
	err := Log.Sync()
	// stdout/stderr 不支持 fsync，忽略这类错误
	if err != nil && !isSyncUnsupported(err) {
		err = fmt.Errorf("sync logger: %w", err)
	} else {
		err = nil
	}
	if logFile != nil {
		err = multierr.Append(err, logFile.Close())
		logFile = nil
	}
	return err
}

func isSyncUnsupported(err error) bool {
	for _, e := range multierr.Errors(err) {
		if pe, ok := e.(*os.PathError); !ok || pe.Op != "sync" {
			return false
		}
	}
	return true
}
