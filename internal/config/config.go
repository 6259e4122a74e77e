// Package config loads liteDefender settings from defaults, an optional YAML
// file, .env files and LITEDEFENDER_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/Hara602/liteDefender/internal/signature"
	"github.com/Hara602/liteDefender/internal/sysutil"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "LITEDEFENDER"

type Config struct {
	Signatures Signatures `mapstructure:"signatures" yaml:"signatures"`
	Monitor    Monitor    `mapstructure:"monitor" yaml:"monitor"`
	Log        Log        `mapstructure:"log" yaml:"log"`
	History    History    `mapstructure:"history" yaml:"history"`
}

type Signatures struct {
	Path      string `mapstructure:"path" yaml:"path"`
	Algorithm string `mapstructure:"algorithm" yaml:"algorithm"`
}

type Monitor struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	Directories []string      `mapstructure:"directories" yaml:"directories"`
}

type Log struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Console    bool   `mapstructure:"console" yaml:"console"`
}

// History Path 为空时不记录历史
type History struct {
	Path string `mapstructure:"path" yaml:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("signatures.path", "signatures/malware_signatures.txt")
	v.SetDefault("signatures.algorithm", signature.DefaultAlgorithm)
	v.SetDefault("monitor.interval", time.Second)
	v.SetDefault("monitor.directories", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/litedefender.log")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.console", true)
	v.SetDefault("history.path", "")
}

// Load 读取配置; file 为空时在 . 和 /etc/litedefender 中查找 litedefender.yaml，找不到不报错
func Load(file string) (*Config, error) {
	// .env 只补充尚未设置的环境变量
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("litedefender")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/litedefender")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// 环境变量里的目录列表用逗号分隔; 配置文件中的列表原样保留 (路径可以含空格)
	if env, ok := os.LookupEnv(EnvPrefix + "_MONITOR_DIRECTORIES"); ok {
		cfg.Monitor.Directories = splitList(env)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %s", c.Monitor.Interval)
	}
	if _, err := signature.NewHasher(c.Signatures.Algorithm); err != nil {
		return fmt.Errorf("signatures.algorithm: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Signatures.Path == "" {
		return errors.New("signatures.path must not be empty")
	}
	return nil
}

func (c *Config) LogOptions() sysutil.LogOptions {
	return sysutil.LogOptions{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Console:    c.Log.Console,
	}
}

// YAML 生效配置
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(out), nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
