package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite    SqliteConfig    `yaml:"sqlite"`
	Log       LogConfig       `yaml:"log"`
	DevTools  DevToolsConfig  `yaml:"devtools"`
	Inspector InspectorConfig `yaml:"inspector"`
}

// SqliteConfig 事件日志数据库
type SqliteConfig struct {
	Dsn    string `yaml:"dsn"`
	Prefix string `yaml:"prefix"`
}

// LogConfig 日志输出
type LogConfig struct {
	Level  string   `yaml:"level"`
	Writer []string `yaml:"writer"`
	File   string   `yaml:"file"`
}

// DevToolsConfig 浏览器调试端点
type DevToolsConfig struct {
	URL           string `yaml:"url"`
	Target        string `yaml:"target"`
	AttachRetries int    `yaml:"attach_retries"`
}

// InspectorConfig 检查器参数
type InspectorConfig struct {
	MaxFieldDepth int `yaml:"max_field_depth"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Sqlite: SqliteConfig{
			Dsn:    ":memory:",
			Prefix: "streamscope_",
		},
		Log: LogConfig{
			Level:  "info",
			Writer: []string{"console"},
			File:   "logs/streamscope.log",
		},
		DevTools: DevToolsConfig{
			URL:           "http://127.0.0.1:9222",
			AttachRetries: 5,
		},
		Inspector: InspectorConfig{
			MaxFieldDepth: 64,
		},
	}
}

// Load 在默认配置上叠加配置文件，path 为空时返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if c.DevTools.URL == "" {
		return errors.New("devtools.url is required")
	}
	if c.DevTools.AttachRetries < 0 {
		return errors.New("devtools.attach_retries must not be negative")
	}
	if c.Inspector.MaxFieldDepth < 0 {
		return errors.New("inspector.max_field_depth must not be negative")
	}
	return nil
}
