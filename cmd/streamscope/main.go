package main

import (
	"os"

	"github.com/spf13/cobra"

	"streamscope/internal/config"
	"streamscope/internal/logger"
)

// version 构建时通过 ldflags 注入
var version = "dev"

var (
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "streamscope",
		Short: "检查页面中的 EventSource 推送流",
		Long: `streamscope 通过 DevTools 协议连接浏览器页面，记录 EventSource 连接与推送消息，
支持按 JSON 字段筛选消息、导出连接以及回放已记录的采集。`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML 配置文件")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别，覆盖配置文件")

	root.AddCommand(newWatchCmd(), newReplayCmd(), newFieldsCmd())
	return root
}

// setup 加载配置并初始化日志
func setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	l := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})
	return cfg, l, nil
}
