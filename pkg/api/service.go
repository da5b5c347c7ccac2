package api

import (
	"context"

	"streamscope/internal/logger"
	"streamscope/internal/metrics"
	"streamscope/internal/router"
	"streamscope/internal/session"
	"streamscope/pkg/model"
	"streamscope/pkg/traffic"
)

// Service 检查器服务接口
type Service interface {
	// Dispatch 处理传输层送达的信封
	Dispatch(ctx context.Context, env traffic.Envelope) bool

	// Reset 清空连接、选中项与筛选条件
	Reset(ctx context.Context)

	// Snapshot 当前连接状态的副本
	Snapshot() *model.Snapshot

	// Connections 按 URL 子串过滤的连接列表，新建的在前
	Connections(filter string) []model.ConnectionSummary

	// SelectConnection 选中连接
	SelectConnection(id model.ConnectionID) bool

	// Messages 选中连接中通过已应用条件的消息
	Messages() []model.Message

	// AvailableFields 选中连接的可筛选字段
	AvailableFields() []string

	// FilterStats 筛选统计文本
	FilterStats() string

	// PendingFilters 待应用的条件
	PendingFilters() []model.FilterCondition

	// AppliedFilters 已应用的条件
	AppliedFilters() []model.FilterCondition

	// AddFilter 以首个可用字段追加一条待应用条件
	AddFilter() bool

	// AppendFilter 追加一条待应用条件
	AppendFilter(c model.FilterCondition)

	// RemoveFilter 删除待应用条件
	RemoveFilter(i int) bool

	// UpdateFilter 修改待应用条件
	UpdateFilter(i int, field string, mode model.FilterMode, value string) bool

	// ApplyFilters 待应用条件生效
	ApplyFilters()

	// ClearFilters 清空两套条件
	ClearFilters()

	// SelectMessage 选中消息
	SelectMessage(id int64) bool

	// MessageDetail 选中消息的详情
	MessageDetail() (model.MessageDetail, bool)

	// ExportConnection 导出连接为 JSON 文档
	ExportConnection(id model.ConnectionID) (string, error)
}

// Options 服务创建选项
type Options struct {
	Recorder      router.Recorder
	Metrics       *metrics.Metrics
	MaxFieldDepth int
}

// NewService 创建并返回服务接口实现
func NewService(l logger.Logger, opts Options) Service {
	return session.New(session.Options{
		Logger:        l,
		Recorder:      opts.Recorder,
		Metrics:       opts.Metrics,
		MaxFieldDepth: opts.MaxFieldDepth,
	})
}
