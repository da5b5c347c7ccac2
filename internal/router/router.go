package router

import (
	"context"

	"streamscope/internal/logger"
	"streamscope/internal/metrics"
	"streamscope/internal/store"
	"streamscope/pkg/model"
	"streamscope/pkg/traffic"
)

// Recorder 已路由事件的旁路记录者
type Recorder interface {
	Record(ctx context.Context, ev traffic.StreamEvent) error
	Reset(ctx context.Context) error
}

// Router 推送流事件路由器，按到达顺序把事件应用到连接存储
type Router struct {
	store    *store.Store
	recorder Recorder
	metrics  *metrics.Metrics
	log      logger.Logger
}

// Config 配置选项
type Config struct {
	Store    *store.Store
	Recorder Recorder
	Metrics  *metrics.Metrics
	Logger   logger.Logger
}

// New 创建事件路由器
func New(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Store == nil {
		cfg.Store = store.New()
	}
	return &Router{
		store:    cfg.Store,
		recorder: cfg.Recorder,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
	}
}

// Store 返回底层存储
func (r *Router) Store() *store.Store { return r.store }

// Apply 应用一条事件，返回存储是否发生变化；未知连接的事件被静默忽略
func (r *Router) Apply(ctx context.Context, ev traffic.StreamEvent) bool {
	var applied bool
	switch ev.Type {
	case traffic.EventConnection:
		// 即使 URL 重复也总是新建连接；ID 不复用
		applied = r.store.Create(ev.Connection())
		if applied {
			r.metrics.SetConnections(r.store.Len())
		}
	case traffic.EventOpen:
		applied = r.store.SetStatus(ev.ConnectionID, model.StatusOpen)
	case traffic.EventMessage:
		applied = r.store.Append(ev.ConnectionID, ev.Message())
	case traffic.EventError:
		applied = r.store.SetStatus(ev.ConnectionID, model.StatusError)
	case traffic.EventClose:
		applied = r.store.SetStatus(ev.ConnectionID, model.StatusClosed)
	default:
		r.log.Debug("忽略未知事件类型", "type", string(ev.Type))
		r.metrics.ObserveEvent(string(ev.Type), false)
		return false
	}

	r.metrics.ObserveEvent(string(ev.Type), applied)
	if !applied {
		r.log.Debug("忽略事件：连接不存在或已登记", "type", string(ev.Type), "connectionID", string(ev.ConnectionID))
		return false
	}

	if r.recorder != nil {
		if err := r.recorder.Record(ctx, ev); err != nil {
			r.log.Err(err, "记录事件失败", "type", string(ev.Type), "connectionID", string(ev.ConnectionID))
		}
	}
	return true
}

// Seed 用初始化快照替换存储内容
func (r *Router) Seed(ctx context.Context, snap *model.Snapshot) {
	r.store.Replace(snap)
	r.metrics.SetConnections(r.store.Len())
	if r.recorder != nil {
		if err := r.recorder.Reset(ctx); err != nil {
			r.log.Err(err, "重置事件记录失败")
		}
		for _, ev := range Events(r.store.Snapshot()) {
			if err := r.recorder.Record(ctx, ev); err != nil {
				r.log.Err(err, "记录快照事件失败", "connectionID", string(ev.ConnectionID))
				break
			}
		}
	}
	r.log.Info("已载入初始化快照", "connections", r.store.Len())
}

// Reset 丢弃所有连接与消息
func (r *Router) Reset(ctx context.Context) {
	r.store.Clear()
	r.metrics.ObserveReset()
	if r.recorder != nil {
		if err := r.recorder.Reset(ctx); err != nil {
			r.log.Err(err, "重置事件记录失败")
		}
	}
	r.log.Info("连接存储已重置")
}
