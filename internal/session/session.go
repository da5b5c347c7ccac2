package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"streamscope/internal/fields"
	"streamscope/internal/logger"
	"streamscope/internal/metrics"
	"streamscope/internal/payload"
	"streamscope/internal/router"
	"streamscope/internal/rules"
	"streamscope/internal/store"
	"streamscope/pkg/model"
	"streamscope/pkg/traffic"
)

// Session 检查器状态：连接存储、选中项、连接过滤词以及待应用/已应用两套筛选条件
type Session struct {
	mu sync.RWMutex

	router    *router.Router
	store     *store.Store
	extractor *fields.Extractor
	log       logger.Logger

	selectedConn    model.ConnectionID
	selectedMessage *int64
	connFilter      string

	pending []model.FilterCondition
	applied *rules.Engine
}

// Options 会话创建选项
type Options struct {
	Logger        logger.Logger
	Recorder      router.Recorder
	Metrics       *metrics.Metrics
	MaxFieldDepth int
}

// New 创建检查器会话
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	st := store.New()
	return &Session{
		router: router.New(router.Config{
			Store:    st,
			Recorder: opts.Recorder,
			Metrics:  opts.Metrics,
			Logger:   opts.Logger,
		}),
		store:     st,
		extractor: fields.New(opts.MaxFieldDepth),
		log:       opts.Logger,
		pending:   []model.FilterCondition{},
		applied:   rules.New(nil),
	}
}

// Dispatch 处理传输层送达的一条消息
func (s *Session) Dispatch(ctx context.Context, env traffic.Envelope) bool {
	switch env.Kind {
	case traffic.KindInit:
		s.mu.Lock()
		s.router.Seed(ctx, env.Snapshot)
		if s.selectedConn != "" && !s.store.Has(s.selectedConn) {
			s.selectedConn = ""
			s.selectedMessage = nil
		}
		s.mu.Unlock()
		return true
	case traffic.KindStream:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.router.Apply(ctx, env.Event)
	case traffic.KindNavigation:
		s.Reset(ctx)
		return true
	default:
		s.log.Debug("忽略未知消息类型", "kind", string(env.Kind))
		return false
	}
}

// HandleEvent 应用一条推送流事件
func (s *Session) HandleEvent(ctx context.Context, ev traffic.StreamEvent) bool {
	return s.Dispatch(ctx, traffic.NewStreamEnvelope(ev))
}

// Reset 丢弃全部连接与消息，并清空选中项和筛选状态
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.router.Reset(ctx)
	s.selectedConn = ""
	s.selectedMessage = nil
	s.pending = []model.FilterCondition{}
	s.applied = rules.New(nil)
}

// Snapshot 导出当前存储快照
func (s *Session) Snapshot() *model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Snapshot()
}

// SetConnectionFilter 设置连接列表的 URL 过滤词
func (s *Session) SetConnectionFilter(filter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connFilter = filter
}

// Connections 返回按创建时间倒序的连接列表，filter 为空时使用会话中的过滤词
func (s *Session) Connections(filter string) []model.ConnectionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if filter == "" {
		filter = s.connFilter
	}
	filter = strings.ToLower(filter)

	list := s.store.List()
	out := make([]model.ConnectionSummary, 0, len(list))
	for _, c := range list {
		if filter != "" && !strings.Contains(strings.ToLower(c.URL), filter) {
			continue
		}
		out = append(out, model.ConnectionSummary{
			ID:           c.ID,
			URL:          c.URL,
			Path:         urlPath(c.URL),
			FrameURL:     c.FrameURL,
			IsIframe:     c.IsIframe,
			Status:       c.Status,
			CreatedAt:    c.CreatedAt,
			MessageCount: len(c.Messages),
		})
	}
	return out
}

// SelectConnection 切换选中连接，未应用的编辑被丢弃，待应用条件恢复为已应用条件
func (s *Session) SelectConnection(id model.ConnectionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Has(id) {
		return false
	}
	s.selectedConn = id
	s.selectedMessage = nil
	s.pending = s.applied.Conditions()
	return true
}

// SelectedConnection 当前选中的连接
func (s *Session) SelectedConnection() (model.ConnectionID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedConn, s.selectedConn != ""
}

// decoded 一次解码连接的全部消息，供字段提取与筛选共用
type decoded struct {
	msgs   []model.Message
	values []payload.Value
	ok     []bool
}

func (s *Session) decodeSelected() decoded {
	msgs := s.store.Messages(s.selectedConn)
	d := decoded{
		msgs:   msgs,
		values: make([]payload.Value, len(msgs)),
		ok:     make([]bool, len(msgs)),
	}
	for i, m := range msgs {
		d.values[i], d.ok[i] = payload.Decode(m.Data)
	}
	return d
}

// Messages 返回选中连接经已应用条件过滤后的消息，保持到达顺序
func (s *Session) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedConn == "" {
		return []model.Message{}
	}
	d := s.decodeSelected()
	return s.applied.FilterDecoded(d.msgs, d.values, d.ok)
}

// AvailableFields 选中连接全部消息可用的字段路径，已排序
func (s *Session) AvailableFields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.availableFields()
}

func (s *Session) availableFields() []string {
	if s.selectedConn == "" {
		return []string{}
	}
	d := s.decodeSelected()
	return s.extractor.Available(d.values)
}

// FilterStats 选中连接的筛选统计文案
func (s *Session) FilterStats() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedConn == "" {
		return ""
	}
	d := s.decodeSelected()
	filtered := s.applied.FilterDecoded(d.msgs, d.values, d.ok)
	return rules.Stats(len(filtered), len(d.msgs), s.applied.Active())
}

// PendingFilters 待应用条件副本
func (s *Session) PendingFilters() []model.FilterCondition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneFilters(s.pending)
}

// AppliedFilters 已应用条件副本
func (s *Session) AppliedFilters() []model.FilterCondition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied.Conditions()
}

// AddFilter 以首个可用字段追加一个 equals 条件，没有可用字段时不追加
func (s *Session) AddFilter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	avail := s.availableFields()
	if len(avail) == 0 {
		return false
	}
	s.pending = append(s.pending, model.FilterCondition{Field: avail[0], Mode: model.ModeEquals})
	return true
}

// AppendFilter 追加指定条件到待应用集合
func (s *Session) AppendFilter(c model.FilterCondition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, c)
}

// RemoveFilter 删除指定下标的待应用条件，越界时不做任何事
func (s *Session) RemoveFilter(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.pending) {
		return false
	}
	s.pending = append(s.pending[:i], s.pending[i+1:]...)
	return true
}

// UpdateFilter 整体替换指定下标的待应用条件
func (s *Session) UpdateFilter(i int, field string, mode model.FilterMode, value string) bool {
	return s.editFilter(i, func(c *model.FilterCondition) {
		c.Field = field
		c.Mode = mode
		c.Value = value
	})
}

// SetFilterField 修改条件字段
func (s *Session) SetFilterField(i int, field string) bool {
	return s.editFilter(i, func(c *model.FilterCondition) { c.Field = field })
}

// SetFilterMode 修改条件模式
func (s *Session) SetFilterMode(i int, mode model.FilterMode) bool {
	return s.editFilter(i, func(c *model.FilterCondition) { c.Mode = mode })
}

// SetFilterValue 修改条件值
func (s *Session) SetFilterValue(i int, value string) bool {
	return s.editFilter(i, func(c *model.FilterCondition) { c.Value = value })
}

func (s *Session) editFilter(i int, fn func(c *model.FilterCondition)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.pending) {
		return false
	}
	fn(&s.pending[i])
	return true
}

// ApplyFilters 将待应用条件按值复制为已应用条件
func (s *Session) ApplyFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied.Update(s.pending)
}

// ClearFilters 同时清空待应用与已应用条件
func (s *Session) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = []model.FilterCondition{}
	s.applied.Update(nil)
}

// SelectMessage 选中消息用于详情查看
func (s *Session) SelectMessage(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findMessage(id); !ok {
		return false
	}
	s.selectedMessage = &id
	return true
}

// ClearMessageSelection 返回列表视图
func (s *Session) ClearMessageSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedMessage = nil
}

// MessageDetail 当前选中消息的详情
func (s *Session) MessageDetail() (model.MessageDetail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedMessage == nil {
		return model.MessageDetail{}, false
	}
	m, ok := s.findMessage(*s.selectedMessage)
	if !ok {
		return model.MessageDetail{}, false
	}
	return Detail(m), true
}

func (s *Session) findMessage(id int64) (model.Message, bool) {
	if s.selectedConn == "" {
		return model.Message{}, false
	}
	for _, m := range s.store.Messages(s.selectedConn) {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// Detail 构造消息详情，JSON 载荷缩进展示，其余原样展示
func Detail(m model.Message) model.MessageDetail {
	d := model.MessageDetail{
		Title:     fmt.Sprintf("消息 #%d - %s", m.ID, m.EventType),
		Raw:       m.Data,
		Formatted: m.Data,
	}
	if v, ok := payload.Decode(m.Data); ok {
		d.Formatted = v.Pretty()
		d.IsJSON = true
	}
	return d
}

// urlPath 取 URL 的路径与查询部分，无法解析时返回原串
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}
