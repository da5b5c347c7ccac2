package traffic

import "streamscope/pkg/model"

// EventType 传输层推送流事件类型
type EventType string

const (
	EventConnection EventType = "stream-connection"
	EventOpen       EventType = "stream-open"
	EventMessage    EventType = "stream-message"
	EventError      EventType = "stream-error"
	EventClose      EventType = "stream-close"
)

// Kind 信封类型
type Kind string

const (
	KindInit       Kind = "init-data"
	KindStream     Kind = "stream-event"
	KindNavigation Kind = "navigation"
)

// StreamEvent 中立的推送流事件模型
type StreamEvent struct {
	Type         EventType          // 事件类型
	ConnectionID model.ConnectionID // 所属连接
	Timestamp    int64              // 毫秒时间戳

	// stream-connection
	URL      string
	FrameURL string
	IsIframe bool

	// stream-message
	MessageID   int64
	EventName   string
	Data        string
	LastEventID string
}

// Envelope 传输层送达的一条消息
type Envelope struct {
	Kind     Kind
	Event    StreamEvent
	Snapshot *model.Snapshot
}

// NewStreamEnvelope 包装推送流事件
func NewStreamEnvelope(ev StreamEvent) Envelope {
	return Envelope{Kind: KindStream, Event: ev}
}

// NewInitEnvelope 包装初始化快照
func NewInitEnvelope(s *model.Snapshot) Envelope {
	return Envelope{Kind: KindInit, Snapshot: s}
}

// NewNavigationEnvelope 页面导航重置信号
func NewNavigationEnvelope() Envelope {
	return Envelope{Kind: KindNavigation}
}

// Message 从消息事件构造存储模型
func (e StreamEvent) Message() model.Message {
	return model.Message{
		ID:          e.MessageID,
		EventType:   e.EventName,
		Data:        e.Data,
		LastEventID: e.LastEventID,
		Timestamp:   e.Timestamp,
	}
}

// Connection 从连接事件构造存储模型
func (e StreamEvent) Connection() *model.Connection {
	return &model.Connection{
		ID:        e.ConnectionID,
		URL:       e.URL,
		FrameURL:  e.FrameURL,
		IsIframe:  e.IsIframe,
		Status:    model.StatusConnecting,
		CreatedAt: e.Timestamp,
		Messages:  []model.Message{},
	}
}
