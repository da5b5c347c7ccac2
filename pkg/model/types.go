package model

type ConnectionID string

// Status 连接生命周期状态
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusError      Status = "error"
	StatusClosed     Status = "closed"
)

// FilterMode 字段筛选方式
type FilterMode string

const (
	ModeEquals   FilterMode = "equals"
	ModeContains FilterMode = "contains"
)

// Message 连接上收到的一条推送消息，追加后不可变
type Message struct {
	ID          int64  `json:"id"`
	EventType   string `json:"eventType"`
	Data        string `json:"data"`
	LastEventID string `json:"lastEventId"`
	Timestamp   int64  `json:"timestamp"`
}

// Connection 一个被追踪的推送流实例
type Connection struct {
	ID        ConnectionID `json:"id"`
	URL       string       `json:"url"`
	FrameURL  string       `json:"frameUrl"`
	IsIframe  bool         `json:"isIframe"`
	Status    Status       `json:"status"`
	CreatedAt int64        `json:"createdAt"`
	Messages  []Message    `json:"messages"`
}

// Clone 深拷贝连接，消息切片不与原连接共享
func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}

// ConnectionSummary 连接列表项
type ConnectionSummary struct {
	ID           ConnectionID `json:"id"`
	URL          string       `json:"url"`
	Path         string       `json:"path"`
	FrameURL     string       `json:"frameUrl"`
	IsIframe     bool         `json:"isIframe"`
	Status       Status       `json:"status"`
	CreatedAt    int64        `json:"createdAt"`
	MessageCount int          `json:"messageCount"`
}

// FilterCondition 单个字段筛选条件
type FilterCondition struct {
	Field string     `json:"field"`
	Mode  FilterMode `json:"mode"`
	Value string     `json:"value"`
}

// CloneFilters 按值复制筛选条件集合
func CloneFilters(fs []FilterCondition) []FilterCondition {
	if len(fs) == 0 {
		return []FilterCondition{}
	}
	out := make([]FilterCondition, len(fs))
	copy(out, fs)
	return out
}

// MessageDetail 消息详情视图数据
type MessageDetail struct {
	Title     string `json:"title"`
	Raw       string `json:"raw"`
	Formatted string `json:"formatted"`
	IsJSON    bool   `json:"isJson"`
}

// Snapshot 供后加入的查看者初始化状态
type Snapshot struct {
	Connections map[ConnectionID]*Connection `json:"connections"`
}
