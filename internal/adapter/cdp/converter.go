package cdp

import (
	"time"

	"streamscope/pkg/model"
	"streamscope/pkg/traffic"

	"github.com/google/uuid"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
)

// Converter 将 CDP Network/Page 事件转换为中立的推送流事件，只跟踪 EventSource 请求
type Converter struct {
	conns     map[network.RequestID]model.ConnectionID
	seq       map[model.ConnectionID]int64
	frames    map[page.FrameID]string
	mainFrame page.FrameID

	newID func() string
	now   func() time.Time
}

// NewConverter 创建转换器
func NewConverter() *Converter {
	return &Converter{
		conns:  make(map[network.RequestID]model.ConnectionID),
		seq:    make(map[model.ConnectionID]int64),
		frames: make(map[page.FrameID]string),
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// SetFrameTree 记录当前文档的框架结构，用于判定 iframe 来源
func (c *Converter) SetFrameTree(tree page.FrameTree) {
	c.mainFrame = tree.Frame.ID
	c.addFrames(tree)
}

func (c *Converter) addFrames(tree page.FrameTree) {
	c.frames[tree.Frame.ID] = tree.Frame.URL
	for _, child := range tree.ChildFrames {
		c.addFrames(child)
	}
}

// FrameNavigated 更新框架 URL；主框架导航时清空跟踪状态并返回 true
func (c *Converter) FrameNavigated(ev *page.FrameNavigatedReply) bool {
	f := ev.Frame
	if f.ParentID == nil || *f.ParentID == "" {
		c.conns = make(map[network.RequestID]model.ConnectionID)
		c.seq = make(map[model.ConnectionID]int64)
		c.frames = map[page.FrameID]string{f.ID: f.URL}
		c.mainFrame = f.ID
		return true
	}
	c.frames[f.ID] = f.URL
	return false
}

// RequestWillBeSent 新的 EventSource 请求转换为 stream-connection
func (c *Converter) RequestWillBeSent(ev *network.RequestWillBeSentReply) (traffic.StreamEvent, bool) {
	if ev.Type != network.ResourceTypeEventSource {
		return traffic.StreamEvent{}, false
	}
	// 重定向沿用同一个 RequestID，不视为新连接
	if _, ok := c.conns[ev.RequestID]; ok {
		return traffic.StreamEvent{}, false
	}
	id := model.ConnectionID(c.newID())
	c.conns[ev.RequestID] = id

	out := traffic.StreamEvent{
		Type:         traffic.EventConnection,
		ConnectionID: id,
		Timestamp:    c.now().UnixMilli(),
		URL:          ev.Request.URL,
		FrameURL:     ev.DocumentURL,
	}
	if ev.FrameID != nil {
		if u, ok := c.frames[*ev.FrameID]; ok && u != "" {
			out.FrameURL = u
		}
		out.IsIframe = c.mainFrame != "" && *ev.FrameID != c.mainFrame
	}
	return out, true
}

// ResponseReceived 响应头到达：2xx 视为打开，其余视为错误
func (c *Converter) ResponseReceived(ev *network.ResponseReceivedReply) (traffic.StreamEvent, bool) {
	id, ok := c.conns[ev.RequestID]
	if !ok {
		return traffic.StreamEvent{}, false
	}
	t := traffic.EventOpen
	if ev.Response.Status < 200 || ev.Response.Status >= 300 {
		t = traffic.EventError
		delete(c.conns, ev.RequestID)
	}
	return traffic.StreamEvent{Type: t, ConnectionID: id, Timestamp: c.now().UnixMilli()}, true
}

// MessageReceived 推送消息，按连接分配递增的消息 ID
func (c *Converter) MessageReceived(ev *network.EventSourceMessageReceivedReply) (traffic.StreamEvent, bool) {
	id, ok := c.conns[ev.RequestID]
	if !ok {
		return traffic.StreamEvent{}, false
	}
	c.seq[id]++
	return traffic.StreamEvent{
		Type:         traffic.EventMessage,
		ConnectionID: id,
		Timestamp:    c.now().UnixMilli(),
		MessageID:    c.seq[id],
		EventName:    ev.EventName,
		Data:         ev.Data,
		LastEventID:  ev.EventID,
	}, true
}

// LoadingFailed 主动取消视为关闭，其余失败视为错误
func (c *Converter) LoadingFailed(ev *network.LoadingFailedReply) (traffic.StreamEvent, bool) {
	id, ok := c.conns[ev.RequestID]
	if !ok {
		return traffic.StreamEvent{}, false
	}
	delete(c.conns, ev.RequestID)
	t := traffic.EventError
	if ev.Canceled != nil && *ev.Canceled {
		t = traffic.EventClose
	}
	return traffic.StreamEvent{Type: t, ConnectionID: id, Timestamp: c.now().UnixMilli()}, true
}

// LoadingFinished 服务端结束推送流
func (c *Converter) LoadingFinished(ev *network.LoadingFinishedReply) (traffic.StreamEvent, bool) {
	id, ok := c.conns[ev.RequestID]
	if !ok {
		return traffic.StreamEvent{}, false
	}
	delete(c.conns, ev.RequestID)
	return traffic.StreamEvent{Type: traffic.EventClose, ConnectionID: id, Timestamp: c.now().UnixMilli()}, true
}

// Tracked 正在跟踪的连接数
func (c *Converter) Tracked() int { return len(c.conns) }
