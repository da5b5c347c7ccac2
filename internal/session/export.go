package session

import (
	"fmt"
	"strconv"

	"github.com/tidwall/sjson"

	"streamscope/internal/payload"
	"streamscope/pkg/model"
)

// ExportConnection 将连接及其消息导出为 JSON 文档；JSON 载荷以结构化值嵌入
func (s *Session) ExportConnection(id model.ConnectionID) (string, error) {
	s.mu.RLock()
	c, ok := s.store.Get(id)
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("connection %s not found", id)
	}
	return Export(c)
}

// Export 构造单个连接的导出文档
func Export(c *model.Connection) (string, error) {
	doc := "{}"
	var err error
	set := func(path string, v any) {
		if err != nil {
			return
		}
		doc, err = sjson.Set(doc, path, v)
	}
	set("id", string(c.ID))
	set("url", c.URL)
	set("frameUrl", c.FrameURL)
	set("isIframe", c.IsIframe)
	set("status", string(c.Status))
	set("createdAt", c.CreatedAt)
	set("messages", []any{})

	for i, m := range c.Messages {
		prefix := "messages." + strconv.Itoa(i) + "."
		set(prefix+"id", m.ID)
		set(prefix+"eventType", m.EventType)
		set(prefix+"lastEventId", m.LastEventID)
		set(prefix+"timestamp", m.Timestamp)
		if err != nil {
			break
		}
		if v, ok := payload.Decode(m.Data); ok {
			doc, err = sjson.SetRaw(doc, prefix+"data", v.Raw())
		} else {
			set(prefix+"data", m.Data)
		}
	}
	if err != nil {
		return "", fmt.Errorf("export connection %s: %w", c.ID, err)
	}
	return doc, nil
}
