package router

import (
	"context"
	"sort"

	"streamscope/pkg/model"
	"streamscope/pkg/traffic"
)

var statusEvents = map[model.Status]traffic.EventType{
	model.StatusOpen:   traffic.EventOpen,
	model.StatusError:  traffic.EventError,
	model.StatusClosed: traffic.EventClose,
}

// Events 将快照展开为等价的事件序列，重放后得到相同的存储状态
func Events(snap *model.Snapshot) []traffic.StreamEvent {
	if snap == nil {
		return nil
	}
	conns := make([]*model.Connection, 0, len(snap.Connections))
	for id, c := range snap.Connections {
		if c == nil {
			continue
		}
		cp := *c
		cp.ID = id
		conns = append(conns, &cp)
	}
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].CreatedAt != conns[j].CreatedAt {
			return conns[i].CreatedAt < conns[j].CreatedAt
		}
		return conns[i].ID < conns[j].ID
	})

	var out []traffic.StreamEvent
	for _, c := range conns {
		out = append(out, traffic.StreamEvent{
			Type:         traffic.EventConnection,
			ConnectionID: c.ID,
			Timestamp:    c.CreatedAt,
			URL:          c.URL,
			FrameURL:     c.FrameURL,
			IsIframe:     c.IsIframe,
		})
		for _, m := range c.Messages {
			out = append(out, traffic.StreamEvent{
				Type:         traffic.EventMessage,
				ConnectionID: c.ID,
				Timestamp:    m.Timestamp,
				MessageID:    m.ID,
				EventName:    m.EventType,
				Data:         m.Data,
				LastEventID:  m.LastEventID,
			})
		}
		if t, ok := statusEvents[c.Status]; ok {
			out = append(out, traffic.StreamEvent{Type: t, ConnectionID: c.ID, Timestamp: c.CreatedAt})
		}
	}
	return out
}

// Replay 依次应用事件，返回实际生效的数量
func (r *Router) Replay(ctx context.Context, events []traffic.StreamEvent) int {
	n := 0
	for _, ev := range events {
		if r.Apply(ctx, ev) {
			n++
		}
	}
	return n
}
