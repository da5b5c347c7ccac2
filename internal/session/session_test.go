package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"streamscope/pkg/model"
	"streamscope/pkg/traffic"
)

var ctx = context.Background()

func open(s *Session, id, url string, ts int64) {
	s.HandleEvent(ctx, traffic.StreamEvent{Type: traffic.EventConnection, ConnectionID: model.ConnectionID(id), URL: url, Timestamp: ts})
	s.HandleEvent(ctx, traffic.StreamEvent{Type: traffic.EventOpen, ConnectionID: model.ConnectionID(id)})
}

func push(s *Session, id string, mid int64, data string) {
	s.HandleEvent(ctx, traffic.StreamEvent{
		Type:         traffic.EventMessage,
		ConnectionID: model.ConnectionID(id),
		MessageID:    mid,
		EventName:    "message",
		Data:         data,
		Timestamp:    1000 + mid,
	})
}

func statusSession(t *testing.T) *Session {
	t.Helper()
	s := New(Options{})
	open(s, "C1", "https://api.example.com/events?topic=a", 1)
	push(s, "C1", 1, `{"status":"ok","code":200}`)
	push(s, "C1", 2, `{"status":"fail","code":500}`)
	require.True(t, s.SelectConnection("C1"))
	return s
}

func TestSession_EndToEndStatusFilter(t *testing.T) {
	s := statusSession(t)

	s.AppendFilter(model.FilterCondition{Field: "status", Mode: model.ModeEquals, Value: "ok"})
	// 未应用前不影响展示
	assert.Len(t, s.Messages(), 2)
	assert.Equal(t, "", s.FilterStats())

	s.ApplyFilters()
	visible := s.Messages()
	require.Len(t, visible, 1)
	assert.Contains(t, visible[0].Data, `"code":200`)
	assert.Equal(t, "显示 1/2 条消息", s.FilterStats())

	// 重复应用相同条件结果不变
	s.ApplyFilters()
	assert.Len(t, s.Messages(), 1)
	assert.Equal(t, "显示 1/2 条消息", s.FilterStats())

	s.ClearFilters()
	assert.Len(t, s.Messages(), 2)
	assert.Empty(t, s.PendingFilters())
	assert.Empty(t, s.AppliedFilters())
	assert.Equal(t, "", s.FilterStats())
}

func TestSession_AllShownStats(t *testing.T) {
	s := statusSession(t)
	s.AppendFilter(model.FilterCondition{Field: "code", Mode: model.ModeContains, Value: "00"})
	s.ApplyFilters()
	assert.Equal(t, "显示全部 2 条消息", s.FilterStats())
}

func TestSession_NonJSONMessages(t *testing.T) {
	s := statusSession(t)
	push(s, "C1", 3, `heartbeat`)

	assert.Len(t, s.Messages(), 3)
	assert.Equal(t, []string{"code", "status"}, s.AvailableFields())

	s.AppendFilter(model.FilterCondition{Field: "status", Mode: model.ModeContains, Value: ""})
	s.ApplyFilters()
	assert.Len(t, s.Messages(), 2)
}

func TestSession_ApplyCopiesByValue(t *testing.T) {
	s := statusSession(t)
	s.AppendFilter(model.FilterCondition{Field: "status", Mode: model.ModeEquals, Value: "ok"})
	s.ApplyFilters()

	require.True(t, s.SetFilterValue(0, "fail"))
	assert.Equal(t, "ok", s.AppliedFilters()[0].Value)
	assert.Equal(t, "fail", s.PendingFilters()[0].Value)
	assert.Equal(t, int64(1), s.Messages()[0].ID)
}

func TestSession_SwitchConnectionDiscardsPendingEdits(t *testing.T) {
	s := statusSession(t)
	open(s, "C2", "https://api.example.com/other", 2)
	push(s, "C2", 1, `{"status":"ok"}`)

	s.AppendFilter(model.FilterCondition{Field: "status", Mode: model.ModeEquals, Value: "ok"})
	s.ApplyFilters()
	s.AppendFilter(model.FilterCondition{Field: "code", Mode: model.ModeEquals, Value: "200"})
	require.True(t, s.SetFilterMode(0, model.ModeContains))
	require.Len(t, s.PendingFilters(), 2)

	require.True(t, s.SelectConnection("C2"))
	assert.Equal(t, s.AppliedFilters(), s.PendingFilters())
	assert.Equal(t, []model.FilterCondition{{Field: "status", Mode: model.ModeEquals, Value: "ok"}}, s.PendingFilters())
	assert.Len(t, s.Messages(), 1)

	assert.False(t, s.SelectConnection("missing"))
	id, ok := s.SelectedConnection()
	assert.True(t, ok)
	assert.Equal(t, model.ConnectionID("C2"), id)
}

func TestSession_IndexEditsAreBoundsChecked(t *testing.T) {
	s := statusSession(t)
	require.True(t, s.AddFilter())
	assert.Equal(t, []model.FilterCondition{{Field: "code", Mode: model.ModeEquals}}, s.PendingFilters())

	assert.False(t, s.RemoveFilter(5))
	assert.False(t, s.RemoveFilter(-1))
	assert.False(t, s.UpdateFilter(1, "status", model.ModeEquals, "ok"))
	assert.False(t, s.SetFilterField(3, "x"))
	assert.Len(t, s.PendingFilters(), 1)

	require.True(t, s.UpdateFilter(0, "status", model.ModeEquals, "fail"))
	require.True(t, s.SetFilterField(0, "status"))
	s.ApplyFilters()
	assert.Equal(t, int64(2), s.Messages()[0].ID)

	require.True(t, s.RemoveFilter(0))
	assert.Empty(t, s.PendingFilters())
}

func TestSession_AddFilterWithoutFields(t *testing.T) {
	s := New(Options{})
	assert.False(t, s.AddFilter())

	open(s, "C1", "https://a", 1)
	push(s, "C1", 1, `plain`)
	s.SelectConnection("C1")
	assert.False(t, s.AddFilter())
	assert.Empty(t, s.PendingFilters())
}

func TestSession_ConnectionsListing(t *testing.T) {
	s := New(Options{})
	open(s, "a", "https://Example.com/SSE/one", 10)
	open(s, "b", "https://other.net/stream", 30)
	open(s, "c", "https://example.com/sse/two?x=1", 20)
	push(s, "c", 1, "{}")

	all := s.Connections("")
	require.Len(t, all, 3)
	assert.Equal(t, model.ConnectionID("b"), all[0].ID)
	assert.Equal(t, model.ConnectionID("c"), all[1].ID)
	assert.Equal(t, "/sse/two?x=1", all[1].Path)
	assert.Equal(t, 1, all[1].MessageCount)
	assert.Equal(t, model.StatusOpen, all[1].Status)

	filtered := s.Connections("example.com/sse")
	require.Len(t, filtered, 2)
	assert.Equal(t, model.ConnectionID("c"), filtered[0].ID)
	assert.Equal(t, model.ConnectionID("a"), filtered[1].ID)

	s.SetConnectionFilter("OTHER")
	sticky := s.Connections("")
	require.Len(t, sticky, 1)
	assert.Equal(t, model.ConnectionID("b"), sticky[0].ID)
}

func TestSession_NavigationResetsEverything(t *testing.T) {
	s := statusSession(t)
	s.AppendFilter(model.FilterCondition{Field: "status", Mode: model.ModeEquals, Value: "ok"})
	s.ApplyFilters()
	require.True(t, s.SelectMessage(1))

	assert.True(t, s.Dispatch(ctx, traffic.NewNavigationEnvelope()))

	assert.Empty(t, s.Connections(""))
	_, ok := s.SelectedConnection()
	assert.False(t, ok)
	assert.Empty(t, s.PendingFilters())
	assert.Empty(t, s.AppliedFilters())
	assert.Empty(t, s.Messages())
	_, ok = s.MessageDetail()
	assert.False(t, ok)

	// 重置后旧连接的事件被忽略
	push(s, "C1", 3, `{}`)
	assert.Empty(t, s.Connections(""))
}

func TestSession_InitSnapshot(t *testing.T) {
	s := New(Options{})
	ok := s.Dispatch(ctx, traffic.NewInitEnvelope(&model.Snapshot{Connections: map[model.ConnectionID]*model.Connection{
		"x": {ID: "x", URL: "https://a/x", Status: model.StatusClosed, CreatedAt: 1, Messages: []model.Message{{ID: 9, Data: `{"k":"v"}`}}},
	}}))
	require.True(t, ok)
	require.True(t, s.SelectConnection("x"))
	assert.Equal(t, []string{"k"}, s.AvailableFields())

	push(s, "x", 10, `{"k":"w"}`)
	assert.Len(t, s.Messages(), 2)
}

func TestSession_MessageDetail(t *testing.T) {
	s := statusSession(t)
	push(s, "C1", 3, `not json`)

	assert.False(t, s.SelectMessage(42))

	require.True(t, s.SelectMessage(1))
	d, ok := s.MessageDetail()
	require.True(t, ok)
	assert.Equal(t, "消息 #1 - message", d.Title)
	assert.True(t, d.IsJSON)
	assert.Equal(t, "{\n  \"status\": \"ok\",\n  \"code\": 200\n}", d.Formatted)

	require.True(t, s.SelectMessage(3))
	d, ok = s.MessageDetail()
	require.True(t, ok)
	assert.False(t, d.IsJSON)
	assert.Equal(t, "not json", d.Formatted)

	s.ClearMessageSelection()
	_, ok = s.MessageDetail()
	assert.False(t, ok)
}

func TestSession_ExportConnection(t *testing.T) {
	s := statusSession(t)
	push(s, "C1", 3, `tick`)

	doc, err := s.ExportConnection("C1")
	require.NoError(t, err)
	require.True(t, gjson.Valid(doc))
	assert.Equal(t, "open", gjson.Get(doc, "status").String())
	assert.Equal(t, int64(3), gjson.Get(doc, "messages.#").Int())
	assert.Equal(t, "fail", gjson.Get(doc, "messages.1.data.status").String())
	assert.Equal(t, "tick", gjson.Get(doc, "messages.2.data").String())

	_, err = s.ExportConnection("nope")
	assert.Error(t, err)
}

func TestURLPath(t *testing.T) {
	assert.Equal(t, "/a/b?c=1", urlPath("https://h/a/b?c=1"))
	assert.Equal(t, "/", urlPath("https://h"))
	assert.Equal(t, "relative/path", urlPath("relative/path"))
}
