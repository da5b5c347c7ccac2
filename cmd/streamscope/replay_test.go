package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"streamscope/internal/journal"
	"streamscope/internal/router"
	"streamscope/pkg/traffic"
)

func recordCapture(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "capture.db")
	j, err := journal.Open(journal.Options{DSN: dsn, Prefix: "streamscope_"})
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	r := router.New(router.Config{Recorder: j})
	r.Apply(ctx, traffic.StreamEvent{Type: traffic.EventConnection, ConnectionID: "c1", URL: "https://api.example.com/sse", Timestamp: 1})
	r.Apply(ctx, traffic.StreamEvent{Type: traffic.EventOpen, ConnectionID: "c1"})
	r.Apply(ctx, traffic.StreamEvent{Type: traffic.EventMessage, ConnectionID: "c1", MessageID: 1, EventName: "message", Data: `{"n":1,"user":{"name":"alice"}}`})
	r.Apply(ctx, traffic.StreamEvent{Type: traffic.EventMessage, ConnectionID: "c1", MessageID: 2, EventName: "message", Data: `{"n":2}`})
	r.Apply(ctx, traffic.StreamEvent{Type: traffic.EventConnection, ConnectionID: "c2", URL: "https://other.example.com/feed", Timestamp: 2})
	return dsn
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs(append(args, "--log-level", "error"))
	require.NoError(t, root.Execute())
	return buf.String()
}

func TestReplay_FilteredMessages(t *testing.T) {
	dsn := recordCapture(t)
	out := execute(t, "replay", "--journal", dsn, "--connection", "c1", "-f", "n=1")
	assert.Contains(t, out, "#1 message")
	assert.NotContains(t, out, "#2 message")
	assert.Contains(t, out, "显示 1/2 条消息")
}

func TestReplay_ListConnections(t *testing.T) {
	dsn := recordCapture(t)
	out := execute(t, "replay", "--journal", dsn, "--url", "API.EXAMPLE")
	assert.Contains(t, out, "https://api.example.com/sse")
	assert.Contains(t, out, "open")
	assert.NotContains(t, out, "other.example.com")
}

func TestReplay_Export(t *testing.T) {
	dsn := recordCapture(t)
	out := execute(t, "replay", "--journal", dsn, "--connection", "c1", "--export")
	assert.Equal(t, "https://api.example.com/sse", gjson.Get(out, "url").String())
	assert.Equal(t, int64(2), gjson.Get(out, "messages.#").Int())
}

func TestFields(t *testing.T) {
	dsn := recordCapture(t)
	out := execute(t, "fields", "--journal", dsn, "--connection", "c1")
	assert.Equal(t, "n\nuser\nuser.name\n", out)
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	conds, err := parseFilters([]string{"type=a"})
	require.NoError(t, err)
	p := newPrinter(&buf, conds, "sse")

	p.print(traffic.NewStreamEnvelope(traffic.StreamEvent{Type: traffic.EventConnection, ConnectionID: "abcdefghijkl", URL: "https://a/sse"}))
	p.print(traffic.NewStreamEnvelope(traffic.StreamEvent{Type: traffic.EventConnection, ConnectionID: "other", URL: "https://a/poll"}))
	p.print(traffic.NewStreamEnvelope(traffic.StreamEvent{Type: traffic.EventMessage, ConnectionID: "abcdefghijkl", MessageID: 1, Data: `{"type":"a"}`}))
	p.print(traffic.NewStreamEnvelope(traffic.StreamEvent{Type: traffic.EventMessage, ConnectionID: "abcdefghijkl", MessageID: 2, Data: `{"type":"b"}`}))
	p.print(traffic.NewStreamEnvelope(traffic.StreamEvent{Type: traffic.EventMessage, ConnectionID: "other", MessageID: 1, Data: `{"type":"a"}`}))
	p.print(traffic.NewNavigationEnvelope())
	p.print(traffic.NewStreamEnvelope(traffic.StreamEvent{Type: traffic.EventMessage, ConnectionID: "abcdefghijkl", MessageID: 3, Data: `{"type":"a"}`}))

	out := buf.String()
	assert.Contains(t, out, "[abcdefgh] connect https://a/sse")
	assert.Contains(t, out, "#1")
	assert.NotContains(t, out, "#2")
	assert.NotContains(t, out, "[other]")
	assert.Contains(t, out, "页面导航")
	assert.NotContains(t, out, "#3")
	assert.Equal(t, 2, p.seen)
	assert.Equal(t, 1, p.shown)
}
