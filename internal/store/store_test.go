package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamscope/pkg/model"
)

func conn(id string, createdAt int64) *model.Connection {
	return &model.Connection{
		ID:        model.ConnectionID(id),
		URL:       "https://example.com/" + id,
		Status:    model.StatusConnecting,
		CreatedAt: createdAt,
	}
}

func TestStore_CreateRejectsDuplicateID(t *testing.T) {
	s := New()
	assert.True(t, s.Create(conn("c1", 1)))
	assert.False(t, s.Create(conn("c1", 2)))
	assert.Equal(t, 1, s.Len())

	c, ok := s.Get("c1")
	require.True(t, ok)
	assert.Equal(t, int64(1), c.CreatedAt)
	assert.NotNil(t, c.Messages)
}

func TestStore_AppendAndStatusUnknown(t *testing.T) {
	s := New()
	assert.False(t, s.Append("nope", model.Message{ID: 1}))
	assert.False(t, s.SetStatus("nope", model.StatusOpen))
	assert.Nil(t, s.Messages("nope"))
}

func TestStore_MessagesAppendOnlyAndCopied(t *testing.T) {
	s := New()
	s.Create(conn("c1", 1))
	s.Append("c1", model.Message{ID: 1, Data: "a"})
	s.Append("c1", model.Message{ID: 7, Data: "b"})

	got := s.Messages("c1")
	require.Len(t, got, 2)
	got[0].Data = "mutated"

	again := s.Messages("c1")
	assert.Equal(t, "a", again[0].Data)
	assert.Equal(t, int64(7), again[1].ID)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := New()
	s.Create(conn("old", 100))
	s.Create(conn("new", 300))
	s.Create(conn("mid", 200))
	s.Create(conn("mid2", 200))

	var ids []model.ConnectionID
	for _, c := range s.List() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []model.ConnectionID{"new", "mid2", "mid", "old"}, ids)
}

func TestStore_ReplaceAndSnapshot(t *testing.T) {
	s := New()
	s.Create(conn("stale", 1))

	snap := &model.Snapshot{Connections: map[model.ConnectionID]*model.Connection{
		"b": conn("b", 20),
		"a": conn("a", 10),
	}}
	snap.Connections["a"].Messages = []model.Message{{ID: 1, Data: "x"}}
	s.Replace(snap)

	assert.False(t, s.Has("stale"))
	assert.Equal(t, 2, s.Len())

	// 快照被深拷贝，修改源不影响存储
	snap.Connections["a"].Messages[0].Data = "changed"
	assert.Equal(t, "x", s.Messages("a")[0].Data)

	out := s.Snapshot()
	assert.Len(t, out.Connections, 2)
	assert.Equal(t, "x", out.Connections["a"].Messages[0].Data)
}

func TestStore_Clear(t *testing.T) {
	s := New()
	s.Create(conn("c1", 1))
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.List())
}
