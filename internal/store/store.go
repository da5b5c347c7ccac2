package store

import (
	"sort"
	"sync"

	"streamscope/pkg/model"
)

// Store 有序的连接注册表，独占所有连接与消息数据
type Store struct {
	mu    sync.RWMutex
	conns map[model.ConnectionID]*model.Connection
	order []model.ConnectionID
}

// New 创建空的连接存储
func New() *Store {
	return &Store{conns: make(map[model.ConnectionID]*model.Connection)}
}

// Create 登记新连接，ID 已存在时返回 false
func (s *Store) Create(c *model.Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[c.ID]; ok {
		return false
	}
	cp := c.Clone()
	if cp.Messages == nil {
		cp.Messages = []model.Message{}
	}
	s.conns[c.ID] = cp
	s.order = append(s.order, c.ID)
	return true
}

// SetStatus 更新连接状态，连接不存在时返回 false
func (s *Store) SetStatus(id model.ConnectionID, st model.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return false
	}
	c.Status = st
	return true
}

// Append 向连接追加消息，连接不存在时返回 false
func (s *Store) Append(id model.ConnectionID, m model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return false
	}
	c.Messages = append(c.Messages, m)
	return true
}

// Get 返回连接副本
func (s *Store) Get(id model.ConnectionID) (*model.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Has 连接是否存在
func (s *Store) Has(id model.ConnectionID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conns[id]
	return ok
}

// Messages 返回连接消息的副本
func (s *Store) Messages(id model.ConnectionID) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	if !ok {
		return nil
	}
	out := make([]model.Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// List 按创建时间倒序返回连接副本，时间相同时后登记的在前
func (s *Store) List() []*model.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*model.Connection, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		list = append(list, s.conns[s.order[i]].Clone())
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt > list[j].CreatedAt
	})
	return list
}

// Len 连接数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Clear 丢弃所有连接与消息
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns = make(map[model.ConnectionID]*model.Connection)
	s.order = nil
}

// Replace 以快照内容替换存储，按创建时间升序登记（同一时间按 ID）
func (s *Store) Replace(snap *model.Snapshot) {
	var conns []*model.Connection
	if snap != nil {
		for id, c := range snap.Connections {
			if c == nil {
				continue
			}
			cp := c.Clone()
			cp.ID = id
			conns = append(conns, cp)
		}
	}
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].CreatedAt != conns[j].CreatedAt {
			return conns[i].CreatedAt < conns[j].CreatedAt
		}
		return conns[i].ID < conns[j].ID
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns = make(map[model.ConnectionID]*model.Connection, len(conns))
	s.order = make([]model.ConnectionID, 0, len(conns))
	for _, c := range conns {
		if c.Messages == nil {
			c.Messages = []model.Message{}
		}
		s.conns[c.ID] = c
		s.order = append(s.order, c.ID)
	}
}

// Snapshot 导出当前状态的深拷贝
func (s *Store) Snapshot() *model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &model.Snapshot{Connections: make(map[model.ConnectionID]*model.Connection, len(s.conns))}
	for id, c := range s.conns {
		snap.Connections[id] = c.Clone()
	}
	return snap
}
