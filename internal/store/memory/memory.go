// Package memory provides in-memory stores for tests and local experiments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nextlevelbuilder/autoreply/internal/model"
	"github.com/nextlevelbuilder/autoreply/internal/store"
)

// Stores holds both in-memory stores over a shared message table.
type Stores struct {
	Messages      *MessageStore
	Conversations *ConversationStore
}

// New creates empty in-memory stores.
func New() *Stores {
	msgs := &MessageStore{byID: make(map[int64]*model.Message)}
	return &Stores{
		Messages:      msgs,
		Conversations: &ConversationStore{byID: make(map[int64]*model.Conversation), msgs: msgs},
	}
}

// AsStores adapts to the interface aggregate.
func (s *Stores) AsStores() *store.Stores {
	return &store.Stores{Messages: s.Messages, Conversations: s.Conversations}
}

// MessageStore keeps messages in a map, ids assigned sequentially.
type MessageStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.Message
}

func (s *MessageStore) Get(_ context.Context, id int64) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	cp.Attachments = append([]model.Attachment(nil), m.Attachments...)
	return &cp, nil
}

func (s *MessageStore) Create(_ context.Context, m *model.Message) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *m
	cp.ID = s.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.Attachments = append([]model.Attachment(nil), m.Attachments...)
	s.byID[cp.ID] = &cp
	return cp.ID, nil
}

func (s *MessageStore) LinkSourceID(_ context.Context, id int64, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.byID[id]; ok && m.SourceID == "" {
		m.SourceID = sourceID
	}
	return nil
}

// All returns every stored message ordered by id. Test helper.
func (s *MessageStore) All() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.byID[id])
	}
	return out
}

// ConversationStore keeps conversations in a map.
type ConversationStore struct {
	mu   sync.Mutex
	byID map[int64]*model.Conversation
	msgs *MessageStore
}

// Put inserts or replaces a conversation. Test helper.
func (s *ConversationStore) Put(c *model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[c.ID] = c
}

func (s *ConversationStore) Get(_ context.Context, id int64) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	if c.Assignee != nil {
		a := *c.Assignee
		cp.Assignee = &a
	}
	return &cp, nil
}

func (s *ConversationStore) Recent(_ context.Context, conversationID int64, n int) ([]model.Message, error) {
	s.msgs.mu.Lock()
	defer s.msgs.mu.Unlock()

	var msgs []model.Message
	for _, m := range s.msgs.byID {
		if m.ConversationID == conversationID {
			msgs = append(msgs, *m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}
