// Package store defines the persistence interfaces the pipeline consumes.
// The pipeline only ever appends reply messages; the single permitted
// mutation of an existing row is the best-effort LinkSourceID.
package store

import (
	"context"
	"errors"

	"github.com/nextlevelbuilder/autoreply/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// MessageStore persists conversation messages and their attachments.
type MessageStore interface {
	// Get loads a message with its attachments.
	Get(ctx context.Context, id int64) (*model.Message, error)

	// Create persists a message (and attachments) and returns its id.
	Create(ctx context.Context, m *model.Message) (int64, error)

	// LinkSourceID records a provider-assigned id on an existing message
	// after the fact. Best effort, non-exclusive.
	LinkSourceID(ctx context.Context, id int64, sourceID string) error
}

// ConversationStore loads conversations and their recent history.
type ConversationStore interface {
	// Get loads a conversation with its assignee and contact joined in.
	Get(ctx context.Context, id int64) (*model.Conversation, error)

	// Recent returns the last n messages of a conversation ordered by
	// creation time, oldest first.
	Recent(ctx context.Context, conversationID int64, n int) ([]model.Message, error)
}

// Stores aggregates the persistence interfaces a worker is wired with.
type Stores struct {
	Messages      MessageStore
	Conversations ConversationStore
}
