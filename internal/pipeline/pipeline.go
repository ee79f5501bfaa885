// Package pipeline is the embedding point for the ingest path: it persists
// an incoming message and runs the trigger decision inline, the way the
// webhook layer (outside this module) invokes the core.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/autoreply/internal/model"
	"github.com/nextlevelbuilder/autoreply/internal/store"
	"github.com/nextlevelbuilder/autoreply/internal/trigger"
)

// Service ties message persistence to the trigger decision engine.
type Service struct {
	stores  *store.Stores
	trigger *trigger.Engine
}

// New creates the ingest service.
func New(stores *store.Stores, engine *trigger.Engine) *Service {
	return &Service{stores: stores, trigger: engine}
}

// IngestMessage persists msg and evaluates the trigger inline. It returns
// the persisted message id; trigger ineligibility is not an error. The
// caller does not wait for any enqueued job.
func (s *Service) IngestMessage(ctx context.Context, msg *model.Message) (int64, error) {
	id, err := s.stores.Messages.Create(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("persist incoming message: %w", err)
	}
	msg.ID = id

	conv, err := s.stores.Conversations.Get(ctx, msg.ConversationID)
	if err != nil {
		// The message is stored; a missing conversation only means no trigger.
		slog.Warn("ingest: conversation lookup failed, trigger skipped",
			"message_id", id, "conversation_id", msg.ConversationID, "error", err)
		return id, nil
	}

	s.trigger.Evaluate(ctx, msg, conv)
	return id, nil
}

// LinkProviderID records a provider-assigned source id on a persisted
// message after the provider acknowledges it. Best effort.
func (s *Service) LinkProviderID(ctx context.Context, messageID int64, sourceID string) {
	if sourceID == "" {
		return
	}
	if err := s.stores.Messages.LinkSourceID(ctx, messageID, sourceID); err != nil {
		slog.Warn("ingest: source id link failed", "message_id", messageID, "error", err)
	}
}
