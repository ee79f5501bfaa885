package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/nextlevelbuilder/autoreply/internal/model"
	"github.com/nextlevelbuilder/autoreply/internal/store"
)

// ConversationStore loads conversations with assignee and contact joined.
type ConversationStore struct {
	db *sql.DB
}

func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

func (s *ConversationStore) Get(ctx context.Context, id int64) (*model.Conversation, error) {
	var (
		c          model.Conversation
		assigneeID sql.NullInt64
		isAI       sql.NullBool
		agentKey   sql.NullString
		clerkID    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.status, c.channel_kind, c.contact_phone, c.contact_source_id, c.created_at,
		       a.id, a.is_ai, a.agent_key, a.human_clerk_id
		FROM conversations c
		LEFT JOIN agents a ON a.id = c.assignee_id
		WHERE c.id = $1`, id,
	).Scan(
		&c.ID, &c.Status, &c.ChannelKind, &c.Contact.PhoneNumber, &c.Contact.SourceID, &c.CreatedAt,
		&assigneeID, &isAI, &agentKey, &clerkID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %d: %w", id, err)
	}

	if assigneeID.Valid {
		c.Assignee = &model.Agent{
			ID:           assigneeID.Int64,
			IsAI:         isAI.Bool,
			AgentKey:     agentKey.String,
			HumanClerkID: clerkID.String,
		}
	}
	return &c, nil
}

func (s *ConversationStore) Recent(ctx context.Context, conversationID int64, n int) ([]model.Message, error) {
	// Inner query picks the newest n; the outer flips them back to
	// chronological order for the history payload.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, source_id, content, message_type, sender_kind, created_at, file_types
		FROM (
			SELECT m.id, m.conversation_id, m.source_id, m.content, m.message_type, m.sender_kind, m.created_at,
			       COALESCE(array_agg(a.file_type) FILTER (WHERE a.id IS NOT NULL), '{}') AS file_types
			FROM messages m
			LEFT JOIN attachments a ON a.message_id = m.id
			WHERE m.conversation_id = $1
			GROUP BY m.id
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $2
		) latest
		ORDER BY created_at ASC, id ASC`,
		conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("recent messages for conversation %d: %w", conversationID, err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			m     model.Message
			kinds []string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SourceID, &m.Content,
			&m.MessageType, &m.SenderKind, &m.CreatedAt, pq.Array(&kinds)); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		for _, k := range kinds {
			m.Attachments = append(m.Attachments, model.Attachment{FileType: model.FileType(k)})
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
