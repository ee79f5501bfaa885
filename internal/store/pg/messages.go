package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/autoreply/internal/model"
	"github.com/nextlevelbuilder/autoreply/internal/store"
)

// MessageStore persists messages and attachments in Postgres.
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Get(ctx context.Context, id int64) (*model.Message, error) {
	var m model.Message
	err := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, source_id, content, message_type, sender_kind, created_at
		FROM messages WHERE id = $1`, id,
	).Scan(&m.ID, &m.ConversationID, &m.SourceID, &m.Content, &m.MessageType, &m.SenderKind, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_type, external_url, COALESCE(data, ''::bytea)
		FROM attachments WHERE message_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("get message %d attachments: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.ID, &a.FileType, &a.ExternalURL, &a.Data); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		m.Attachments = append(m.Attachments, a)
	}
	return &m, rows.Err()
}

func (s *MessageStore) Create(ctx context.Context, m *model.Message) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("create message: %w", err)
	}
	defer tx.Rollback()

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages (conversation_id, source_id, content, message_type, sender_kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		m.ConversationID, m.SourceID, m.Content, m.MessageType, m.SenderKind, createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	for _, a := range m.Attachments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attachments (message_id, file_type, external_url, data)
			VALUES ($1, $2, $3, $4)`,
			id, a.FileType, a.ExternalURL, a.Data,
		); err != nil {
			return 0, fmt.Errorf("insert attachment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("create message: %w", err)
	}
	return id, nil
}

func (s *MessageStore) LinkSourceID(ctx context.Context, id int64, sourceID string) error {
	// Non-exclusive by design: only fills the column when still empty.
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET source_id = $2 WHERE id = $1 AND source_id = ''`,
		id, sourceID)
	if err != nil {
		return fmt.Errorf("link source id on message %d: %w", id, err)
	}
	return nil
}
