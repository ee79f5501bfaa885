// Package sqlite implements the stores on SQLite for standalone mode.
// The schema is created on open; managed mode uses golang-migrate instead.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/autoreply/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	is_ai INTEGER NOT NULL DEFAULT 0,
	agent_key TEXT NOT NULL DEFAULT '',
	human_clerk_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	status TEXT NOT NULL DEFAULT 'open',
	assignee_id INTEGER REFERENCES agents(id),
	channel_kind TEXT NOT NULL,
	contact_phone TEXT NOT NULL DEFAULT '',
	contact_source_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	source_id TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	message_type TEXT NOT NULL,
	sender_kind TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at);
CREATE TABLE IF NOT EXISTS attachments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	file_type TEXT NOT NULL,
	external_url TEXT NOT NULL DEFAULT '',
	data BLOB
);
CREATE TABLE IF NOT EXISTS locks (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
`

// OpenDB opens the SQLite database and ensures the schema exists.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The modernc driver is not safe for concurrent writes over multiple
	// connections; serialize through one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return db, nil
}

// NewStores builds all SQLite-backed stores over one handle.
func NewStores(db *sql.DB) *store.Stores {
	return &store.Stores{
		Messages:      NewMessageStore(db),
		Conversations: NewConversationStore(db),
	}
}
