package postgres

import (
	"context"
	"fmt"
)

// EnsureSchema creates the chat tables for this prefix if they are missing.
// It is idempotent and runs at startup; there are no versioned migrations.
func EnsureSchema(ctx context.Context, config *RepositoryConfig) error {
	t := config.Tables
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id     TEXT NOT NULL,
				title       VARCHAR(255) NOT NULL,
				mode        TEXT,
				is_favorite BOOLEAN NOT NULL DEFAULT false,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, t.Chats),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_updated_idx ON %s (user_id, updated_at DESC)`, t.Chats, t.Chats),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				chat_id    UUID NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
				role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
				content    TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, t.Messages, t.Chats),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_chat_created_idx ON %s (chat_id, created_at)`, t.Messages, t.Messages),
	}

	for _, stmt := range statements {
		if _, err := config.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	config.Logger.Info("schema ready", "chats", t.Chats, "messages", t.Messages)
	return nil
}

// DropSchema removes the chat tables for this prefix. Dev and test only.
func DropSchema(ctx context.Context, config *RepositoryConfig) error {
	t := config.Tables
	stmt := fmt.Sprintf(`DROP TABLE IF EXISTS %s, %s CASCADE`, t.Messages, t.Chats)
	if _, err := config.Pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	config.Logger.Warn("schema dropped", "chats", t.Chats, "messages", t.Messages)
	return nil
}

// ClearUserChats deletes every chat (and, by cascade, message) owned by userID
func ClearUserChats(ctx context.Context, config *RepositoryConfig, userID string) (int64, error) {
	tag, err := config.Pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, config.Tables.Chats), userID)
	if err != nil {
		return 0, fmt.Errorf("clear chats: %w", err)
	}
	return tag.RowsAffected(), nil
}
