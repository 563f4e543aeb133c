package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex/internal/domain"
	"cortex/internal/domain/models"
)

func TestNewTableNames(t *testing.T) {
	tables := NewTableNames("test_")
	assert.Equal(t, "test_chats", tables.Chats)
	assert.Equal(t, "test_messages", tables.Messages)
}

func TestErrorClassification(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("query: %w", &pgconn.PgError{Code: code})
	}

	assert.True(t, IsPgDuplicateError(wrap("23505")))
	assert.True(t, IsPgForeignKeyError(wrap("23503")))
	assert.True(t, IsPgInvalidTextError(wrap("22P02")))
	assert.True(t, IsPgNoRowsError(fmt.Errorf("scan: %w", pgx.ErrNoRows)))

	assert.False(t, IsPgDuplicateError(wrap("23503")))
	assert.False(t, IsPgForeignKeyError(errors.New("plain")))
	assert.False(t, IsPgNoRowsError(nil))
}

// The tests below need a database: TEST_DATABASE_URL=postgres://...
func testConfig(t *testing.T) *RepositoryConfig {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := CreateConnectionPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	prefix := fmt.Sprintf("it_%s_", uuid.NewString()[:8])
	cfg := &RepositoryConfig{
		Pool:   pool,
		Tables: NewTableNames(prefix),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	require.NoError(t, EnsureSchema(ctx, cfg))
	t.Cleanup(func() {
		assert.NoError(t, DropSchema(ctx, cfg))
	})
	return cfg
}

func TestChatRepository_Lifecycle(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	chats := NewChatRepository(cfg)
	messages := NewMessageRepository(cfg)

	now := time.Now().UTC().Truncate(time.Millisecond)
	mode := "Inventory"
	chat := &models.Chat{UserID: "u1", Title: "Stock levels", Mode: &mode, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, chats.CreateChat(ctx, chat))
	require.NotEmpty(t, chat.ID)

	for i, role := range []models.Role{models.RoleUser, models.RoleAssistant} {
		msg := &models.Message{ChatID: chat.ID, Role: role, Content: string(role), CreatedAt: now.Add(time.Duration(i) * time.Second)}
		require.NoError(t, messages.CreateMessage(ctx, msg))
	}

	list, err := chats.ListChats(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Messages, 1)
	assert.Equal(t, models.RoleUser, list[0].Messages[0].Role)

	got, err := chats.GetChat(ctx, chat.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Inventory", models.ModeName(got.Mode))

	_, err = chats.GetChat(ctx, chat.ID, "someone-else")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = chats.GetChat(ctx, "not-a-uuid", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got.Mode = nil
	got.IsFavorite = true
	got.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, chats.UpdateChat(ctx, got))

	require.NoError(t, chats.TouchChat(ctx, chat.ID, "u1", now))
	got, err = chats.GetChat(ctx, chat.ID, "u1")
	require.NoError(t, err)
	assert.Nil(t, got.Mode)
	assert.True(t, got.IsFavorite)
	assert.True(t, got.UpdatedAt.Equal(now.Add(time.Minute)), "touch never moves updated_at back")

	msgs, err := messages.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	require.NoError(t, chats.DeleteChat(ctx, chat.ID, "u1"))
	assert.ErrorIs(t, chats.DeleteChat(ctx, chat.ID, "u1"), domain.ErrNotFound)

	msgs, err = messages.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestTransactionManager_RollsBack(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	chats := NewChatRepository(cfg)
	tm := NewTransactionManager(cfg)

	boom := errors.New("boom")
	err := tm.ExecTx(ctx, func(ctx context.Context) error {
		chat := &models.Chat{UserID: "u1", Title: "tx", CreatedAt: time.Now(), UpdatedAt: time.Now()}
		require.NoError(t, chats.CreateChat(ctx, chat))
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := chats.ListChats(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTransactionManager_NestedJoinsOuter(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	chats := NewChatRepository(cfg)
	tm := NewTransactionManager(cfg)

	boom := errors.New("boom")
	err := tm.ExecTx(ctx, func(ctx context.Context) error {
		inner := tm.ExecTx(ctx, func(ctx context.Context) error {
			chat := &models.Chat{UserID: "u1", Title: "inner", CreatedAt: time.Now(), UpdatedAt: time.Now()}
			return chats.CreateChat(ctx, chat)
		})
		require.NoError(t, inner)
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := chats.ListChats(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list, "inner work rolls back with the outer transaction")
}

func TestClearUserChats(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	chats := NewChatRepository(cfg)

	now := time.Now().UTC()
	for _, owner := range []string{"u1", "u1", "u2"} {
		require.NoError(t, chats.CreateChat(ctx, &models.Chat{UserID: owner, Title: "t", CreatedAt: now, UpdatedAt: now}))
	}

	n, err := ClearUserChats(ctx, cfg, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := chats.ListChats(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, left, 1)
}
