package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cortex/internal/domain"
	"cortex/internal/domain/models"
	"cortex/internal/domain/repositories"
)

// PostgresChatRepository implements the ChatRepository interface using PostgreSQL
type PostgresChatRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewChatRepository creates a new PostgresChatRepository
func NewChatRepository(config *RepositoryConfig) repositories.ChatRepository {
	return &PostgresChatRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateChat creates a new chat
func (r *PostgresChatRepository) CreateChat(ctx context.Context, chat *models.Chat) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, title, mode, is_favorite, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, r.tables.Chats)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		chat.UserID,
		chat.Title,
		chat.Mode,
		chat.IsFavorite,
		chat.CreatedAt,
		chat.UpdatedAt,
	).Scan(&chat.ID, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}

	return nil
}

// GetChat retrieves a chat by ID
func (r *PostgresChatRepository) GetChat(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, mode, is_favorite, created_at, updated_at
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Chats)

	var chat models.Chat
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, chatID, userID).Scan(
		&chat.ID,
		&chat.UserID,
		&chat.Title,
		&chat.Mode,
		&chat.IsFavorite,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) || IsPgInvalidTextError(err) {
			return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}

	return &chat, nil
}

// ListChats retrieves the user's chats with their first message
func (r *PostgresChatRepository) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	query := fmt.Sprintf(`
		SELECT c.id, c.user_id, c.title, c.mode, c.is_favorite, c.created_at, c.updated_at,
		       m.id, m.role, m.content, m.created_at
		FROM %s c
		LEFT JOIN LATERAL (
			SELECT id, role, content, created_at
			FROM %s
			WHERE chat_id = c.id
			ORDER BY created_at ASC
			LIMIT 1
		) m ON true
		WHERE c.user_id = $1
		ORDER BY c.updated_at DESC
	`, r.tables.Chats, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		chat, err := scanChatWithPreview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, chat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}

	// Return empty slice instead of nil
	if chats == nil {
		chats = []models.Chat{}
	}

	return chats, nil
}

func scanChatWithPreview(rows pgx.Rows) (models.Chat, error) {
	var (
		chat      models.Chat
		msgID     *string
		role      *string
		content   *string
		msgCreate *time.Time
	)
	err := rows.Scan(
		&chat.ID,
		&chat.UserID,
		&chat.Title,
		&chat.Mode,
		&chat.IsFavorite,
		&chat.CreatedAt,
		&chat.UpdatedAt,
		&msgID,
		&role,
		&content,
		&msgCreate,
	)
	if err != nil {
		return chat, err
	}

	chat.Messages = []models.Message{}
	if msgID != nil {
		chat.Messages = append(chat.Messages, models.Message{
			ID:        *msgID,
			ChatID:    chat.ID,
			Role:      models.Role(*role),
			Content:   *content,
			CreatedAt: *msgCreate,
		})
	}
	return chat, nil
}

// UpdateChat updates a chat's mutable fields
func (r *PostgresChatRepository) UpdateChat(ctx context.Context, chat *models.Chat) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, mode = $2, is_favorite = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6
	`, r.tables.Chats)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		chat.Title,
		chat.Mode,
		chat.IsFavorite,
		chat.UpdatedAt,
		chat.ID,
		chat.UserID,
	)
	if err != nil {
		if IsPgInvalidTextError(err) {
			return fmt.Errorf("chat %s: %w", chat.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("update chat: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", chat.ID, domain.ErrNotFound)
	}

	return nil
}

// TouchChat bumps updated_at, never moving it backwards
func (r *PostgresChatRepository) TouchChat(ctx context.Context, chatID, userID string, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET updated_at = GREATEST(updated_at, $1)
		WHERE id = $2 AND user_id = $3
	`, r.tables.Chats)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, at, chatID, userID)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	return nil
}

// DeleteChat removes a chat; messages go with it (ON DELETE CASCADE)
func (r *PostgresChatRepository) DeleteChat(ctx context.Context, chatID, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, r.tables.Chats)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, chatID, userID)
	if err != nil {
		if IsPgInvalidTextError(err) {
			return fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
		}
		return fmt.Errorf("delete chat: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}

	r.logger.Debug("chat deleted", "chat_id", chatID)
	return nil
}
