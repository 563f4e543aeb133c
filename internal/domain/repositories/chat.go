package repositories

import (
	"context"
	"time"

	"cortex/internal/domain/models"
)

// ChatRepository defines data access for chats. Every method is scoped to
// the owning user; a chat owned by someone else is reported as not found.
type ChatRepository interface {
	// CreateChat inserts the chat and fills ID, CreatedAt and UpdatedAt
	CreateChat(ctx context.Context, chat *models.Chat) error

	// GetChat returns the chat without messages.
	// Returns domain.ErrNotFound if missing.
	GetChat(ctx context.Context, chatID, userID string) (*models.Chat, error)

	// ListChats returns the user's chats, newest activity first, each with
	// at most its first message attached for previews.
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)

	// UpdateChat persists title, mode, favorite flag and updated_at.
	// Returns domain.ErrNotFound if missing.
	UpdateChat(ctx context.Context, chat *models.Chat) error

	// TouchChat bumps updated_at.
	TouchChat(ctx context.Context, chatID, userID string, at time.Time) error

	// DeleteChat removes the chat and its messages.
	// Returns domain.ErrNotFound if missing.
	DeleteChat(ctx context.Context, chatID, userID string) error
}

// MessageRepository defines data access for chat messages
type MessageRepository interface {
	// CreateMessage inserts the message and fills ID and CreatedAt
	CreateMessage(ctx context.Context, msg *models.Message) error

	// ListMessages returns the chat's messages ordered by created_at ascending
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
}
