package services

import (
	"context"

	"cortex/internal/domain/models"
)

// ChatService defines the business logic for chat persistence
type ChatService interface {
	// CreateChat creates an empty chat owned by req.UserID
	CreateChat(ctx context.Context, req *CreateChatRequest) (*models.Chat, error)

	// GetChat returns the chat with its full, ordered message list
	GetChat(ctx context.Context, chatID, userID string) (*models.Chat, error)

	// ListChats returns the user's chats newest first, each with its first message
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)

	// UpdateChat applies the fields present in req
	UpdateChat(ctx context.Context, chatID, userID string, req *UpdateChatRequest) (*models.Chat, error)

	// DeleteChat removes the chat and its messages
	DeleteChat(ctx context.Context, chatID, userID string) error
}

// CreateChatRequest is the DTO for creating a new chat
type CreateChatRequest struct {
	UserID string  `json:"-"`
	Title  string  `json:"title"`
	Mode   *string `json:"mode"`
}

// UpdateChatRequest is the DTO for PATCH /api/chats/{id}.
// Mode distinguishes "absent" from "null" so a client can clear it.
type UpdateChatRequest struct {
	Title      *string                 `json:"title"`
	Mode       models.Optional[string] `json:"mode"`
	IsFavorite *bool                   `json:"isFavorite"`
}
