package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"cortex/internal/config"
	"cortex/internal/domain"
	"cortex/internal/domain/models"
	"cortex/internal/domain/repositories"
	"cortex/internal/domain/services"
)

// chatService implements the ChatService interface
type chatService struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	logger      *slog.Logger
	now         func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	logger *slog.Logger,
) services.ChatService {
	return &chatService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateChat creates an empty chat
func (s *chatService) CreateChat(ctx context.Context, req *services.CreateChatRequest) (*models.Chat, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Mode = models.NormalizeMode(req.Mode)

	if err := validateCreateChatRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := s.now()
	chat := &models.Chat{
		UserID:    req.UserID,
		Title:     req.Title,
		Mode:      req.Mode,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.chatRepo.CreateChat(ctx, chat); err != nil {
		return nil, err
	}
	chat.Messages = []models.Message{}

	s.logger.Info("chat created",
		"chat_id", chat.ID,
		"mode", models.ModeName(chat.Mode),
		"user_id", req.UserID,
	)

	return chat, nil
}

// GetChat retrieves a chat with its full transcript
func (s *chatService) GetChat(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	chat, err := s.chatRepo.GetChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListMessages(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	models.SortMessages(messages)
	chat.Messages = messages

	return chat, nil
}

// ListChats retrieves the user's chats with preview messages
func (s *chatService) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	return s.chatRepo.ListChats(ctx, userID)
}

// UpdateChat applies a partial update
func (s *chatService) UpdateChat(ctx context.Context, chatID, userID string, req *services.UpdateChatRequest) (*models.Chat, error) {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		req.Title = &title
	}
	if req.Mode.Present {
		req.Mode.Value = models.NormalizeMode(req.Mode.Value)
	}

	if err := validateUpdateChatRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	chat, err := s.chatRepo.GetChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		chat.Title = *req.Title
	}
	if req.Mode.Present {
		chat.Mode = req.Mode.Value
	}
	if req.IsFavorite != nil {
		chat.IsFavorite = *req.IsFavorite
	}
	chat.UpdatedAt = s.now()

	if err := s.chatRepo.UpdateChat(ctx, chat); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListMessages(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	chat.Messages = messages

	s.logger.Debug("chat updated", "chat_id", chat.ID)
	return chat, nil
}

// DeleteChat removes a chat and its messages
func (s *chatService) DeleteChat(ctx context.Context, chatID, userID string) error {
	if err := s.chatRepo.DeleteChat(ctx, chatID, userID); err != nil {
		return err
	}

	s.logger.Info("chat deleted", "chat_id", chatID, "user_id", userID)
	return nil
}

// Validation

func validateCreateChatRequest(req *services.CreateChatRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.UserID, validation.Required),
		validation.Field(&req.Title,
			validation.Required,
			validation.RuneLength(1, config.MaxChatTitleLength),
		),
		validation.Field(&req.Mode, validation.By(validMode)),
	)
}

func validateUpdateChatRequest(req *services.UpdateChatRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Title,
			validation.NilOrNotEmpty,
			validation.RuneLength(1, config.MaxChatTitleLength),
		),
		validation.Field(&req.Mode, validation.By(func(value any) error {
			mode, _ := value.(models.Optional[string])
			return validMode(mode.Value)
		})),
	)
}

// validMode accepts nil or one of models.Modes
func validMode(value any) error {
	mode, _ := value.(*string)
	if mode == nil || models.IsValidMode(*mode) {
		return nil
	}
	return errors.New("must be one of the available modes")
}
