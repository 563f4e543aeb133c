package llm

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
	"cortex/internal/generation"
)

// ErrGenerationFailed is returned when every candidate failed with a
// non-transient error. Handlers answer 500.
var ErrGenerationFailed = errors.New("failed to generate response")

// deepSearchHint is appended to the context when the caller asks for a
// deeper answer
const deepSearchHint = "Search thoroughly and cite the relevant regulations, part numbers or figures where available."

// Generator is the retrying, multi-model client
type Generator interface {
	Generate(ctx context.Context, prompt generation.Prompt) (*generation.Result, error)
}

// ContextResolver supplies the system context for a chat mode
type ContextResolver interface {
	ModeContext(mode string) string
}

// generationService implements services.GenerationService
type generationService struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	txManager   repositories.TransactionManager
	generator   Generator
	contexts    ContextResolver
	logger      *slog.Logger
	now         func() time.Time
}

// NewGenerationService creates the reply service
func NewGenerationService(
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	txManager repositories.TransactionManager,
	generator Generator,
	contexts ContextResolver,
	logger *slog.Logger,
) services.GenerationService {
	return &generationService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		txManager:   txManager,
		generator:   generator,
		contexts:    contexts,
		logger:      logger,
		now:         time.Now,
	}
}

// Reply stores the user message, generates an answer and stores it.
//
// When every candidate failed with a transient error the canned apology is
// stored and returned as a degraded reply, so the transcript on the server
// matches what the user sees.
func (s *generationService) Reply(ctx context.Context, req *services.ReplyRequest) (*services.ReplyResponse, error) {
	req.Message = strings.TrimSpace(req.Message)
	req.ChatID = strings.TrimSpace(req.ChatID)
	req.Mode = models.NormalizeMode(req.Mode)

	if err := validateReplyRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	chat, err := s.chatRepo.GetChat(ctx, req.ChatID, req.UserID)
	if err != nil {
		return nil, err
	}

	resp := &services.ReplyResponse{}

	if !req.Regenerate {
		userMsg := &models.Message{
			ChatID:    chat.ID,
			Content:   req.Message,
			Role:      models.RoleUser,
			CreatedAt: s.now(),
		}
		if err := s.messageRepo.CreateMessage(ctx, userMsg); err != nil {
			return nil, fmt.Errorf("save user message: %w", err)
		}
		resp.UserMessageID = userMsg.ID
	}

	mode := req.Mode
	if mode == nil {
		mode = chat.Mode
	}

	result, err := s.generator.Generate(ctx, s.buildPrompt(req.Message, mode, req.DeepSearch))
	switch {
	case err == nil:
		resp.Response = result.Text
		resp.Model = result.Model
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case generation.IsRetryable(err):
		s.logger.Warn("generation degraded",
			"chat_id", chat.ID,
			"status", generation.StatusOf(err),
			"error", err,
		)
		resp.Response = generation.ApologyFor(generation.StatusOf(err))
		resp.Degraded = true
	default:
		s.logger.Error("generation failed", "chat_id", chat.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	assistantMsg := &models.Message{
		ChatID:    chat.ID,
		Content:   resp.Response,
		Role:      models.RoleAssistant,
		CreatedAt: s.now(),
	}
	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.messageRepo.CreateMessage(ctx, assistantMsg); err != nil {
			return fmt.Errorf("save assistant message: %w", err)
		}
		return s.chatRepo.TouchChat(ctx, chat.ID, req.UserID, assistantMsg.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	resp.MessageID = assistantMsg.ID

	s.logger.Info("reply generated",
		"chat_id", chat.ID,
		"model", resp.Model,
		"degraded", resp.Degraded,
		"regenerate", req.Regenerate,
	)

	return resp, nil
}

// buildPrompt embeds the mode context ahead of the user message
func (s *generationService) buildPrompt(message string, mode *string, deepSearch bool) generation.Prompt {
	persona := s.contexts.ModeContext(models.ModeName(mode))
	if deepSearch {
		persona += " " + deepSearchHint
	}
	return generation.Prompt{
		Text: fmt.Sprintf("%s\n\nUser: %s\n\nProvide a helpful, professional response:", persona, message),
	}
}

func validateReplyRequest(req *services.ReplyRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.UserID, validation.Required),
		validation.Field(&req.ChatID, validation.Required.Error("Chat ID is required")),
		validation.Field(&req.Message,
			validation.Required.Error("Message is required"),
			validation.RuneLength(1, config.MaxMessageLength),
		),
		validation.Field(&req.Mode, validation.By(func(value any) error {
			mode, _ := value.(*string)
			if mode == nil || models.IsValidMode(*mode) {
				return nil
			}
			return errors.New("must be one of the available modes")
		})),
	)
}
