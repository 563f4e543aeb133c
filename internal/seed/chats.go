// Package seed fills a development database with sample conversations.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cortex/internal/domain/models"
	"cortex/internal/domain/repositories"
)

// Exchange is one user message and the assistant's answer
type Exchange struct {
	User      string
	Assistant string
}

// SampleChat is a conversation to seed
type SampleChat struct {
	Title     string
	Mode      string
	Favorite  bool
	Exchanges []Exchange
}

// ChatSeeder writes sample chats through the repositories
type ChatSeeder struct {
	chats     repositories.ChatRepository
	messages  repositories.MessageRepository
	txManager repositories.TransactionManager
	logger    *slog.Logger
	now       func() time.Time
}

// NewChatSeeder creates a new chat seeder
func NewChatSeeder(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *ChatSeeder {
	return &ChatSeeder{
		chats:     chats,
		messages:  messages,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
}

// Seed creates every sample chat for userID. Each chat is written in its
// own transaction; messages are spaced a second apart so their order is
// stable. Chats are backdated so the first sample is the most recent.
func (s *ChatSeeder) Seed(ctx context.Context, userID string, samples []SampleChat) ([]models.Chat, error) {
	base := s.now()
	created := make([]models.Chat, 0, len(samples))

	for i, sample := range samples {
		start := base.Add(-time.Duration(i+1) * time.Hour)

		var chat *models.Chat
		err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
			var err error
			chat, err = s.seedOne(ctx, userID, sample, start)
			return err
		})
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", sample.Title, err)
		}

		s.logger.Info("seeded chat",
			"chat_id", chat.ID,
			"title", chat.Title,
			"messages", len(chat.Messages),
		)
		created = append(created, *chat)
	}

	return created, nil
}

func (s *ChatSeeder) seedOne(ctx context.Context, userID string, sample SampleChat, start time.Time) (*models.Chat, error) {
	chat := &models.Chat{
		UserID:     userID,
		Title:      sample.Title,
		IsFavorite: sample.Favorite,
		CreatedAt:  start,
		UpdatedAt:  start,
	}
	if sample.Mode != "" {
		mode := sample.Mode
		chat.Mode = &mode
	}
	if err := s.chats.CreateChat(ctx, chat); err != nil {
		return nil, err
	}

	at := start
	add := func(role models.Role, content string) error {
		at = at.Add(time.Second)
		msg := &models.Message{ChatID: chat.ID, Role: role, Content: content, CreatedAt: at}
		if err := s.messages.CreateMessage(ctx, msg); err != nil {
			return err
		}
		chat.Messages = append(chat.Messages, *msg)
		return nil
	}

	for _, ex := range sample.Exchanges {
		if err := add(models.RoleUser, ex.User); err != nil {
			return nil, err
		}
		if err := add(models.RoleAssistant, ex.Assistant); err != nil {
			return nil, err
		}
	}

	if err := s.chats.TouchChat(ctx, chat.ID, userID, at); err != nil {
		return nil, err
	}
	chat.UpdatedAt = at
	return chat, nil
}

// DefaultChats are the conversations `cmd/seed` writes
func DefaultChats() []SampleChat {
	return []SampleChat{
		{
			Title:    "Hydraulic pump stock for A320 fleet",
			Mode:     "Inventory",
			Favorite: true,
			Exchanges: []Exchange{
				{
					User:      "How many hydraulic pumps do we have for the A320 fleet?",
					Assistant: "You have 14 engine-driven pumps on hand across two warehouses. Eight are serviceable, four are awaiting overhaul and two are quarantined pending paperwork.",
				},
				{
					User:      "Which ones are quarantined?",
					Assistant: "Serial numbers HP-20931 and HP-21877. Both are missing an EASA Form 1 from the last repair station.",
				},
			},
		},
		{
			Title: "Form 1 requirements for used serviceable parts",
			Mode:  "Compliance",
			Exchanges: []Exchange{
				{
					User:      "Do I need an EASA Form 1 for a used serviceable part installed on an N-registered aircraft?",
					Assistant: "For an N-registered aircraft the FAA 8130-3 is the native release document. A dual-release 8130-3/Form 1 is accepted in both systems, and it is the safest choice if the part may move to an EASA operator later.",
				},
			},
		},
		{
			Title: "Overdue work orders this week",
			Mode:  "Work Orders",
			Exchanges: []Exchange{
				{
					User:      "List the overdue work orders for this week",
					Assistant: "Three work orders are overdue: WO-4410 (landing gear inspection), WO-4425 (cabin pressure controller replacement) and WO-4431 (APU borescope).",
				},
			},
		},
	}
}
