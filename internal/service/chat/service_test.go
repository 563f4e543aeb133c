package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex/internal/domain"
	"cortex/internal/domain/models"
	"cortex/internal/domain/services"
)

type fakeChatRepo struct {
	chats map[string]*models.Chat
	seq   int
}

func (r *fakeChatRepo) CreateChat(_ context.Context, chat *models.Chat) error {
	r.seq++
	chat.ID = fmt.Sprintf("chat-%d", r.seq)
	cp := *chat
	r.chats[chat.ID] = &cp
	return nil
}

func (r *fakeChatRepo) GetChat(_ context.Context, chatID, userID string) (*models.Chat, error) {
	c, ok := r.chats[chatID]
	if !ok || c.UserID != userID {
		return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeChatRepo) ListChats(_ context.Context, userID string) ([]models.Chat, error) {
	out := []models.Chat{}
	for _, c := range r.chats {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeChatRepo) UpdateChat(_ context.Context, chat *models.Chat) error {
	if _, ok := r.chats[chat.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *chat
	r.chats[chat.ID] = &cp
	return nil
}

func (r *fakeChatRepo) TouchChat(_ context.Context, chatID, _ string, at time.Time) error {
	r.chats[chatID].UpdatedAt = at
	return nil
}

func (r *fakeChatRepo) DeleteChat(_ context.Context, chatID, userID string) error {
	if c, ok := r.chats[chatID]; !ok || c.UserID != userID {
		return fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	delete(r.chats, chatID)
	return nil
}

type fakeMessageRepo struct {
	byChat map[string][]models.Message
}

func (r *fakeMessageRepo) CreateMessage(_ context.Context, msg *models.Message) error {
	r.byChat[msg.ChatID] = append(r.byChat[msg.ChatID], *msg)
	return nil
}

func (r *fakeMessageRepo) ListMessages(_ context.Context, chatID string) ([]models.Message, error) {
	return append([]models.Message{}, r.byChat[chatID]...), nil
}

func newService() (*chatService, *fakeChatRepo, *fakeMessageRepo) {
	chats := &fakeChatRepo{chats: map[string]*models.Chat{}}
	msgs := &fakeMessageRepo{byChat: map[string][]models.Message{}}
	svc := NewChatService(chats, msgs, slog.New(slog.NewTextHandler(io.Discard, nil))).(*chatService)
	return svc, chats, msgs
}

func strPtr(s string) *string { return &s }

func TestCreateChat(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	chat, err := svc.CreateChat(ctx, &services.CreateChatRequest{UserID: "u1", Title: "  Hello  ", Mode: strPtr("Inventory")})
	require.NoError(t, err)
	assert.Equal(t, "Hello", chat.Title)
	assert.Equal(t, "Inventory", models.ModeName(chat.Mode))
	assert.NotNil(t, chat.Messages)

	chat, err = svc.CreateChat(ctx, &services.CreateChatRequest{UserID: "u1", Title: "x", Mode: strPtr(models.ModePlaceholder)})
	require.NoError(t, err)
	assert.Nil(t, chat.Mode)
}

func TestCreateChat_Validation(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	tests := []struct {
		name string
		req  services.CreateChatRequest
	}{
		{"missing title", services.CreateChatRequest{UserID: "u1", Title: "   "}},
		{"title too long", services.CreateChatRequest{UserID: "u1", Title: strings.Repeat("a", 256)}},
		{"unknown mode", services.CreateChatRequest{UserID: "u1", Title: "ok", Mode: strPtr("Astrology")}},
		{"no user", services.CreateChatRequest{Title: "ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateChat(ctx, &tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestGetChat_SortsMessages(t *testing.T) {
	svc, _, msgs := newService()
	ctx := context.Background()
	chat, err := svc.CreateChat(ctx, &services.CreateChatRequest{UserID: "u1", Title: "t"})
	require.NoError(t, err)

	t0 := time.Now()
	msgs.byChat[chat.ID] = []models.Message{
		{ID: "m2", ChatID: chat.ID, Role: models.RoleAssistant, CreatedAt: t0.Add(time.Second)},
		{ID: "m1", ChatID: chat.ID, Role: models.RoleUser, CreatedAt: t0},
	}

	got, err := svc.GetChat(ctx, chat.ID, "u1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "m1", got.Messages[0].ID)

	_, err = svc.GetChat(ctx, chat.ID, "u2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateChat_Partial(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()
	chat, err := svc.CreateChat(ctx, &services.CreateChatRequest{UserID: "u1", Title: "t", Mode: strPtr("Compliance")})
	require.NoError(t, err)

	fav := true
	got, err := svc.UpdateChat(ctx, chat.ID, "u1", &services.UpdateChatRequest{IsFavorite: &fav})
	require.NoError(t, err)
	assert.True(t, got.IsFavorite)
	assert.Equal(t, "t", got.Title)
	assert.Equal(t, "Compliance", models.ModeName(got.Mode), "absent mode is untouched")

	got, err = svc.UpdateChat(ctx, chat.ID, "u1", &services.UpdateChatRequest{Mode: models.Clear[string](), Title: strPtr(" renamed ")})
	require.NoError(t, err)
	assert.Nil(t, got.Mode)
	assert.Equal(t, "renamed", got.Title)
	assert.True(t, repo.chats[chat.ID].IsFavorite)

	_, err = svc.UpdateChat(ctx, chat.ID, "u1", &services.UpdateChatRequest{Title: strPtr("  ")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.UpdateChat(ctx, chat.ID, "u1", &services.UpdateChatRequest{Mode: models.Set("Astrology")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.UpdateChat(ctx, "missing", "u1", &services.UpdateChatRequest{IsFavorite: &fav})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteChat(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	chat, err := svc.CreateChat(ctx, &services.CreateChatRequest{UserID: "u1", Title: "t"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteChat(ctx, chat.ID, "u2"), domain.ErrNotFound)
	require.NoError(t, svc.DeleteChat(ctx, chat.ID, "u1"))
	assert.ErrorIs(t, svc.DeleteChat(ctx, chat.ID, "u1"), domain.ErrNotFound)
}
