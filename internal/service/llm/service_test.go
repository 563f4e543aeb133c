package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex/internal/domain"
	"cortex/internal/domain/models"
	"cortex/internal/domain/repositories"
	"cortex/internal/domain/services"
	"cortex/internal/generation"
)

type fakeChatRepo struct {
	chats   map[string]*models.Chat
	touched []string
}

func (r *fakeChatRepo) CreateChat(context.Context, *models.Chat) error { return nil }

func (r *fakeChatRepo) GetChat(_ context.Context, chatID, userID string) (*models.Chat, error) {
	c, ok := r.chats[chatID]
	if !ok || c.UserID != userID {
		return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeChatRepo) ListChats(context.Context, string) ([]models.Chat, error) { return nil, nil }
func (r *fakeChatRepo) UpdateChat(context.Context, *models.Chat) error           { return nil }
func (r *fakeChatRepo) DeleteChat(context.Context, string, string) error         { return nil }

func (r *fakeChatRepo) TouchChat(_ context.Context, chatID, _ string, _ time.Time) error {
	r.touched = append(r.touched, chatID)
	return nil
}

type fakeMessageRepo struct {
	saved []models.Message
	err   error
}

func (r *fakeMessageRepo) CreateMessage(_ context.Context, msg *models.Message) error {
	if r.err != nil {
		return r.err
	}
	msg.ID = fmt.Sprintf("msg-%d", len(r.saved)+1)
	r.saved = append(r.saved, *msg)
	return nil
}

func (r *fakeMessageRepo) ListMessages(context.Context, string) ([]models.Message, error) {
	return r.saved, nil
}

type fakeTx struct{ calls int }

func (t *fakeTx) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	t.calls++
	return fn(ctx)
}

type fakeGenerator struct {
	prompts []generation.Prompt
	result  *generation.Result
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt generation.Prompt) (*generation.Result, error) {
	g.prompts = append(g.prompts, prompt)
	return g.result, g.err
}

type staticContexts map[string]string

func (c staticContexts) ModeContext(mode string) string {
	if v, ok := c[mode]; ok {
		return v
	}
	return c[""]
}

type replyFixture struct {
	chats    *fakeChatRepo
	messages *fakeMessageRepo
	tx       *fakeTx
	gen      *fakeGenerator
	svc      services.GenerationService
}

func newReplyFixture(gen *fakeGenerator) *replyFixture {
	inventory := "Inventory"
	f := &replyFixture{
		chats: &fakeChatRepo{chats: map[string]*models.Chat{
			"chat-1": {ID: "chat-1", UserID: "user-1", Title: "Stock"},
			"chat-2": {ID: "chat-2", UserID: "user-1", Title: "Parts", Mode: &inventory},
		}},
		messages: &fakeMessageRepo{},
		tx:       &fakeTx{},
		gen:      gen,
	}
	contexts := staticContexts{"": "You are CortexAI.", "Inventory": "You manage inventory.", "Compliance": "You know the FARs."}
	f.svc = NewGenerationService(f.chats, f.messages, f.tx, gen, contexts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func TestReply_SavesBothSides(t *testing.T) {
	f := newReplyFixture(&fakeGenerator{result: &generation.Result{Text: "Plenty in stock.", Model: "lorem/lorem-fast"}})

	resp, err := f.svc.Reply(context.Background(), &services.ReplyRequest{
		UserID:  "user-1",
		ChatID:  "chat-1",
		Message: "  How many brackets?  ",
	})
	require.NoError(t, err)

	assert.Equal(t, "Plenty in stock.", resp.Response)
	assert.Equal(t, "msg-2", resp.MessageID)
	assert.Equal(t, "msg-1", resp.UserMessageID)
	assert.Equal(t, "lorem/lorem-fast", resp.Model)
	assert.False(t, resp.Degraded)

	require.Len(t, f.messages.saved, 2)
	assert.Equal(t, models.RoleUser, f.messages.saved[0].Role)
	assert.Equal(t, "How many brackets?", f.messages.saved[0].Content)
	assert.Equal(t, models.RoleAssistant, f.messages.saved[1].Role)
	assert.Equal(t, 1, f.tx.calls)
	assert.Equal(t, []string{"chat-1"}, f.chats.touched)

	require.Len(t, f.gen.prompts, 1)
	assert.Equal(t, "You are CortexAI.\n\nUser: How many brackets?\n\nProvide a helpful, professional response:", f.gen.prompts[0].Text)
}

func TestReply_ModeContext(t *testing.T) {
	tests := []struct {
		name       string
		chatID     string
		mode       *string
		deepSearch bool
		wantPrefix string
	}{
		{name: "chat mode", chatID: "chat-2", wantPrefix: "You manage inventory.\n\n"},
		{name: "request mode wins", chatID: "chat-2", mode: strPtr("Compliance"), wantPrefix: "You know the FARs.\n\n"},
		{name: "placeholder falls back to chat", chatID: "chat-2", mode: strPtr("Select Modes"), wantPrefix: "You manage inventory.\n\n"},
		{name: "deep search hint", chatID: "chat-1", deepSearch: true, wantPrefix: "You are CortexAI. " + deepSearchHint + "\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReplyFixture(&fakeGenerator{result: &generation.Result{Text: "ok"}})
			_, err := f.svc.Reply(context.Background(), &services.ReplyRequest{
				UserID:     "user-1",
				ChatID:     tt.chatID,
				Message:    "hi",
				Mode:       tt.mode,
				DeepSearch: tt.deepSearch,
			})
			require.NoError(t, err)
			require.Len(t, f.gen.prompts, 1)
			assert.True(t, strings.HasPrefix(f.gen.prompts[0].Text, tt.wantPrefix), f.gen.prompts[0].Text)
		})
	}
}

func TestReply_RegenerateSkipsUserMessage(t *testing.T) {
	f := newReplyFixture(&fakeGenerator{result: &generation.Result{Text: "Second try."}})

	resp, err := f.svc.Reply(context.Background(), &services.ReplyRequest{
		UserID:     "user-1",
		ChatID:     "chat-1",
		Message:    "Again please",
		Regenerate: true,
	})
	require.NoError(t, err)

	assert.Empty(t, resp.UserMessageID)
	require.Len(t, f.messages.saved, 1)
	assert.Equal(t, models.RoleAssistant, f.messages.saved[0].Role)
}

func TestReply_DegradedApologyIsPersisted(t *testing.T) {
	overloaded := &generation.ExhaustedError{
		Models:   []string{"a", "b"},
		Attempts: 6,
		Err:      &generation.StatusError{Status: http.StatusServiceUnavailable},
	}
	f := newReplyFixture(&fakeGenerator{err: overloaded})

	resp, err := f.svc.Reply(context.Background(), &services.ReplyRequest{UserID: "user-1", ChatID: "chat-1", Message: "hi"})
	require.NoError(t, err)

	assert.True(t, resp.Degraded)
	assert.Equal(t, generation.OverloadedMessage, resp.Response)
	require.Len(t, f.messages.saved, 2)
	assert.Equal(t, generation.OverloadedMessage, f.messages.saved[1].Content)
	assert.Equal(t, resp.MessageID, f.messages.saved[1].ID)
}

func TestReply_HardFailure(t *testing.T) {
	f := newReplyFixture(&fakeGenerator{err: &generation.StatusError{Status: http.StatusBadRequest}})

	_, err := f.svc.Reply(context.Background(), &services.ReplyRequest{UserID: "user-1", ChatID: "chat-1", Message: "hi"})
	require.ErrorIs(t, err, ErrGenerationFailed)

	// the user message stays, no assistant message was written
	require.Len(t, f.messages.saved, 1)
	assert.Equal(t, 0, f.tx.calls)
}

func TestReply_CancelledContext(t *testing.T) {
	f := newReplyFixture(&fakeGenerator{err: context.Canceled})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Reply(ctx, &services.ReplyRequest{UserID: "user-1", ChatID: "chat-1", Message: "hi"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.tx.calls)
}

func TestReply_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		req     services.ReplyRequest
		wantErr error
	}{
		{name: "blank message", req: services.ReplyRequest{UserID: "user-1", ChatID: "chat-1", Message: "   "}, wantErr: domain.ErrValidation},
		{name: "missing chat id", req: services.ReplyRequest{UserID: "user-1", Message: "hi"}, wantErr: domain.ErrValidation},
		{name: "unknown mode", req: services.ReplyRequest{UserID: "user-1", ChatID: "chat-1", Message: "hi", Mode: strPtr("Astrology")}, wantErr: domain.ErrValidation},
		{name: "unknown chat", req: services.ReplyRequest{UserID: "user-1", ChatID: "nope", Message: "hi"}, wantErr: domain.ErrNotFound},
		{name: "other user's chat", req: services.ReplyRequest{UserID: "user-2", ChatID: "chat-1", Message: "hi"}, wantErr: domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReplyFixture(&fakeGenerator{result: &generation.Result{Text: "ok"}})
			req := tt.req
			_, err := f.svc.Reply(context.Background(), &req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.messages.saved)
			assert.Empty(t, f.gen.prompts)
		})
	}
}

func TestReply_UserMessageSaveFails(t *testing.T) {
	f := newReplyFixture(&fakeGenerator{result: &generation.Result{Text: "ok"}})
	f.messages.err = errors.New("connection reset")

	_, err := f.svc.Reply(context.Background(), &services.ReplyRequest{UserID: "user-1", ChatID: "chat-1", Message: "hi"})
	require.Error(t, err)
	assert.Empty(t, f.gen.prompts)
}

// failingProvider answers with a fixed upstream status
type failingProvider struct {
	status int
	calls  int
}

func (p *failingProvider) Name() string              { return "lorem" }
func (p *failingProvider) SupportsModel(string) bool { return true }
func (p *failingProvider) GenerateResponse(context.Context, *services.GenerateRequest) (*services.GenerateResponse, error) {
	p.calls++
	return nil, &generation.StatusError{Status: p.status}
}

func TestReply_ThroughRegistry(t *testing.T) {
	provider := &failingProvider{status: http.StatusTooManyRequests}
	registry := NewProviderRegistry(fixedBudget(256))
	registry.Register(provider)

	client, err := generation.NewClient(registry, generation.Config{
		Models:      []string{"lorem/lorem-a", "lorem/lorem-b"},
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	f := newReplyFixture(nil)
	f.svc = NewGenerationService(f.chats, f.messages, f.tx, client, staticContexts{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	resp, err := f.svc.Reply(context.Background(), &services.ReplyRequest{UserID: "user-1", ChatID: "chat-1", Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, 4, provider.calls)
	assert.True(t, resp.Degraded)
	assert.Equal(t, generation.UnavailableMessage, resp.Response)
}

func strPtr(s string) *string { return &s }
