package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cortex/internal/client/api"
	"cortex/internal/client/cache"
	"cortex/internal/client/delivery"
	"cortex/internal/client/events"
	"cortex/internal/client/storage"
	"cortex/internal/domain/models"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeAPI is an in-memory ChatAPI. Unset funcs fail with a 500.
type fakeAPI struct {
	mu sync.Mutex

	create   func(ctx context.Context, title string, mode *string) (*models.Chat, error)
	get      func(ctx context.Context, id string) (*models.Chat, error)
	list     func(ctx context.Context) ([]models.Chat, error)
	generate func(ctx context.Context, req api.GenerateRequest) (*api.GenerateResponse, error)
	del      func(ctx context.Context, id string) error

	creates   []string
	generates []api.GenerateRequest
	updates   []api.ChatUpdate
	token     string
}

var errServer = &api.Error{Status: 500, Message: "internal server error"}

func (f *fakeAPI) CreateChat(ctx context.Context, title string, mode *string) (*models.Chat, error) {
	f.mu.Lock()
	f.creates = append(f.creates, title)
	fn := f.create
	f.mu.Unlock()
	if fn == nil {
		return nil, errServer
	}
	return fn(ctx, title, mode)
}

func (f *fakeAPI) ListChats(ctx context.Context) ([]models.Chat, error) {
	if f.list == nil {
		return nil, errServer
	}
	return f.list(ctx)
}

func (f *fakeAPI) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	if f.get == nil {
		return nil, errServer
	}
	return f.get(ctx, id)
}

func (f *fakeAPI) UpdateChat(_ context.Context, id string, update api.ChatUpdate) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	return &models.Chat{ID: id}, nil
}

func (f *fakeAPI) DeleteChat(ctx context.Context, id string) error {
	if f.del == nil {
		return nil
	}
	return f.del(ctx, id)
}

func (f *fakeAPI) Generate(ctx context.Context, req api.GenerateRequest) (*api.GenerateResponse, error) {
	f.mu.Lock()
	f.generates = append(f.generates, req)
	fn := f.generate
	f.mu.Unlock()
	if fn == nil {
		return nil, errServer
	}
	return fn(ctx, req)
}

func (f *fakeAPI) SetToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

func (f *fakeAPI) generateCalls() []api.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.GenerateRequest(nil), f.generates...)
}

type fakeClipboard struct {
	text string
	err  error
}

func (c *fakeClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

type harness struct {
	m      *Manager
	api    *fakeAPI
	cache  *cache.ChatCache
	prefs  *cache.Preferences
	store  *storage.MemoryStorage
	clip   *fakeClipboard
	events *eventLog
}

type eventLog struct {
	mu  sync.Mutex
	evs []events.Event
}

func (l *eventLog) record(e events.Event) {
	l.mu.Lock()
	l.evs = append(l.evs, e)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []events.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.Kind, len(l.evs))
	for i, e := range l.evs {
		out[i] = e.Kind
	}
	return out
}

func newHarness(t *testing.T, opts ...delivery.Option) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStorage()
	h := &harness{
		api:    &fakeAPI{},
		cache:  cache.New(store, logger),
		prefs:  cache.NewPreferences(store, logger),
		store:  store,
		clip:   &fakeClipboard{},
		events: &eventLog{},
	}
	bus := events.NewBus()
	bus.Subscribe(h.events.record)
	if len(opts) == 0 {
		opts = []delivery.Option{delivery.WithInterval(time.Millisecond)}
	}
	h.m = NewManager(Config{
		API:           h.api,
		Cache:         h.cache,
		Preferences:   h.prefs,
		Events:        bus,
		Clipboard:     h.clip,
		Logger:        logger,
		RevealOptions: opts,
	})
	t.Cleanup(h.m.sim.Stop)
	return h
}

// waitRevealed blocks until no reply is being animated
func (h *harness) waitRevealed(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.m.State().StreamingID == ""
	}, 2*time.Second, 5*time.Millisecond)
}

func msg(id string, role models.Role, at time.Time) models.Message {
	return models.Message{ID: id, Role: role, Content: "text " + id, CreatedAt: at}
}

func serverChat(id string, msgs ...models.Message) *models.Chat {
	return &models.Chat{ID: id, Title: "chat " + id, CreatedAt: t0, UpdatedAt: t0, Messages: msgs}
}

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

// hydrated returns a harness whose active chat is c
func hydrated(t *testing.T, c *models.Chat) *harness {
	t.Helper()
	h := newHarness(t)
	h.api.get = func(context.Context, string) (*models.Chat, error) {
		cp := c.Clone()
		return &cp, nil
	}
	require.NoError(t, h.m.Hydrate(context.Background(), c.ID))
	return h
}
