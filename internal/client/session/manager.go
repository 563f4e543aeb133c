// Package session owns the active conversation: which chat is open, its
// transcript, and how that state is reconciled with the server and the
// local cache.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"

	"cortex/internal/client/api"
	"cortex/internal/client/cache"
	"cortex/internal/client/delivery"
	"cortex/internal/client/events"
	"cortex/internal/domain/models"
)

// ChatAPI is the server surface the session depends on. *api.Client
// implements it.
type ChatAPI interface {
	CreateChat(ctx context.Context, title string, mode *string) (*models.Chat, error)
	ListChats(ctx context.Context) ([]models.Chat, error)
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	UpdateChat(ctx context.Context, id string, update api.ChatUpdate) (*models.Chat, error)
	DeleteChat(ctx context.Context, id string) error
	Generate(ctx context.Context, req api.GenerateRequest) (*api.GenerateResponse, error)
}

// Clipboard receives copied message text
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the OS clipboard
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// provisionalPrefix marks ids assigned before the server confirmed a message
const provisionalPrefix = "local-"

// State is a snapshot of the session. ChatID is empty when no chat is active.
type State struct {
	ChatID      string
	Title       string
	Mode        *string
	IsFavorite  bool
	DeepSearch  bool
	Messages    []models.Message
	StreamingID string
	Busy        bool
}

// Config wires a Manager
type Config struct {
	API           ChatAPI
	Cache         *cache.ChatCache
	Preferences   *cache.Preferences
	Events        events.Publisher
	Clipboard     Clipboard
	Logger        *slog.Logger
	RevealOptions []delivery.Option
}

// Manager coordinates chat creation, hydration, message exchange and
// write-through to the local cache. Its lock is never held across network
// calls or while calling into the delivery simulator.
type Manager struct {
	api    ChatAPI
	cache  *cache.ChatCache
	prefs  *cache.Preferences
	bus    events.Publisher
	clip   Clipboard
	logger *slog.Logger
	sim    *delivery.Simulator

	now   func() time.Time
	newID func() string

	mu          sync.Mutex
	chat        models.Chat         // active chat metadata; zero ID means none
	messages    []models.Message    // visible transcript
	full        map[string]string   // full text of messages still being revealed
	dropped     map[string]struct{} // server ids removed on purpose (retry, edit)
	pendingMode *string             // mode chosen before a chat exists
	deepSearch  bool
	streamingID string
	stopped     string // message whose reveal the user stopped
	epoch       uint64 // bumped on every chat switch
	hydrateSeq  uint64
	hydrating   bool
	busy        bool
}

// NewManager creates a session in the no-active-chat state
func NewManager(cfg Config) *Manager {
	m := &Manager{
		api:     cfg.API,
		cache:   cfg.Cache,
		prefs:   cfg.Preferences,
		bus:     cfg.Events,
		clip:    cfg.Clipboard,
		logger:  cfg.Logger,
		now:     time.Now,
		newID:   func() string { return provisionalPrefix + uuid.NewString() },
		full:    make(map[string]string),
		dropped: make(map[string]struct{}),
	}
	if m.bus == nil {
		m.bus = events.Discard
	}
	if m.clip == nil {
		m.clip = SystemClipboard{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.sim = delivery.New(m.onRevealTick, m.onRevealDone, cfg.RevealOptions...)
	return m
}

// State returns a copy of the current session state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		ChatID:      m.chat.ID,
		Title:       m.chat.Title,
		Mode:        m.currentModeLocked(),
		IsFavorite:  m.chat.IsFavorite,
		DeepSearch:  m.deepSearch,
		Messages:    append([]models.Message(nil), m.messages...),
		StreamingID: m.streamingID,
		Busy:        m.busy || m.hydrating,
	}
	return s
}

// NewChat returns to the no-active-chat state. The next Send creates a chat.
func (m *Manager) NewChat() {
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()

	m.sim.Stop()
	m.prefs.SetCurrentChatID("")
	m.bus.Publish(events.Event{Kind: events.ActiveChatChanged})
}

// Restore reopens the chat that was active when the client last ran
func (m *Manager) Restore(ctx context.Context) error {
	id := m.prefs.CurrentChatID()
	if id == "" {
		return nil
	}
	return m.Hydrate(ctx, id)
}

// Hydrate makes id the active chat and loads its transcript from the
// server. The cached copy is shown while the request is in flight and is
// kept when the server is unreachable or refuses the session. A 404 drops
// the chat everywhere. When hydrations overlap only the latest one applies.
func (m *Manager) Hydrate(ctx context.Context, id string) error {
	cached, hasCached := m.cache.Get(id)

	m.mu.Lock()
	m.hydrateSeq++
	seq := m.hydrateSeq
	m.epoch++
	m.hydrating = true
	m.full = make(map[string]string)
	m.dropped = make(map[string]struct{})
	m.streamingID = ""
	m.chat = models.Chat{ID: id}
	m.messages = nil
	if hasCached {
		m.adoptLocked(*cached)
	}
	m.mu.Unlock()

	m.sim.Stop()
	m.bus.Publish(events.Event{Kind: events.ActiveChatChanged, ChatID: id})

	chat, err := m.api.GetChat(ctx, id)

	m.mu.Lock()
	if seq != m.hydrateSeq {
		m.mu.Unlock()
		m.logger.Debug("discarding superseded hydration", "chat_id", id)
		return nil
	}
	m.hydrating = false

	switch {
	case err == nil:
		if hasCached && cached.LastActivity().After(chat.LastActivity()) {
			chat.IsFavorite = cached.IsFavorite
		}
		m.adoptLocked(*chat)
		evs := m.mirrorLocked(false, false)
		m.mu.Unlock()

		m.prefs.SetCurrentChatID(id)
		m.publish(evs)
		return nil

	case api.IsNotFound(err):
		m.resetLocked()
		m.mu.Unlock()

		m.logger.Info("chat no longer exists, dropping it", "chat_id", id)
		m.cache.Delete(id)
		m.prefs.SetCurrentChatID("")
		m.publish([]events.Event{
			{Kind: events.ActiveChatChanged},
			{Kind: events.ChatListRefresh},
		})
		return fmt.Errorf("chat %s: %w", id, ErrChatNotFound)

	case hasCached:
		m.mu.Unlock()
		m.logger.Info("hydration failed, using cached chat", "chat_id", id, "status", api.StatusOf(err), "error", err)
		m.prefs.SetCurrentChatID(id)
		return nil

	default:
		m.resetLocked()
		m.mu.Unlock()

		m.prefs.SetCurrentChatID("")
		m.bus.Publish(events.Event{Kind: events.ActiveChatChanged})
		return fmt.Errorf("load chat %s: %w", id, err)
	}
}

// SetDeepSearch toggles the deep search hint sent with each message
func (m *Manager) SetDeepSearch(on bool) {
	m.mu.Lock()
	m.deepSearch = on
	m.mu.Unlock()
}

// adoptLocked replaces the active chat with chat and its messages
func (m *Manager) adoptLocked(chat models.Chat) {
	msgs := append([]models.Message(nil), chat.Messages...)
	models.SortMessages(msgs)
	chat.Messages = nil
	m.chat = chat
	m.messages = msgs
}

func (m *Manager) resetLocked() {
	m.epoch++
	m.hydrateSeq++
	m.hydrating = false
	m.chat = models.Chat{}
	m.messages = nil
	m.full = make(map[string]string)
	m.dropped = make(map[string]struct{})
	m.streamingID = ""
	m.pendingMode = nil
}

func (m *Manager) currentModeLocked() *string {
	if m.chat.ID != "" {
		return m.chat.Mode
	}
	return m.pendingMode
}

// recordLocked builds the cache record for the active chat. Messages still
// being revealed are stored with their full text.
func (m *Manager) recordLocked() models.Chat {
	rec := m.chat
	rec.Messages = make([]models.Message, len(m.messages))
	for i, msg := range m.messages {
		if full, ok := m.full[msg.ID]; ok {
			msg.Content = full
		}
		rec.Messages[i] = msg
	}
	return rec
}

// writeThroughLocked mirrors the active chat into the cache. When
// keepFavorite is set the cached favorite flag wins over the session's.
// Server-confirmed messages only the cache holds are merged into the
// transcript first.
func (m *Manager) writeThroughLocked(keepFavorite bool) []events.Event {
	return m.mirrorLocked(keepFavorite, true)
}

// mirrorLocked writes the active chat to the cache. Without merge the
// session's transcript replaces the cached one, as after a reload from the
// server.
func (m *Manager) mirrorLocked(keepFavorite, merge bool) []events.Event {
	if m.chat.ID == "" {
		return nil
	}
	var rec models.Chat
	m.cache.Mutate(m.chat.ID, func(existing *models.Chat) *models.Chat {
		if merge && existing != nil {
			m.mergeCachedLocked(existing.Messages)
		}
		rec = m.recordLocked()
		if keepFavorite && existing != nil {
			rec.IsFavorite = existing.IsFavorite
		}
		return &rec
	})
	m.chat.IsFavorite = rec.IsFavorite
	return []events.Event{{Kind: events.ChatListRefresh, ChatID: rec.ID}}
}

// mergeCachedLocked adds cached messages with server ids that the transcript
// lacks, unless they were dropped on purpose
func (m *Manager) mergeCachedLocked(cached []models.Message) {
	added := false
	for _, msg := range cached {
		if strings.HasPrefix(msg.ID, provisionalPrefix) || m.indexLocked(msg.ID) >= 0 {
			continue
		}
		if _, gone := m.dropped[msg.ID]; gone {
			continue
		}
		m.messages = append(m.messages, msg)
		added = true
	}
	if added {
		models.SortMessages(m.messages)
	}
}

// touchLocked records a change to the active chat
func (m *Manager) touchLocked() {
	now := m.now()
	if now.After(m.chat.UpdatedAt) {
		m.chat.UpdatedAt = now
	}
}

func (m *Manager) indexLocked(id string) int {
	for i := range m.messages {
		if m.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) publish(evs []events.Event) {
	for _, e := range evs {
		m.bus.Publish(e)
	}
}

func (m *Manager) onRevealTick(id, visible string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(id); i >= 0 {
		m.messages[i].Content = visible
	}
}

// onRevealDone clears the streaming marker. A reveal cut short by a newer
// one shows its full text. One the user stopped keeps its visible prefix,
// while the cache record keeps the full text.
func (m *Manager) onRevealDone(id string, completed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streamingID == id {
		m.streamingID = ""
	}
	if completed {
		delete(m.full, id)
		return
	}
	if m.stopped == id {
		m.stopped = ""
		return
	}
	if i := m.indexLocked(id); i >= 0 {
		if full, ok := m.full[id]; ok {
			m.messages[i].Content = full
		}
	}
	delete(m.full, id)
}
