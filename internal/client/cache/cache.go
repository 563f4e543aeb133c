// Package cache is the client-local mirror of the user's chats. It is a
// best-effort store: unreadable data reads as empty and write failures are
// logged, never returned.
package cache

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"cortex/internal/client/storage"
	"cortex/internal/domain/models"
)

// ChatsKey is the storage key holding every cached chat
const ChatsKey = "cortexChats"

// Patch lists the fields Update merges into an existing record. Nil fields
// (and an absent Mode) are left untouched.
type Patch struct {
	Title      *string
	Mode       models.Optional[string]
	IsFavorite *bool
	Messages   []models.Message
}

// ChatCache stores chats under ChatsKey. Every write re-reads the stored
// collection and merges into it, so concurrent writers inside one process
// never drop each other's changes.
type ChatCache struct {
	store  storage.Storage
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// New creates a cache over store
func New(store storage.Storage, logger *slog.Logger) *ChatCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatCache{store: store, logger: logger, now: time.Now}
}

// GetAll returns every cached chat, most recently active first
func (c *ChatCache) GetAll() []models.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortChats(c.load())
}

// Get returns the cached chat with id
func (c *ChatCache) Get(id string) (*models.Chat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, chat := range c.load() {
		if chat.ID == id {
			return &chat, true
		}
	}
	return nil, false
}

// Save upserts chat by id
func (c *ChatCache) Save(chat models.Chat) {
	if chat.ID == "" {
		return
	}
	c.Mutate(chat.ID, func(*models.Chat) *models.Chat {
		return &chat
	})
}

// AppendMessage adds or replaces msg in the chat and moves updatedAt to the
// message timestamp. Unknown chats are ignored.
func (c *ChatCache) AppendMessage(chatID string, msg models.Message) {
	c.Mutate(chatID, func(existing *models.Chat) *models.Chat {
		if existing == nil {
			return nil
		}
		existing.Messages = append(existing.Messages, msg)
		if msg.CreatedAt.After(existing.UpdatedAt) {
			existing.UpdatedAt = msg.CreatedAt
		}
		return existing
	})
}

// Update merges patch into the chat and bumps updatedAt. Unknown chats are
// ignored.
func (c *ChatCache) Update(id string, patch Patch) {
	c.Mutate(id, func(existing *models.Chat) *models.Chat {
		if existing == nil {
			return nil
		}
		if patch.Title != nil {
			existing.Title = *patch.Title
		}
		if patch.Mode.Present {
			existing.Mode = patch.Mode.Value
		}
		if patch.IsFavorite != nil {
			existing.IsFavorite = *patch.IsFavorite
		}
		if patch.Messages != nil {
			existing.Messages = patch.Messages
		}
		existing.UpdatedAt = c.now()
		return existing
	})
}

// Delete removes the chat. Deleting an unknown id is a no-op.
func (c *ChatCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chats := c.load()
	kept := chats[:0]
	for _, chat := range chats {
		if chat.ID != id {
			kept = append(kept, chat)
		}
	}
	if len(kept) == len(chats) {
		return
	}
	c.persist(kept)
}

// Mutate runs one read-merge-write cycle for a single chat. fn receives a
// copy of the stored record (nil when absent) and returns the record to
// store, or nil to leave the collection unchanged.
func (c *ChatCache) Mutate(id string, fn func(existing *models.Chat) *models.Chat) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chats := c.load()
	idx := -1
	var existing *models.Chat
	for i := range chats {
		if chats[i].ID == id {
			idx = i
			cp := chats[i].Clone()
			existing = &cp
			break
		}
	}

	next := fn(existing)
	if next == nil {
		return
	}
	next.ID = id
	normalize(next)

	if idx >= 0 {
		chats[idx] = *next
	} else {
		chats = append(chats, *next)
	}
	c.persist(chats)
}

// load reads the collection. Any failure yields an empty collection.
func (c *ChatCache) load() []models.Chat {
	data, ok, err := c.store.Get(ChatsKey)
	if err != nil {
		c.logger.Warn("chat cache read failed", "error", err)
		return nil
	}
	if !ok || len(data) == 0 {
		return nil
	}

	var chats []models.Chat
	if err := json.Unmarshal(data, &chats); err != nil {
		c.logger.Warn("chat cache is corrupt, treating as empty", "error", err)
		return nil
	}

	out := chats[:0]
	for i := range chats {
		if chats[i].ID == "" {
			continue
		}
		normalize(&chats[i])
		out = append(out, chats[i])
	}
	return out
}

func (c *ChatCache) persist(chats []models.Chat) {
	data, err := json.Marshal(sortChats(chats))
	if err != nil {
		c.logger.Warn("chat cache encode failed", "error", err)
		return
	}
	if err := c.store.Set(ChatsKey, data); err != nil {
		c.logger.Warn("chat cache write failed", "error", err)
	}
}

// normalize enforces the record invariants: null for an absent mode, a
// non-nil message list unique by id (last occurrence wins) in createdAt
// order, and an updatedAt no older than createdAt.
func normalize(chat *models.Chat) {
	chat.Mode = models.NormalizeMode(chat.Mode)

	if len(chat.Messages) > 0 {
		last := make(map[string]int, len(chat.Messages))
		for i, m := range chat.Messages {
			last[m.ID] = i
		}
		deduped := make([]models.Message, 0, len(last))
		for i, m := range chat.Messages {
			if last[m.ID] == i {
				deduped = append(deduped, m)
			}
		}
		models.SortMessages(deduped)
		chat.Messages = deduped
	}
	if chat.Messages == nil {
		chat.Messages = []models.Message{}
	}

	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = chat.CreatedAt
	}
}

func sortChats(chats []models.Chat) []models.Chat {
	if chats == nil {
		return []models.Chat{}
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].LastActivity().After(chats[j].LastActivity())
	})
	return chats
}
