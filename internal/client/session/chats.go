package session

import (
	"context"
	"fmt"
	"strings"

	"cortex/internal/client/api"
	"cortex/internal/client/cache"
	"cortex/internal/client/events"
	"cortex/internal/domain/models"
)

// ListChats merges the server's chat list into the cache and returns the
// cached list. When the server is unreachable or the user is signed out the
// cache alone is returned.
func (m *Manager) ListChats(ctx context.Context) []models.Chat {
	remote, err := m.api.ListChats(ctx)
	if err != nil {
		if api.IsAuthError(err) {
			m.logger.Debug("not signed in, listing cached chats only")
		} else {
			m.logger.Warn("list chats failed, using cache", "status", api.StatusOf(err), "error", err)
		}
		return m.cache.GetAll()
	}

	for _, chat := range remote {
		server := chat
		m.cache.Mutate(server.ID, func(existing *models.Chat) *models.Chat {
			return mergeServerChat(existing, server)
		})
	}
	return m.cache.GetAll()
}

// mergeServerChat folds a list entry (which carries only a preview of the
// transcript) into the cached record. Metadata comes from the server unless
// the cached copy changed more recently; the longer transcript wins.
func mergeServerChat(existing *models.Chat, server models.Chat) *models.Chat {
	if existing == nil {
		return &server
	}
	merged := *existing
	localNewer := existing.LastActivity().After(server.LastActivity())
	if !localNewer {
		merged.Title = server.Title
		merged.Mode = server.Mode
		merged.IsFavorite = server.IsFavorite
		merged.UpdatedAt = server.UpdatedAt
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = server.CreatedAt
	}
	if len(server.Messages) > len(existing.Messages) {
		merged.Messages = server.Messages
	}
	return &merged
}

// Rename sets a chat's title locally and on the server. Server failures are
// logged; the local rename stands.
func (m *Manager) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	m.cache.Update(id, cache.Patch{Title: &title})

	m.mu.Lock()
	if m.chat.ID == id {
		m.chat.Title = title
		m.touchLocked()
	}
	m.mu.Unlock()

	if _, err := m.api.UpdateChat(ctx, id, api.ChatUpdate{Title: &title}); err != nil {
		m.logger.Warn("rename on server failed", "chat_id", id, "status", api.StatusOf(err), "error", err)
	}

	m.bus.Publish(events.Event{Kind: events.ChatRenamed, ChatID: id, Title: title})
	m.bus.Publish(events.Event{Kind: events.ChatListRefresh, ChatID: id})
	return nil
}

// ToggleFavorite flips a chat's favorite flag and returns the new value.
// The cached flag is the one flipped, so a toggle racing a write-through
// is not lost.
func (m *Manager) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	active := m.chat.ID == id
	fav := !m.chat.IsFavorite
	m.mu.Unlock()

	cached := false
	m.cache.Mutate(id, func(existing *models.Chat) *models.Chat {
		if existing == nil {
			return nil
		}
		cached = true
		existing.IsFavorite = !existing.IsFavorite
		existing.UpdatedAt = m.now()
		fav = existing.IsFavorite
		return existing
	})
	if !cached && !active {
		return false, fmt.Errorf("chat %s: %w", id, ErrChatNotFound)
	}

	m.mu.Lock()
	if m.chat.ID == id {
		m.chat.IsFavorite = fav
		m.touchLocked()
	}
	m.mu.Unlock()

	if _, err := m.api.UpdateChat(ctx, id, api.ChatUpdate{IsFavorite: &fav}); err != nil {
		m.logger.Warn("favorite on server failed", "chat_id", id, "status", api.StatusOf(err), "error", err)
	}

	m.bus.Publish(events.Event{Kind: events.ChatListRefresh, ChatID: id})
	return fav, nil
}

// SetMode selects the mode for the active chat, or for the next chat when
// none is active. nil clears it.
func (m *Manager) SetMode(ctx context.Context, mode *string) error {
	mode = models.NormalizeMode(mode)
	if mode != nil && !models.IsValidMode(*mode) {
		return fmt.Errorf("%q: %w", *mode, ErrUnknownMode)
	}

	m.mu.Lock()
	id := m.chat.ID
	if id == "" {
		m.pendingMode = mode
		m.mu.Unlock()
		return nil
	}
	m.chat.Mode = mode
	m.touchLocked()
	evs := m.writeThroughLocked(true)
	m.mu.Unlock()

	m.publish(evs)

	update := api.ChatUpdate{Mode: models.Clear[string]()}
	if mode != nil {
		update.Mode = models.Set(*mode)
	}
	if _, err := m.api.UpdateChat(ctx, id, update); err != nil {
		m.logger.Warn("mode on server failed", "chat_id", id, "status", api.StatusOf(err), "error", err)
	}
	return nil
}

// Delete removes a chat from the server and the cache. Chats the server
// does not know, or cannot be reached about, are removed locally; other
// server errors leave everything in place.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.api.DeleteChat(ctx, id); err != nil {
		status := api.StatusOf(err)
		if status != 0 && !api.IsAuthError(err) && !api.IsNotFound(err) {
			return fmt.Errorf("delete chat %s: %w", id, err)
		}
		m.logger.Info("deleting chat locally only", "chat_id", id, "status", status)
	}

	m.cache.Delete(id)

	m.mu.Lock()
	active := m.chat.ID == id
	if active {
		m.resetLocked()
	}
	m.mu.Unlock()

	if active {
		m.sim.Stop()
		m.prefs.SetCurrentChatID("")
		m.bus.Publish(events.Event{Kind: events.ActiveChatChanged})
	}
	m.bus.Publish(events.Event{Kind: events.ChatDeleted, ChatID: id})
	m.bus.Publish(events.Event{Kind: events.ChatListRefresh})
	return nil
}
