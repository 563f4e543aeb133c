package session

import (
	"context"
	"strings"

	"cortex/internal/client/api"
	"cortex/internal/client/events"
)

var _ TokenSetter = (*api.Client)(nil)

// TokenSetter is implemented by APIs whose session token can be swapped at
// runtime. *api.Client implements it.
type TokenSetter interface {
	SetToken(token string)
}

// Login switches the API to token and reloads the active chat, so a
// transcript shown from the cache while signed out is reconciled with the
// server.
func (m *Manager) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if err := m.setToken(token); err != nil {
		return err
	}
	m.logger.Info("signed in")
	m.bus.Publish(events.Event{Kind: events.ChatListRefresh})

	if id := m.State().ChatID; id != "" {
		return m.Hydrate(ctx, id)
	}
	return nil
}

// Logout drops the session token. The transcript and cache stay; later
// requests run unauthenticated.
func (m *Manager) Logout() error {
	if err := m.setToken(""); err != nil {
		return err
	}
	m.logger.Info("signed out")
	m.bus.Publish(events.Event{Kind: events.ChatListRefresh})
	return nil
}

func (m *Manager) setToken(token string) error {
	ts, ok := m.api.(TokenSetter)
	if !ok {
		return ErrTokenUnsupported
	}
	ts.SetToken(token)
	return nil
}
