package cache

import (
	"log/slog"
	"strconv"

	"cortex/internal/client/storage"
)

// Preference keys kept next to the chat collection
const (
	CurrentChatKey = "currentChatId"
	DarkModeKey    = "darkMode"
)

// Preferences holds small scalar client settings
type Preferences struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewPreferences creates a preferences accessor over store
func NewPreferences(store storage.Storage, logger *slog.Logger) *Preferences {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preferences{store: store, logger: logger}
}

// CurrentChatID returns the last active chat id, or "" when none
func (p *Preferences) CurrentChatID() string {
	v, ok, err := p.store.Get(CurrentChatKey)
	if err != nil {
		p.logger.Warn("read preference failed", "key", CurrentChatKey, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return string(v)
}

// SetCurrentChatID records id as the active chat; "" clears it
func (p *Preferences) SetCurrentChatID(id string) {
	var err error
	if id == "" {
		err = p.store.Remove(CurrentChatKey)
	} else {
		err = p.store.Set(CurrentChatKey, []byte(id))
	}
	if err != nil {
		p.logger.Warn("write preference failed", "key", CurrentChatKey, "error", err)
	}
}

// DarkMode reports the stored theme preference
func (p *Preferences) DarkMode() bool {
	v, ok, err := p.store.Get(DarkModeKey)
	if err != nil || !ok {
		return false
	}
	on, _ := strconv.ParseBool(string(v))
	return on
}

// SetDarkMode stores the theme preference
func (p *Preferences) SetDarkMode(on bool) {
	if err := p.store.Set(DarkModeKey, []byte(strconv.FormatBool(on))); err != nil {
		p.logger.Warn("write preference failed", "key", DarkModeKey, "error", err)
	}
}
