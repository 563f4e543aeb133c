// Package events delivers session notifications (active chat changed, chat
// list should refresh, ...) to interested front-end components.
package events

import (
	"slices"
	"sync"
)

// Kind identifies a notification
type Kind string

const (
	ActiveChatChanged Kind = "chat:active"
	ChatListRefresh   Kind = "chat:list-refresh"
	ChatRenamed       Kind = "chat:renamed"
	ChatDeleted       Kind = "chat:deleted"
)

// Event is a single notification. ChatID is empty for ActiveChatChanged when
// the session returned to the no-active-chat state.
type Event struct {
	Kind   Kind
	ChatID string
	Title  string
}

// Listener receives events synchronously on the publisher's goroutine
type Listener func(Event)

// Publisher is the sending side of a Bus
type Publisher interface {
	Publish(Event)
}

// Bus fans events out to subscribers
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Listener)}
}

// Subscribe registers fn and returns a function that removes it
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Publish calls every listener registered at the time of the call, in
// subscription order. Listeners may subscribe or unsubscribe re-entrantly.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		b.mu.RLock()
		fn, ok := b.listeners[id]
		b.mu.RUnlock()
		if ok {
			fn(e)
		}
	}
}

// Discard is a Publisher that drops everything
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}
