// Package delivery animates an already complete assistant reply so it
// appears to stream in.
package delivery

import (
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultInterval is the tick between revealed chunks
const DefaultInterval = 20 * time.Millisecond

// Sink receives the visible prefix of the message after every tick
type Sink func(messageID, visible string)

// DoneFunc is called once per reveal. completed is false when the reveal
// was stopped or superseded before the whole text was shown.
type DoneFunc func(messageID string, completed bool)

// Option configures a Simulator
type Option func(*Simulator)

// WithInterval overrides the tick interval
func WithInterval(d time.Duration) Option {
	return func(s *Simulator) { s.interval = d }
}

// WithChunkSize overrides the per-tick chunk length source
func WithChunkSize(fn func() int) Option {
	return func(s *Simulator) { s.chunk = fn }
}

// Simulator runs at most one reveal at a time
type Simulator struct {
	sink     Sink
	onDone   DoneFunc
	interval time.Duration
	chunk    func() int

	mu      sync.Mutex
	current *Handle
}

// New creates a simulator. sink and onDone run on the simulator's goroutine
// and must not call back into Stop, Reveal or Handle.Cancel.
func New(sink Sink, onDone DoneFunc, opts ...Option) *Simulator {
	s := &Simulator{
		sink:     sink,
		onDone:   onDone,
		interval: DefaultInterval,
		chunk:    func() int { return 1 + rand.IntN(3) },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.onDone == nil {
		s.onDone = func(string, bool) {}
	}
	return s
}

// Handle controls one reveal
type Handle struct {
	messageID string
	stop      chan struct{}
	done      chan struct{}
	once      sync.Once
	completed bool
}

// MessageID returns the message being revealed
func (h *Handle) MessageID() string { return h.messageID }

// Done is closed when the reveal finishes or is cancelled
func (h *Handle) Done() <-chan struct{} { return h.done }

// Completed reports whether the full text was shown. Valid after Done.
func (h *Handle) Completed() bool {
	<-h.done
	return h.completed
}

// Cancel stops the reveal, leaving the revealed prefix in place, and waits
// for the reveal goroutine to exit. Safe to call more than once.
func (h *Handle) Cancel() {
	h.once.Do(func() { close(h.stop) })
	<-h.done
}

// Reveal starts animating fullText into messageID, cancelling any reveal
// already in progress first.
func (s *Simulator) Reveal(fullText, messageID string) *Handle {
	h := &Handle{
		messageID: messageID,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	prev := s.current
	s.current = h
	s.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}

	go s.run(h, []rune(fullText))
	return h
}

// Stop cancels the active reveal, if any
func (s *Simulator) Stop() {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

// Active returns the id of the message currently being revealed
func (s *Simulator) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", false
	}
	return s.current.messageID, true
}

func (s *Simulator) run(h *Handle, text []rune) {
	defer close(h.done)
	defer func() {
		s.mu.Lock()
		if s.current == h {
			s.current = nil
		}
		s.mu.Unlock()
		s.onDone(h.messageID, h.completed)
	}()

	if len(text) == 0 {
		select {
		case <-h.stop:
			return
		default:
		}
		s.sink(h.messageID, "")
		h.completed = true
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	shown := 0
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		// a stop that raced the tick wins
		select {
		case <-h.stop:
			return
		default:
		}

		n := s.chunk()
		if n < 1 {
			n = 1
		}
		shown = min(shown+n, len(text))
		s.sink(h.messageID, string(text[:shown]))

		if shown == len(text) {
			h.completed = true
			return
		}
	}
}
