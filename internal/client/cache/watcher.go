package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"cortex/internal/client/events"
	"cortex/internal/client/storage"
)

// DefaultDebounce coalesces bursts of file events into one notification
const DefaultDebounce = 150 * time.Millisecond

// Watcher emits ChatListRefresh when another process rewrites the chat
// collection in a FileStorage directory. Writes made by this process are
// recognised and ignored.
type Watcher struct {
	fs       *storage.FileStorage
	pub      events.Publisher
	logger   *slog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewWatcher creates a watcher for fs. Call Start to begin watching.
func NewWatcher(fs *storage.FileStorage, pub events.Publisher, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		fs:       fs,
		pub:      pub,
		logger:   logger,
		debounce: DefaultDebounce,
		watcher:  fw,
	}, nil
}

// SetDebounce changes the quiet period; call before Start
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Start watches the storage directory until ctx is done or Close is called
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.fs.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", w.fs.Dir(), err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Close stops watching and waits for the event loop to exit
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if key, ok := w.fs.KeyForPath(event.Name); !ok || key != ChatsKey {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.check()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("cache watcher error", "error", err)
		}
	}
}

func (w *Watcher) check() {
	data, ok, err := w.fs.Get(ChatsKey)
	if err != nil {
		w.logger.Warn("cache watcher read failed", "error", err)
		return
	}
	if ok && w.fs.WrittenHere(ChatsKey, data) {
		return
	}
	w.logger.Debug("chat cache changed by another process")
	w.pub.Publish(events.Event{Kind: events.ChatListRefresh})
}
