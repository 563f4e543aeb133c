package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex/internal/client/events"
	"cortex/internal/client/storage"
)

func TestWatcherReportsWritesFromOtherProcesses(t *testing.T) {
	dir := t.TempDir()

	mine, err := storage.NewFileStorage(dir)
	require.NoError(t, err)
	theirs, err := storage.NewFileStorage(dir)
	require.NoError(t, err)

	bus := events.NewBus()
	var refreshes atomic.Int32
	bus.Subscribe(func(e events.Event) {
		if e.Kind == events.ChatListRefresh {
			refreshes.Add(1)
		}
	})

	w, err := NewWatcher(mine, bus, quietLogger())
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	// this process's own write is ignored
	New(mine, quietLogger()).Save(chat("c1", t0))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), refreshes.Load())

	New(theirs, quietLogger()).Save(chat("c2", t0))
	require.Eventually(t, func() bool {
		return refreshes.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
