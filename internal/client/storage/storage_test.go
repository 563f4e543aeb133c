package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()

	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "cortex.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   fs,
		"sqlite": db,
	}
}

func TestStorageContract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get("cortexChats")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set("cortexChats", []byte(`[1]`)))
			require.NoError(t, s.Set("cortexChats", []byte(`[1,2]`)))

			v, ok, err := s.Get("cortexChats")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[1,2]`, string(v))

			require.NoError(t, s.Remove("cortexChats"))
			require.NoError(t, s.Remove("cortexChats"))

			_, ok, err = s.Get("cortexChats")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestMemorySnapshotRestore(t *testing.T) {
	m := NewMemoryStorage()
	require.NoError(t, m.Set("k", []byte("before")))

	snap := m.Snapshot()
	require.NoError(t, m.Set("k", []byte("after")))
	require.NoError(t, m.Set("other", []byte("x")))

	m.Restore(snap)

	v, ok, _ := m.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "before", string(v))
	_, ok, _ = m.Get("other")
	assert.False(t, ok)
}

func TestMemoryFailWrites(t *testing.T) {
	m := NewMemoryStorage()
	boom := errors.New("quota exceeded")
	m.FailWrites(boom)
	assert.ErrorIs(t, m.Set("k", []byte("v")), boom)

	m.FailWrites(nil)
	assert.NoError(t, m.Set("k", []byte("v")))
}

func TestFileStorageLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, fs.Set("cortexChats", []byte("[]")))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cortexChats.json", entries[0].Name())

	key, ok := fs.KeyForPath(filepath.Join(dir, "cortexChats.json"))
	assert.True(t, ok)
	assert.Equal(t, "cortexChats", key)

	_, ok = fs.KeyForPath(filepath.Join(dir, ".cortexChats.123.tmp"))
	assert.False(t, ok)
}

func TestFileStorageWrittenHere(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.Set("k", []byte("mine")))
	assert.True(t, fs.WrittenHere("k", []byte("mine")))
	assert.False(t, fs.WrittenHere("k", []byte("theirs")))
	assert.False(t, fs.WrittenHere("unknown", []byte("mine")))
}

func TestFileStorageRejectsPathKeys(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	assert.ErrorIs(t, fs.Set("../escape", []byte("x")), ErrInvalidKey)
	assert.ErrorIs(t, fs.Set("", []byte("x")), ErrInvalidKey)
}
