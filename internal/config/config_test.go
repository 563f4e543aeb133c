package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("GENERATION_MODELS", "")
	t.Setenv("GENERATION_BASE_DELAY", "")
	t.Setenv("GENERATION_MAX_DELAY", "")
	t.Setenv("GENERATION_MAX_RETRIES", "")
	t.Setenv("GENERATION_TIMEOUT", "")
	t.Setenv("DEBUG", "")
	t.Setenv("PORT", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "dev_", cfg.TablePrefix)
	assert.True(t, cfg.Debug)
	assert.Empty(t, cfg.GenerationModels)
	assert.Equal(t, 3, cfg.GenerationMaxRetries)
	assert.Equal(t, time.Second, cfg.GenerationBaseDelay)
	assert.Equal(t, 4*time.Second, cfg.GenerationMaxDelay)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("GENERATION_MODELS", "claude-sonnet-4-5, ,lorem/lorem-fast")
	t.Setenv("GENERATION_BASE_DELAY", "250ms")
	t.Setenv("GENERATION_MAX_DELAY", "2000")
	t.Setenv("GENERATION_MAX_RETRIES", "nope")
	t.Setenv("DEBUG", "")

	cfg := Load()
	assert.Equal(t, "prod_", cfg.TablePrefix)
	assert.False(t, cfg.Debug)
	assert.Equal(t, []string{"claude-sonnet-4-5", "lorem/lorem-fast"}, cfg.GenerationModels)
	assert.Equal(t, 250*time.Millisecond, cfg.GenerationBaseDelay)
	assert.Equal(t, 2*time.Second, cfg.GenerationMaxDelay)
	assert.Equal(t, 3, cfg.GenerationMaxRetries)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("CORTEX_STORAGE", "bogus")
	t.Setenv("CORTEX_DATA_DIR", "/tmp/cortex-test")
	cfg := LoadClient()
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.Equal(t, "/tmp/cortex-test", cfg.DataDir)

	t.Setenv("CORTEX_STORAGE", "sqlite")
	assert.Equal(t, StorageSQLite, LoadClient().Storage)
}

func TestSetupLogFile_KeepsNewest(t *testing.T) {
	dir := t.TempDir()
	for _, stamp := range []string{"20250101-000000", "20250102-000000", "20250103-000000"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "chat-"+stamp+".log"), nil, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server-20200101-000000.log"), nil, 0o644))

	f, err := SetupLogFile(dir, "chat", 2)
	require.NoError(t, err)
	defer f.Close()

	chats, err := filepath.Glob(filepath.Join(dir, "chat-*.log"))
	require.NoError(t, err)
	assert.Len(t, chats, 2)
	assert.Contains(t, chats, f.Name())

	servers, _ := filepath.Glob(filepath.Join(dir, "server-*.log"))
	assert.Len(t, servers, 1, "other prefixes are left alone")
}
