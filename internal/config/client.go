package config

import (
	"os"
	"path/filepath"
)

// Storage backends for the terminal client's cache
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// ClientConfig configures cmd/chat
type ClientConfig struct {
	APIURL  string
	Token   string
	DataDir string
	Storage string
}

func LoadClient() *ClientConfig {
	storage := getEnv("CORTEX_STORAGE", StorageFile)
	if storage != StorageSQLite {
		storage = StorageFile
	}
	return &ClientConfig{
		APIURL:  getEnv("CORTEX_API_URL", "http://localhost:8080"),
		Token:   getEnv("CORTEX_TOKEN", ""),
		DataDir: getEnv("CORTEX_DATA_DIR", defaultDataDir()),
		Storage: storage,
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "cortex")
	}
	return ".cortex"
}
