package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"cortex/internal/client/api"
	"cortex/internal/client/cache"
	"cortex/internal/client/events"
	"cortex/internal/client/session"
	"cortex/internal/client/storage"
	"cortex/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.LoadClient()

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Logs go to a file so they never interleave with the transcript
	logFile, err := config.SetupLogFile(filepath.Join(cfg.DataDir, "logs"), "chat", 5)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logLevel := slog.LevelInfo
	if os.Getenv("CORTEX_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()

	var store storage.Storage
	var watcher *cache.Watcher
	switch cfg.Storage {
	case config.StorageSQLite:
		db, err := storage.OpenSQLite(filepath.Join(cfg.DataDir, "cache.db"))
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	default:
		fs, err := storage.NewFileStorage(filepath.Join(cfg.DataDir, "cache"))
		if err != nil {
			return err
		}
		store = fs

		// another terminal sharing the directory refreshes our list
		watcher, err = cache.NewWatcher(fs, bus, logger)
		if err != nil {
			logger.Warn("cache watcher unavailable", "error", err)
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("cache watcher unavailable", "error", err)
			watcher = nil
		}
	}
	if watcher != nil {
		defer watcher.Close()
	}

	logger.Info("chat client starting",
		"api_url", cfg.APIURL,
		"storage", cfg.Storage,
		"data_dir", cfg.DataDir,
		"authenticated", cfg.Token != "",
	)

	prefs := cache.NewPreferences(store, logger)
	mgr := session.NewManager(session.Config{
		API:         api.New(cfg.APIURL, api.WithToken(cfg.Token), api.WithLogger(logger)),
		Cache:       cache.New(store, logger),
		Preferences: prefs,
		Events:      bus,
		Logger:      logger,
	})

	r := newREPL(mgr, prefs, logger, filepath.Join(cfg.DataDir, "history"))
	defer r.Close()

	unsubscribe := bus.Subscribe(r.onEvent)
	defer unsubscribe()

	return r.Run(ctx)
}
