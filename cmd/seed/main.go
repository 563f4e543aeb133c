package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"cortex/internal/config"
	"cortex/internal/repository/postgres"
	"cortex/internal/seed"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop the chat tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed chats")
	clearData := flag.Bool("clear-data", false, "Delete the user's chats and messages (keep schema)")
	userID := flag.String("user", "dev-user", "Owner of the seeded chats")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	switch {
	case *clearData:
		log.Printf("Clearing chats for %s (environment: %s, prefix: %s)", *userID, cfg.Environment, cfg.TablePrefix)
	case *schemaOnly:
		log.Printf("Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	default:
		log.Printf("Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}

	if *dropTables {
		if err := postgres.DropSchema(ctx, repoConfig); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	if err := postgres.EnsureSchema(ctx, repoConfig); err != nil {
		log.Fatalf("Failed to prepare schema: %v", err)
	}

	if *clearData {
		n, err := postgres.ClearUserChats(ctx, repoConfig, *userID)
		if err != nil {
			log.Fatalf("Failed to clear chats: %v", err)
		}
		log.Printf("Deleted %d chats", n)
		return
	}

	if *schemaOnly {
		log.Println("Schema ready")
		return
	}

	seeder := seed.NewChatSeeder(
		postgres.NewChatRepository(repoConfig),
		postgres.NewMessageRepository(repoConfig),
		postgres.NewTransactionManager(repoConfig),
		logger,
	)

	chats, err := seeder.Seed(ctx, *userID, seed.DefaultChats())
	if err != nil {
		log.Fatalf("Failed to seed chats: %v", err)
	}

	log.Printf("Seeded %d chats for %s", len(chats), *userID)
}
