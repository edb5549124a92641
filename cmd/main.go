package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"homedash/internal/api"
	"homedash/internal/config"
	"homedash/internal/notify"
	"homedash/internal/registry"
	"homedash/internal/storage"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	addr := envOr("HOMEDASH_ADDR", ":8080")
	dataPath := envOr("HOMEDASH_DATA", "homedash.db")
	passphrase := os.Getenv("HOMEDASH_KEY")
	seedPath := os.Getenv("HOMEDASH_SEED")

	logger.Info("Starting homedash",
		zap.String("addr", addr),
		zap.String("data", dataPath))

	// Backend configs are persisted encrypted in SQLite. Without a key
	// the process still runs, it just forgets its backends on restart.
	var vault *config.Vault
	var store *storage.SQLiteStore
	if passphrase == "" {
		logger.Warn("HOMEDASH_KEY not set, backend configs will not be persisted")
	} else {
		store, err = storage.OpenSQLite(context.Background(), dataPath)
		if err != nil {
			logger.Fatal("Failed to open storage", zap.Error(err))
		}
		defer store.Close()

		vault, err = config.NewVault(store, passphrase, logger)
		if err != nil {
			logger.Fatal("Failed to initialize config vault", zap.Error(err))
		}
	}

	reg := registry.New(vault, logger)

	// Seed backends from YAML on first run only.
	if seedPath != "" && len(reg.Backends()) == 0 {
		seeded, err := config.LoadSeed(seedPath, logger)
		if err != nil {
			logger.Fatal("Failed to load seed file", zap.Error(err))
		}
		for _, backend := range seeded {
			if err := reg.Add(backend); err != nil {
				logger.Warn("Skipping seed backend",
					zap.String("name", backend.Name),
					zap.Error(err))
			}
		}
	}

	notifier := notify.NewCenter()
	unwatch := watchStatuses(reg, notifier)
	defer unwatch()

	// Auto-select the first enabled backend so the dashboard has data
	// without an explicit select command.
	for _, backend := range reg.Backends() {
		if !backend.Enabled {
			continue
		}
		if _, err := reg.Select(backend.ID); err != nil {
			logger.Warn("Failed to select backend",
				zap.String("backend_id", backend.ID),
				zap.Error(err))
			continue
		}
		break
	}

	server := api.NewServer(reg, notifier, logger, addr)
	server.Start()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")
	if err := server.Stop(); err != nil {
		logger.Error("Failed to stop HTTP server", zap.Error(err))
	}
	reg.Shutdown()
}

// watchStatuses surfaces backend status transitions as notifications.
// Only changes raise one, so polling clients do not see duplicates.
func watchStatuses(reg *registry.Registry, notifier *notify.Center) func() {
	var mu sync.Mutex
	seen := make(map[string]registry.Status)

	return reg.Statuses().Subscribe(func(statuses map[string]registry.Status) {
		mu.Lock()
		defer mu.Unlock()
		for id, status := range statuses {
			if seen[id] == status {
				continue
			}
			seen[id] = status
			switch status.State {
			case registry.StatusOK:
				notifier.Show(notify.LevelSuccess, fmt.Sprintf("Connected to %s", id), 0)
			case registry.StatusError:
				notifier.Show(notify.LevelError, fmt.Sprintf("Backend %s: %s", id, status.Message), -1)
			}
		}
		for id := range seen {
			if _, ok := statuses[id]; !ok {
				delete(seen, id)
			}
		}
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
