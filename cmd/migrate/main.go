package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/BradenHooton/vigil/internal/config"
	"github.com/BradenHooton/vigil/internal/database"
)

// Applies the embedded migrations and exits. Used where the API runs with
// DB_AUTO_MIGRATE=false.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Schema changes are not bound by the request-path statement timeout
	cfg.Database.StatementTimeout = 0

	db, err := database.NewConnection(context.Background(), &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := database.Migrate(ctx, db, logger); err != nil {
		logger.Error("migration failed", slog.Any("error", err))
		db.Close()
		os.Exit(1)
	}
}
