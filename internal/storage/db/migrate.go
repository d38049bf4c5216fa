package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/tuanvumaihuynh/ledger/internal/storage/db/migrations"
)

// Migrate applies every pending migration.
func Migrate(ctx context.Context, sqlDB *sql.DB, logger *slog.Logger) error {
	provider, err := goose.NewProvider(goose.DialectMySQL, sqlDB, migrations.FS)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	for _, res := range results {
		logger.InfoContext(ctx, "migration applied",
			slog.Int64("version", res.Source.Version),
			slog.String("path", res.Source.Path),
			slog.Duration("duration", res.Duration),
		)
	}

	return nil
}
