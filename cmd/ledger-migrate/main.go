package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tuanvumaihuynh/ledger/internal/config"
	"github.com/tuanvumaihuynh/ledger/internal/log"
	"github.com/tuanvumaihuynh/ledger/internal/storage/db"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("error running migrate application: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type Config struct {
		Log   config.Log
		MySQL config.MySQL
	}
	cfg, err := config.New[Config]()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger := log.NewSlogLogger(cfg.Log)

	mysqlDB, err := db.NewMySQL(ctx, cfg.MySQL)
	if err != nil {
		return fmt.Errorf("error connecting to mysql: %w", err)
	}
	defer mysqlDB.Close()

	logger.InfoContext(ctx, "starting database migration")

	if err := db.Migrate(ctx, mysqlDB.DB, logger); err != nil {
		return fmt.Errorf("error migrating database: %w", err)
	}

	logger.InfoContext(ctx, "database migration completed successfully")

	return nil
}
