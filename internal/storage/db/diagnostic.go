package db

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Diagnostics is the dedicated startup connection. It is opened once, never
// retried and never used to serve traffic; a failed connect leaves it offline.
type Diagnostics struct {
	logger *slog.Logger

	db   *sqlx.DB
	conn *sqlx.Conn

	closeOnce sync.Once
}

// OpenDiagnostics connects a single connection and logs the databases visible
// to it. Failures are logged and yield an offline value; they never abort startup.
func OpenDiagnostics(ctx context.Context, open Opener, logger *slog.Logger) *Diagnostics {
	d := &Diagnostics{
		logger: logger.With(slog.String("component", "db_diagnostics")),
	}

	db, err := open(ctx)
	if err != nil {
		d.logger.ErrorContext(ctx, "error connecting to database", slog.Any("error", err))
		return d
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Connx(ctx)
	if err != nil {
		_ = db.Close()
		d.logger.ErrorContext(ctx, "error connecting to database", slog.Any("error", err))
		return d
	}

	d.db = db
	d.conn = conn
	d.logger.InfoContext(ctx, "connected to database")

	databases, err := d.ListDatabases(ctx)
	if err != nil {
		d.logger.ErrorContext(ctx, "error listing databases", slog.Any("error", err))
		return d
	}
	d.logger.InfoContext(ctx, "available databases", slog.Any("databases", databases))

	return d
}

// Connected reports whether the connection was established.
func (d *Diagnostics) Connected() bool {
	return d.conn != nil
}

// ListDatabases runs SHOW DATABASES on the diagnostic connection.
func (d *Diagnostics) ListDatabases(ctx context.Context) ([]string, error) {
	if d.conn == nil {
		return nil, ErrDiagnosticsOffline
	}

	var databases []string
	if err := d.conn.SelectContext(ctx, &databases, "SHOW DATABASES"); err != nil {
		return nil, fmt.Errorf("show databases: %w", err)
	}

	return databases, nil
}

func (d *Diagnostics) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.conn == nil {
			return
		}
		if cErr := d.conn.Close(); cErr != nil {
			err = fmt.Errorf("close connection: %w", cErr)
		}
		if cErr := d.db.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("close database: %w", cErr)
		}
	})
	return err
}
