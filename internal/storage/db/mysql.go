package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/tuanvumaihuynh/ledger/internal/config"
)

// Opener opens a new database handle. The pool calls it once at startup and
// again on every recreation. Handles connect lazily: an Opener only fails on
// configuration errors, never because the server is down.
type Opener func(ctx context.Context) (*sqlx.DB, error)

// MySQLOpener returns an Opener building handles from cfg.
func MySQLOpener(cfg config.MySQL) Opener {
	return func(context.Context) (*sqlx.DB, error) {
		return openMySQL(cfg)
	}
}

func openMySQL(cfg config.MySQL) (*sqlx.DB, error) {
	connector, err := mysql.NewConnector(newDriverConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}

	return sqlx.NewDb(sql.OpenDB(connector), "mysql"), nil
}

// NewMySQL opens a MySQL handle with the given configuration and pings it.
// Pool sizing is left to the caller.
func NewMySQL(ctx context.Context, cfg config.MySQL) (*sqlx.DB, error) {
	db, err := openMySQL(cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer pingCancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func newDriverConfig(cfg config.MySQL) *mysql.Config {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = registerDialer(cfg)
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.DBName = cfg.Name
	c.Timeout = cfg.ConnectTimeout
	c.ParseTime = true
	c.Loc = time.Local

	return c
}

// registerDialer registers a TCP dialer carrying the keep-alive settings and
// returns the network name the driver should use for it.
func registerDialer(cfg config.MySQL) string {
	keepAlive := cfg.KeepAliveInitialDelay
	if !cfg.KeepAlive {
		keepAlive = -1
	}

	name := "tcp-keepalive-" + strconv.FormatInt(int64(keepAlive), 10)
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: keepAlive,
	}
	mysql.RegisterDialContext(name, func(ctx context.Context, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	})

	return name
}

// applyPoolSettings bounds the handle: at most ConnectionLimit connections are
// open, and therefore checked out, at any time. database/sql queues further
// callers without limit.
func applyPoolSettings(db *sqlx.DB, cfg config.MySQL) {
	db.SetMaxOpenConns(cfg.ConnectionLimit)
	db.SetMaxIdleConns(cfg.ConnectionLimit)
	db.SetConnMaxIdleTime(cfg.IdleTimeout)
}
