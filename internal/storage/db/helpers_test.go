package db

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tuanvumaihuynh/ledger/internal/config"
)

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testMySQLConfig() config.MySQL {
	return config.MySQL{
		Host:                "localhost",
		Port:                3306,
		User:                "ledger",
		Name:                "accounting",
		ConnectionLimit:     10,
		ConnectTimeout:      time.Second,
		AcquireTimeout:      time.Second,
		IdleTimeout:         time.Minute,
		KeepAlive:           true,
		HealthCheckInterval: time.Hour,
	}
}

// countingDriver records how many statements run at once. Exec blocks on
// gate when it is set, and every operation fails with driver.ErrBadConn while
// down is true.
type countingDriver struct {
	active    atomic.Int64
	maxActive atomic.Int64
	opened    atomic.Int64

	gate chan struct{}
	hold time.Duration
	down atomic.Bool
}

func (d *countingDriver) Open(string) (driver.Conn, error) {
	return d.Connect(context.Background())
}

func (d *countingDriver) Connect(context.Context) (driver.Conn, error) {
	if d.down.Load() {
		return nil, driver.ErrBadConn
	}
	d.opened.Add(1)
	return &countingConn{d: d}, nil
}

func (d *countingDriver) Driver() driver.Driver { return d }

// opener returns an Opener producing independent handles over the driver.
func (d *countingDriver) opener(opens *atomic.Int64) Opener {
	return func(context.Context) (*sqlx.DB, error) {
		if opens != nil {
			opens.Add(1)
		}
		return sqlx.NewDb(sql.OpenDB(d), "mysql"), nil
	}
}

type countingConn struct {
	d *countingDriver
}

func (c *countingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *countingConn) Close() error { return nil }

func (c *countingConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *countingConn) Ping(context.Context) error {
	if c.d.down.Load() {
		return driver.ErrBadConn
	}
	return nil
}

func (c *countingConn) ExecContext(ctx context.Context, _ string, _ []driver.NamedValue) (driver.Result, error) {
	if c.d.down.Load() {
		return nil, driver.ErrBadConn
	}

	n := c.d.active.Add(1)
	defer c.d.active.Add(-1)
	for {
		cur := c.d.maxActive.Load()
		if n <= cur || c.d.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}

	if c.d.gate != nil {
		select {
		case <-c.d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.d.hold > 0 {
		time.Sleep(c.d.hold)
	}

	return driver.RowsAffected(1), nil
}
