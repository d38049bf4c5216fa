package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/ledger/internal/config"
	"github.com/tuanvumaihuynh/ledger/internal/model"
	"github.com/tuanvumaihuynh/ledger/internal/storage/db"
)

const createInvoicesTable = `CREATE TABLE purchase_invoices (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    invoice_number TEXT    NOT NULL UNIQUE,
    supplier_id    INTEGER NOT NULL,
    status         TEXT    NOT NULL DEFAULT 'draft',
    payment_status TEXT    NOT NULL DEFAULT 'new',
    total_amount   REAL    NOT NULL DEFAULT 0,
    paid_amount    REAL    NOT NULL DEFAULT 0,
    invoice_date   DATE    NOT NULL,
    due_date       DATE    NULL,
    created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// isOverdueOn restates the overdue predicate row by row, independently of the
// UPDATE statement.
func isOverdueOn(inv model.Invoice, today time.Time) bool {
	if inv.Status != model.InvoiceStatusPosted || inv.DueDate == nil {
		return false
	}
	if inv.PaymentStatus != model.PaymentStatusNew && inv.PaymentStatus != model.PaymentStatusPartial {
		return false
	}

	y, m, d := today.Date()
	return inv.DueDate.Before(time.Date(y, m, d, 0, 0, 0, 0, inv.DueDate.Location()))
}

type invoiceRow struct {
	number        string
	status        model.InvoiceStatus
	paymentStatus model.PaymentStatus
	dueDate       *string
}

func strPtr(s string) *string { return &s }

// newSQLitePool builds a pool over a SQLite file holding the invoice table.
func newSQLitePool(t *testing.T, rows ...invoiceRow) *db.Pool {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	open := func(ctx context.Context) (*sqlx.DB, error) {
		return sqlx.ConnectContext(ctx, "sqlite3", path+"?_busy_timeout=5000")
	}

	pool, err := db.NewPool(context.Background(), config.MySQL{
		ConnectionLimit: 10,
		AcquireTimeout:  5 * time.Second,
		ConnectTimeout:  5 * time.Second,
		IdleTimeout:     time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), db.WithOpener(open))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	ctx := context.Background()
	_, err = pool.ExecContext(ctx, createInvoicesTable)
	require.NoError(t, err)

	for i, row := range rows {
		_, err := pool.ExecContext(ctx,
			`INSERT INTO purchase_invoices (invoice_number, supplier_id, status, payment_status, invoice_date, due_date)
			VALUES (?, ?, ?, ?, ?, ?)`,
			row.number, i+1, string(row.status), string(row.paymentStatus), "2022-12-01", row.dueDate,
		)
		require.NoError(t, err)
	}

	return pool
}

func listInvoices(t *testing.T, pool *db.Pool) []model.Invoice {
	t.Helper()

	var invoices []model.Invoice
	require.NoError(t, pool.SelectContext(context.Background(), &invoices,
		`SELECT id, invoice_number, supplier_id, status, payment_status, total_amount, paid_amount,
		invoice_date, due_date, created_at, updated_at FROM purchase_invoices ORDER BY id`))
	return invoices
}

func paymentStatuses(t *testing.T, pool *db.Pool) map[string]model.PaymentStatus {
	t.Helper()

	invoices := listInvoices(t, pool)
	statuses := make(map[string]model.PaymentStatus, len(invoices))
	for _, inv := range invoices {
		statuses[inv.InvoiceNumber] = inv.PaymentStatus
	}
	return statuses
}

var newYear2024 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)

func TestInvoiceRepositoryMarkOverdue(t *testing.T) {
	t.Run("Should mark a posted new invoice past its due date", func(t *testing.T) {
		pool := newSQLitePool(t, invoiceRow{
			number: "PI-0001", status: model.InvoiceStatusPosted,
			paymentStatus: model.PaymentStatusNew, dueDate: strPtr("2023-01-01"),
		})
		repo := NewInvoiceRepository(pool)

		affected, err := repo.MarkOverdue(context.Background(), MarkOverdueParams{Today: newYear2024})

		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)
		assert.Equal(t, model.PaymentStatusOverdue, paymentStatuses(t, pool)["PI-0001"])
	})

	t.Run("Should leave a draft invoice unchanged", func(t *testing.T) {
		pool := newSQLitePool(t, invoiceRow{
			number: "PI-0002", status: model.InvoiceStatusDraft,
			paymentStatus: model.PaymentStatusNew, dueDate: strPtr("2023-01-01"),
		})
		repo := NewInvoiceRepository(pool)

		affected, err := repo.MarkOverdue(context.Background(), MarkOverdueParams{Today: newYear2024})

		require.NoError(t, err)
		assert.Zero(t, affected)
		assert.Equal(t, model.PaymentStatusNew, paymentStatuses(t, pool)["PI-0002"])
	})

	t.Run("Should only touch rows matching the overdue predicate", func(t *testing.T) {
		pool := newSQLitePool(t,
			invoiceRow{"posted-new-past", model.InvoiceStatusPosted, model.PaymentStatusNew, strPtr("2023-06-30")},
			invoiceRow{"posted-partial-past", model.InvoiceStatusPosted, model.PaymentStatusPartial, strPtr("2023-12-31")},
			invoiceRow{"posted-new-today", model.InvoiceStatusPosted, model.PaymentStatusNew, strPtr("2024-01-01")},
			invoiceRow{"posted-new-future", model.InvoiceStatusPosted, model.PaymentStatusNew, strPtr("2024-02-01")},
			invoiceRow{"posted-paid-past", model.InvoiceStatusPosted, model.PaymentStatusPaid, strPtr("2023-01-01")},
			invoiceRow{"posted-overdue-past", model.InvoiceStatusPosted, model.PaymentStatusOverdue, strPtr("2023-01-01")},
			invoiceRow{"draft-partial-past", model.InvoiceStatusDraft, model.PaymentStatusPartial, strPtr("2023-01-01")},
			invoiceRow{"cancelled-new-past", model.InvoiceStatusCancelled, model.PaymentStatusNew, strPtr("2023-01-01")},
			invoiceRow{"posted-new-no-due", model.InvoiceStatusPosted, model.PaymentStatusNew, nil},
		)
		repo := NewInvoiceRepository(pool)

		var expected int64
		for _, inv := range listInvoices(t, pool) {
			if isOverdueOn(inv, newYear2024) {
				expected++
			}
		}

		affected, err := repo.MarkOverdue(context.Background(), MarkOverdueParams{Today: newYear2024})

		require.NoError(t, err)
		assert.Equal(t, int64(2), affected)
		assert.Equal(t, expected, affected)
		assert.Equal(t, map[string]model.PaymentStatus{
			"posted-new-past":     model.PaymentStatusOverdue,
			"posted-partial-past": model.PaymentStatusOverdue,
			"posted-new-today":    model.PaymentStatusNew,
			"posted-new-future":   model.PaymentStatusNew,
			"posted-paid-past":    model.PaymentStatusPaid,
			"posted-overdue-past": model.PaymentStatusOverdue,
			"draft-partial-past":  model.PaymentStatusPartial,
			"cancelled-new-past":  model.PaymentStatusNew,
			"posted-new-no-due":   model.PaymentStatusNew,
		}, paymentStatuses(t, pool))
	})

	t.Run("Should be idempotent", func(t *testing.T) {
		pool := newSQLitePool(t,
			invoiceRow{"PI-0003", model.InvoiceStatusPosted, model.PaymentStatusNew, strPtr("2023-01-01")},
			invoiceRow{"PI-0004", model.InvoiceStatusPosted, model.PaymentStatusPartial, strPtr("2023-03-15")},
		)
		repo := NewInvoiceRepository(pool)
		params := MarkOverdueParams{Today: newYear2024}

		first, err := repo.MarkOverdue(context.Background(), params)
		require.NoError(t, err)
		second, err := repo.MarkOverdue(context.Background(), params)
		require.NoError(t, err)

		assert.Equal(t, int64(2), first)
		assert.Zero(t, second)
	})

	t.Run("Should ignore the time of day", func(t *testing.T) {
		pool := newSQLitePool(t, invoiceRow{
			number: "PI-0005", status: model.InvoiceStatusPosted,
			paymentStatus: model.PaymentStatusNew, dueDate: strPtr("2023-12-31"),
		})
		repo := NewInvoiceRepository(pool)

		late := time.Date(2023, 12, 31, 23, 59, 59, 0, time.Local)
		affected, err := repo.MarkOverdue(context.Background(), MarkOverdueParams{Today: late})

		require.NoError(t, err)
		assert.Zero(t, affected)
	})

	t.Run("Should run inside a transaction", func(t *testing.T) {
		pool := newSQLitePool(t, invoiceRow{
			number: "PI-0006", status: model.InvoiceStatusPosted,
			paymentStatus: model.PaymentStatusPartial, dueDate: strPtr("2023-01-01"),
		})
		repo := NewInvoiceRepository(pool)

		var affected int64
		err := pool.WithTx(context.Background(), func(tx db.DB) error {
			var err error
			affected, err = repo.WithDB(tx).MarkOverdue(context.Background(), MarkOverdueParams{Today: newYear2024})
			return err
		})

		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)
		assert.Equal(t, model.PaymentStatusOverdue, paymentStatuses(t, pool)["PI-0006"])
	})
}
