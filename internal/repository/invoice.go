package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tuanvumaihuynh/ledger/internal/model"
	"github.com/tuanvumaihuynh/ledger/internal/storage/db"
)

const markOverdueQuery = `UPDATE purchase_invoices
SET payment_status = ?
WHERE status = ?
  AND payment_status IN (?)
  AND due_date < ?`

//go:generate go tool go.uber.org/mock/mockgen -source=invoice.go -destination=invoice_mock.go -package=repository

type MarkOverdueParams struct {
	// Today is the sweep date; only its calendar date is used.
	Today time.Time
}

type InvoiceRepository interface {
	WithDB(db db.DB) InvoiceRepository
	// MarkOverdue sets payment_status to overdue on every posted invoice whose
	// payment is still open and whose due date is before Today. It returns the
	// number of rows changed.
	MarkOverdue(ctx context.Context, params MarkOverdueParams) (int64, error)
}

type invoiceRepository struct {
	db db.DB
}

func NewInvoiceRepository(db db.DB) InvoiceRepository {
	return &invoiceRepository{
		db: db,
	}
}

func (r invoiceRepository) WithDB(db db.DB) InvoiceRepository {
	return &invoiceRepository{
		db: db,
	}
}

func (r invoiceRepository) MarkOverdue(ctx context.Context, params MarkOverdueParams) (int64, error) {
	candidates := make([]string, 0, len(model.OverdueCandidates))
	for _, s := range model.OverdueCandidates {
		candidates = append(candidates, string(s))
	}

	query, args, err := sqlx.In(markOverdueQuery,
		string(model.PaymentStatusOverdue),
		string(model.InvoiceStatusPosted),
		candidates,
		params.Today.Format(time.DateOnly),
	)
	if err != nil {
		return 0, fmt.Errorf("build mark overdue query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get affected rows: %w", err)
	}

	return affected, nil
}
