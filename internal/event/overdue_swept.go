package event

import (
	"time"
)

const TopicInvoiceOverdueSwept = "invoice.overdue_swept"

// InvoiceOverdueSweptEvent reports one sweep run that moved invoices to overdue.
type InvoiceOverdueSweptEvent struct {
	RunID   string    `json:"run_id"`
	AsOf    string    `json:"as_of"`
	Marked  int64     `json:"marked"`
	SweptAt time.Time `json:"swept_at"`
}
