package model

import (
	"time"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusPosted    InvoiceStatus = "posted"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusNew     PaymentStatus = "new"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusOverdue PaymentStatus = "overdue"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// OverdueCandidates are the payment statuses the overdue sweep may move to overdue.
var OverdueCandidates = []PaymentStatus{PaymentStatusNew, PaymentStatusPartial}

// Invoice is a purchase invoice row. The table is owned by the accounting
// application; this process only reads and updates it.
type Invoice struct {
	ID            uint64        `db:"id" json:"id"`
	InvoiceNumber string        `db:"invoice_number" json:"invoice_number"`
	SupplierID    uint64        `db:"supplier_id" json:"supplier_id"`
	Status        InvoiceStatus `db:"status" json:"status"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`
	TotalAmount   float64       `db:"total_amount" json:"total_amount"`
	PaidAmount    float64       `db:"paid_amount" json:"paid_amount"`
	InvoiceDate   time.Time     `db:"invoice_date" json:"invoice_date"`
	DueDate       *time.Time    `db:"due_date" json:"due_date,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}
