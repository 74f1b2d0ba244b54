// Package domain contains persistence models and the settlement lifecycle
// for invoices and their payments.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvoiceStatus represents invoice lifecycle states. Overdue is never
// stored; it is derived from due_date and status at read time.
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "draft"
	StatusSent      InvoiceStatus = "sent"
	StatusViewed    InvoiceStatus = "viewed"
	StatusPartial   InvoiceStatus = "partial"
	StatusPaid      InvoiceStatus = "paid"
	StatusCancelled InvoiceStatus = "cancelled"
	StatusRefunded  InvoiceStatus = "refunded"
)

// Invoice is a billing document. JobID carries provenance when the
// invoice was generated from a completed job; its unique index makes the
// conversion at-most-once. AmountPaid only moves through the payment
// recording path, never by direct field writes.
type Invoice struct {
	ID            snowflake.ID  `json:"id" gorm:"primaryKey"`
	InvoiceNumber int64         `json:"invoice_number" gorm:"not null;index"`
	CustomerID    snowflake.ID  `json:"customer_id" gorm:"not null;index"`
	JobID         *snowflake.ID `json:"job_id" gorm:"uniqueIndex:ux_invoices_job_id"`
	QuoteID       *snowflake.ID `json:"quote_id" gorm:"index"`

	Status   InvoiceStatus `json:"status" gorm:"type:text;not null;default:'draft'"`
	Currency string        `json:"currency" gorm:"type:text;not null"`

	TaxRateBps     int64 `json:"tax_rate_bps" gorm:"not null;default:0"`
	SubtotalAmount int64 `json:"subtotal_amount" gorm:"not null;default:0"`
	TaxAmount      int64 `json:"tax_amount" gorm:"not null;default:0"`
	TotalAmount    int64 `json:"total_amount" gorm:"not null;default:0"`
	AmountPaid     int64 `json:"amount_paid" gorm:"not null;default:0"`

	DueDate   *time.Time `json:"due_date"`
	SentAt    *time.Time `json:"sent_at"`
	PaidAt    *time.Time `json:"paid_at"`
	CreatedAt time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"not null"`
}

func (Invoice) TableName() string { return "invoices" }

// BalanceDue is always derived, never stored.
func (i Invoice) BalanceDue() int64 { return i.TotalAmount - i.AmountPaid }

// IsOverdue reports whether the invoice is past due and still owed.
func (i Invoice) IsOverdue(now time.Time) bool {
	if i.DueDate == nil {
		return false
	}
	switch i.Status {
	case StatusPaid, StatusCancelled, StatusRefunded:
		return false
	}
	return i.DueDate.Before(now)
}

type InvoiceItem struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	InvoiceID   snowflake.ID `json:"invoice_id" gorm:"not null;index"`
	Description string       `json:"description" gorm:"type:text;not null"`
	ItemType    string       `json:"item_type" gorm:"type:text;not null"`
	Quantity    int64        `json:"quantity" gorm:"not null"`
	UnitPrice   int64        `json:"unit_price" gorm:"not null"`
	Amount      int64        `json:"amount" gorm:"not null"`
	Position    int          `json:"position" gorm:"not null;default:0"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }

// PaymentKind distinguishes money in from compensating records. Refunds
// and voids never mutate settled payments; they append.
type PaymentKind string

const (
	KindCharge PaymentKind = "charge"
	KindRefund PaymentKind = "refund"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// MethodManual marks settlement records created by the manual override
// path so the payment history stays in sync with amount_paid.
const MethodManual = "manual"

type Payment struct {
	ID         snowflake.ID  `json:"id" gorm:"primaryKey"`
	InvoiceID  snowflake.ID  `json:"invoice_id" gorm:"not null;index"`
	CustomerID snowflake.ID  `json:"customer_id" gorm:"not null;index"`
	Kind       PaymentKind   `json:"kind" gorm:"type:text;not null;default:'charge'"`
	Amount     int64         `json:"amount" gorm:"not null"`
	Method     string        `json:"payment_method" gorm:"type:text;not null"`
	Status     PaymentStatus `json:"status" gorm:"type:text;not null"`
	Notes      string        `json:"notes" gorm:"type:text"`
	RecordedBy string        `json:"recorded_by" gorm:"type:text;not null"`

	PaymentDate time.Time `json:"payment_date" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }
