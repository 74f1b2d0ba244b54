package domain

import (
	"context"
	"errors"
	"time"

	"github.com/pyrosafe/fieldops/internal/money"
)

var (
	ErrNotFound               = errors.New("not_found")
	ErrInvalidCustomer        = errors.New("invalid_customer")
	ErrAlreadyTerminal        = errors.New("already_terminal")
	ErrNotPayable             = errors.New("not_payable")
	ErrNotPaid                = errors.New("not_paid")
	ErrConcurrentModification = errors.New("concurrent_modification")
)

type LineItemRequest struct {
	Description string `json:"description"`
	ItemType    string `json:"item_type"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

type CreateInvoiceRequest struct {
	CustomerID string            `json:"customer_id"`
	LineItems  []LineItemRequest `json:"line_items"`
	TaxRate    money.Bps         `json:"-"`
	DueDate    *time.Time        `json:"due_date"`

	// Provenance, set by the conversion coordinator.
	JobID   string `json:"job_id"`
	QuoteID string `json:"quote_id"`
}

type RecordPaymentRequest struct {
	Amount int64  `json:"amount"`
	Method string `json:"payment_method"`
	Notes  string `json:"notes"`
}

type InvoiceWithItems struct {
	Invoice Invoice       `json:"invoice"`
	Items   []InvoiceItem `json:"items"`
}

// Ledger owns invoices and their payment history. Status is always
// derived from amount_paid through RecordPayment; SettleManually is the
// sanctioned override path and still produces a Payment record so the
// history can never drift from the balance.
type Ledger interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (InvoiceWithItems, error)
	GetByID(ctx context.Context, id string) (InvoiceWithItems, error)
	GetByJobID(ctx context.Context, jobID string) (Invoice, error)
	List(ctx context.Context, customerID string) ([]Invoice, error)
	Send(ctx context.Context, id string) (Invoice, error)
	MarkViewed(ctx context.Context, id string) (Invoice, error)
	RecordPayment(ctx context.Context, id string, req RecordPaymentRequest) (Payment, Invoice, error)
	SettleManually(ctx context.Context, id, notes string) (Invoice, error)
	Void(ctx context.Context, id string) (Invoice, error)
	Refund(ctx context.Context, id, notes string) (Invoice, error)
	Payments(ctx context.Context, id string) ([]Payment, error)
}
