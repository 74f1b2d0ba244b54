package domain

import (
	"context"
	"errors"

	"github.com/pyrosafe/fieldops/internal/money"
	"github.com/pyrosafe/fieldops/internal/statemachine"
)

var (
	ErrNotFound               = errors.New("not_found")
	ErrInvalidCustomer        = errors.New("invalid_customer")
	ErrInvalidItemType        = errors.New("invalid_item_type")
	ErrQuoteLocked            = errors.New("quote_locked")
	ErrConcurrentModification = errors.New("concurrent_modification")
)

type LineItemRequest struct {
	Description string   `json:"description"`
	ItemType    ItemType `json:"item_type"`
	Quantity    int64    `json:"quantity"`
	UnitPrice   int64    `json:"unit_price"`
}

type CreateQuoteRequest struct {
	CustomerID   string            `json:"customer_id"`
	SiteID       string            `json:"site_id"`
	LineItems    []LineItemRequest `json:"line_items"`
	TaxRate      money.Bps         `json:"-"`
	DiscountRate money.Bps         `json:"-"`
}

type FromDeficienciesRequest struct {
	InspectionID  string    `json:"inspection_id"`
	DeficiencyIDs []string  `json:"deficiency_ids"`
	TaxRate       money.Bps `json:"-"`
	DiscountRate  money.Bps `json:"-"`
}

type QuoteWithItems struct {
	Quote Quote       `json:"quote"`
	Items []QuoteItem `json:"items"`
}

// Engine builds and mutates priced quote documents. All line-item
// mutation is restricted to draft quotes; totals are recomputed inside
// the same transaction as every mutation.
type Engine interface {
	Create(ctx context.Context, req CreateQuoteRequest) (QuoteWithItems, error)
	FromDeficiencies(ctx context.Context, req FromDeficienciesRequest) (QuoteWithItems, error)
	GetByID(ctx context.Context, id string) (QuoteWithItems, error)
	List(ctx context.Context, customerID string) ([]Quote, error)
	AddLineItem(ctx context.Context, id string, item LineItemRequest) (QuoteWithItems, error)
	UpdateLineItem(ctx context.Context, id, itemID string, item LineItemRequest) (QuoteWithItems, error)
	RemoveLineItem(ctx context.Context, id, itemID string) (QuoteWithItems, error)
	Transition(ctx context.Context, id string, event statemachine.Event) (Quote, error)
}
