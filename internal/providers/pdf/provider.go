// Package pdf renders quote and invoice documents. Rendering is invoked
// fire-and-forget from send operations; a failed render attaches a
// warning to an already-committed transition.
package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

type Provider interface {
	RenderQuote(ctx context.Context, data QuoteData) (io.Reader, error)
	RenderInvoice(ctx context.Context, data InvoiceData) (io.Reader, error)
}

// DocumentLine is one priced row on a rendered document. Amount fields
// arrive pre-formatted; layout code never does money arithmetic.
type DocumentLine struct {
	Description string
	Qty         int64
	UnitPrice   string
	Amount      string
}

type QuoteData struct {
	CompanyName  string
	QuoteNumber  string
	IssueDate    string
	ExpiryDate   string
	CustomerName string

	Items []DocumentLine

	Subtotal string
	Discount string
	Tax      string
	Total    string
}

type InvoiceData struct {
	CompanyName   string
	InvoiceNumber string
	IssueDate     string
	DueDate       string
	CustomerName  string

	Items []DocumentLine

	Subtotal   string
	Tax        string
	Total      string
	AmountPaid string
	BalanceDue string
}

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)
