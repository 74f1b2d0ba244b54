// Package notify turns committed document transitions into outbound
// side effects: rendering the PDF and emailing the customer. Handlers run
// after the state change commits; any failure here is logged and the
// transition stands.
package notify

import (
	"context"
	"fmt"
	"time"

	customerdomain "github.com/pyrosafe/fieldops/internal/customer/domain"
	"github.com/pyrosafe/fieldops/internal/events"
	invoicedomain "github.com/pyrosafe/fieldops/internal/invoice/domain"
	"github.com/pyrosafe/fieldops/internal/money"
	"github.com/pyrosafe/fieldops/internal/providers/email"
	"github.com/pyrosafe/fieldops/internal/providers/pdf"
	quotedomain "github.com/pyrosafe/fieldops/internal/quote/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type Params struct {
	fx.In

	Log       *zap.Logger
	Bus       *events.Bus
	Quotes    quotedomain.Engine
	Invoices  invoicedomain.Ledger
	Customers customerdomain.Service
	Email     email.Provider
	PDF       pdf.Provider
}

type Notifier struct {
	log       *zap.Logger
	quotes    quotedomain.Engine
	invoices  invoicedomain.Ledger
	customers customerdomain.Service
	email     email.Provider
	pdf       pdf.Provider
}

func NewNotifier(p Params) *Notifier {
	n := &Notifier{
		log:       p.Log.Named("notify"),
		quotes:    p.Quotes,
		invoices:  p.Invoices,
		customers: p.Customers,
		email:     p.Email,
		pdf:       p.PDF,
	}

	p.Bus.Subscribe(events.TopicQuoteSent, n.onQuoteSent)
	p.Bus.Subscribe(events.TopicInvoiceSent, n.onInvoiceSent)
	p.Bus.Subscribe(events.TopicInvoicePaid, n.onInvoicePaid)

	return n
}

func (n *Notifier) onQuoteSent(ctx context.Context, payload any) {
	fact, ok := payload.(events.QuoteSent)
	if !ok {
		return
	}

	quote, err := n.quotes.GetByID(ctx, fact.QuoteID.String())
	if err != nil {
		n.log.Warn("quote notification skipped", zap.Error(err))
		return
	}
	customer, err := n.customers.GetByID(ctx, fact.CustomerID.String())
	if err != nil {
		n.log.Warn("quote notification skipped", zap.Error(err))
		return
	}

	if _, err := n.pdf.RenderQuote(ctx, quotePDFData(quote, customer.Name)); err != nil {
		n.log.Warn("quote pdf render failed",
			zap.String("quote_id", fact.QuoteID.String()),
			zap.Error(err),
		)
	}

	subject := fmt.Sprintf("Quote #%d for your review", quote.Quote.QuoteNumber)
	body := fmt.Sprintf("<p>Hi %s,</p><p>Your quote #%d totaling $%s is ready for review.</p>",
		customer.Name, quote.Quote.QuoteNumber,
		money.FormatAmount(money.Money(quote.Quote.TotalAmount)))
	n.send(ctx, customer.Email, subject, body, "quote", fact.QuoteID.String())
}

func (n *Notifier) onInvoiceSent(ctx context.Context, payload any) {
	fact, ok := payload.(events.InvoiceSent)
	if !ok {
		return
	}

	invoice, err := n.invoices.GetByID(ctx, fact.InvoiceID.String())
	if err != nil {
		n.log.Warn("invoice notification skipped", zap.Error(err))
		return
	}
	customer, err := n.customers.GetByID(ctx, fact.CustomerID.String())
	if err != nil {
		n.log.Warn("invoice notification skipped", zap.Error(err))
		return
	}

	if _, err := n.pdf.RenderInvoice(ctx, invoicePDFData(invoice, customer.Name)); err != nil {
		n.log.Warn("invoice pdf render failed",
			zap.String("invoice_id", fact.InvoiceID.String()),
			zap.Error(err),
		)
	}

	subject := fmt.Sprintf("Invoice #%d", invoice.Invoice.InvoiceNumber)
	body := fmt.Sprintf("<p>Hi %s,</p><p>Invoice #%d for $%s is due %s.</p>",
		customer.Name, invoice.Invoice.InvoiceNumber,
		money.FormatAmount(money.Money(invoice.Invoice.TotalAmount)),
		formatDate(invoice.Invoice.DueDate))
	n.send(ctx, customer.Email, subject, body, "invoice", fact.InvoiceID.String())
}

func (n *Notifier) onInvoicePaid(ctx context.Context, payload any) {
	fact, ok := payload.(events.InvoicePaid)
	if !ok {
		return
	}

	invoice, err := n.invoices.GetByID(ctx, fact.InvoiceID.String())
	if err != nil {
		n.log.Warn("receipt notification skipped", zap.Error(err))
		return
	}
	customer, err := n.customers.GetByID(ctx, fact.CustomerID.String())
	if err != nil {
		n.log.Warn("receipt notification skipped", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("Payment received for invoice #%d", invoice.Invoice.InvoiceNumber)
	body := fmt.Sprintf("<p>Hi %s,</p><p>We received your payment of $%s. Thank you.</p>",
		customer.Name, money.FormatAmount(money.Money(invoice.Invoice.AmountPaid)))
	n.send(ctx, customer.Email, subject, body, "invoice", fact.InvoiceID.String())
}

func (n *Notifier) send(ctx context.Context, to, subject, body, kind, id string) {
	if to == "" {
		n.log.Warn("notification skipped, customer has no email",
			zap.String(kind+"_id", id),
		)
		return
	}
	if err := n.email.Send(ctx, []string{to}, subject, body); err != nil {
		n.log.Warn("notification delivery failed",
			zap.String(kind+"_id", id),
			zap.Error(err),
		)
	}
}

func quotePDFData(quote quotedomain.QuoteWithItems, customerName string) pdf.QuoteData {
	data := pdf.QuoteData{
		CompanyName:  "PyroSafe Field Operations",
		QuoteNumber:  fmt.Sprintf("%d", quote.Quote.QuoteNumber),
		IssueDate:    quote.Quote.CreatedAt.Format(dateLayout),
		ExpiryDate:   formatDate(quote.Quote.ExpiresAt),
		CustomerName: customerName,
		Subtotal:     money.FormatAmount(money.Money(quote.Quote.SubtotalAmount)),
		Tax:          money.FormatAmount(money.Money(quote.Quote.TaxAmount)),
		Total:        money.FormatAmount(money.Money(quote.Quote.TotalAmount)),
	}
	if quote.Quote.DiscountAmount > 0 {
		data.Discount = money.FormatAmount(money.Money(quote.Quote.DiscountAmount))
	}
	for _, item := range quote.Items {
		data.Items = append(data.Items, pdf.DocumentLine{
			Description: item.Description,
			Qty:         item.Quantity,
			UnitPrice:   money.FormatAmount(money.Money(item.UnitPrice)),
			Amount:      money.FormatAmount(money.Money(item.Amount)),
		})
	}
	return data
}

func invoicePDFData(invoice invoicedomain.InvoiceWithItems, customerName string) pdf.InvoiceData {
	data := pdf.InvoiceData{
		CompanyName:   "PyroSafe Field Operations",
		InvoiceNumber: fmt.Sprintf("%d", invoice.Invoice.InvoiceNumber),
		IssueDate:     invoice.Invoice.CreatedAt.Format(dateLayout),
		DueDate:       formatDate(invoice.Invoice.DueDate),
		CustomerName:  customerName,
		Subtotal:      money.FormatAmount(money.Money(invoice.Invoice.SubtotalAmount)),
		Tax:           money.FormatAmount(money.Money(invoice.Invoice.TaxAmount)),
		Total:         money.FormatAmount(money.Money(invoice.Invoice.TotalAmount)),
		AmountPaid:    money.FormatAmount(money.Money(invoice.Invoice.AmountPaid)),
		BalanceDue:    money.FormatAmount(money.Money(invoice.Invoice.BalanceDue())),
	}
	for _, item := range invoice.Items {
		data.Items = append(data.Items, pdf.DocumentLine{
			Description: item.Description,
			Qty:         item.Quantity,
			UnitPrice:   money.FormatAmount(money.Money(item.UnitPrice)),
			Amount:      money.FormatAmount(money.Money(item.Amount)),
		})
	}
	return data
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

var Module = fx.Module("notify",
	fx.Invoke(NewNotifier),
)
