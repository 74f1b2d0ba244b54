package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/pyrosafe/fieldops/internal/actorcontext"
	"github.com/pyrosafe/fieldops/internal/clock"
	"github.com/pyrosafe/fieldops/internal/config"
	"github.com/pyrosafe/fieldops/internal/events"
	invoicedomain "github.com/pyrosafe/fieldops/internal/invoice/domain"
	"github.com/pyrosafe/fieldops/internal/money"
	"github.com/pyrosafe/fieldops/internal/statemachine"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Cfg   config.Config
	Bus   *events.Bus
}

type Ledger struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	cfg   config.Config
	bus   *events.Bus
}

func NewLedger(p Params) invoicedomain.Ledger {
	return &Ledger{
		db:    p.DB,
		log:   p.Log.Named("invoice.ledger"),
		clock: p.Clock,
		genID: p.GenID,
		cfg:   p.Cfg,
		bus:   p.Bus,
	}
}

// Create opens a draft invoice. Totals carry subtotal and tax only;
// invoices have no discount field.
func (l *Ledger) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.InvoiceWithItems, error) {
	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		return invoicedomain.InvoiceWithItems{}, invoicedomain.ErrInvalidCustomer
	}

	items := make([]invoicedomain.InvoiceItem, 0, len(req.LineItems))
	amounts := make([]money.Money, 0, len(req.LineItems))
	for i, line := range req.LineItems {
		amount, err := money.LineTotal(line.Quantity, money.Money(line.UnitPrice))
		if err != nil {
			return invoicedomain.InvoiceWithItems{}, err
		}
		items = append(items, invoicedomain.InvoiceItem{
			ID:          l.genID.Generate(),
			Description: strings.TrimSpace(line.Description),
			ItemType:    line.ItemType,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      int64(amount),
			Position:    i,
		})
		amounts = append(amounts, amount)
	}

	subtotal := money.Sum(amounts)
	tax := money.PercentageOf(subtotal, req.TaxRate)
	total := money.Add(subtotal, tax)

	now := l.clock.Now()
	dueDate := req.DueDate
	if dueDate == nil {
		due := now.AddDate(0, 0, l.cfg.InvoiceDueDays)
		dueDate = &due
	}

	invoice := invoicedomain.Invoice{
		ID:             l.genID.Generate(),
		CustomerID:     customerID,
		Status:         invoicedomain.StatusDraft,
		Currency:       l.cfg.DefaultCurrency,
		TaxRateBps:     int64(req.TaxRate),
		SubtotalAmount: int64(subtotal),
		TaxAmount:      int64(tax),
		TotalAmount:    int64(total),
		DueDate:        dueDate,
	}
	if jobID := strings.TrimSpace(req.JobID); jobID != "" {
		parsed, err := snowflake.ParseString(jobID)
		if err != nil {
			return invoicedomain.InvoiceWithItems{}, invoicedomain.ErrNotFound
		}
		invoice.JobID = &parsed
	}
	if quoteID := strings.TrimSpace(req.QuoteID); quoteID != "" {
		parsed, err := snowflake.ParseString(quoteID)
		if err != nil {
			return invoicedomain.InvoiceWithItems{}, invoicedomain.ErrNotFound
		}
		invoice.QuoteID = &parsed
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := l.nextInvoiceNumber(ctx, tx)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number

		if err := tx.Create(&invoice).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].InvoiceID = invoice.ID
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceWithItems{}, err
	}

	return invoicedomain.InvoiceWithItems{Invoice: invoice, Items: items}, nil
}

func (l *Ledger) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceWithItems, error) {
	invoice, err := l.loadInvoice(ctx, id)
	if err != nil {
		return invoicedomain.InvoiceWithItems{}, err
	}

	var items []invoicedomain.InvoiceItem
	err = l.db.WithContext(ctx).
		Where("invoice_id = ?", invoice.ID).
		Order("position ASC, created_at ASC").
		Find(&items).Error
	if err != nil {
		return invoicedomain.InvoiceWithItems{}, err
	}
	return invoicedomain.InvoiceWithItems{Invoice: invoice, Items: items}, nil
}

func (l *Ledger) GetByJobID(ctx context.Context, jobID string) (invoicedomain.Invoice, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(jobID))
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}

	var invoice invoicedomain.Invoice
	err = l.db.WithContext(ctx).First(&invoice, "job_id = ?", parsed).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
		}
		return invoicedomain.Invoice{}, err
	}
	return invoice, nil
}

func (l *Ledger) List(ctx context.Context, customerID string) ([]invoicedomain.Invoice, error) {
	filter := &invoicedomain.Invoice{}
	if trimmed := strings.TrimSpace(customerID); trimmed != "" {
		parsed, err := snowflake.ParseString(trimmed)
		if err != nil {
			return nil, invoicedomain.ErrInvalidCustomer
		}
		filter.CustomerID = parsed
	}

	var invoices []invoicedomain.Invoice
	err := l.db.WithContext(ctx).
		Where(filter).
		Order("created_at DESC").
		Find(&invoices).Error
	return invoices, err
}

// Send moves a draft to sent; resending is a no-op transition. Terminal
// invoices fail with ErrAlreadyTerminal rather than a generic illegal
// transition so callers can distinguish the case.
func (l *Ledger) Send(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoice, err := l.loadInvoice(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoicedomain.Lifecycle().IsTerminal(statemachine.State(invoice.Status)) {
		return invoicedomain.Invoice{}, invoicedomain.ErrAlreadyTerminal
	}

	next, err := invoicedomain.Lifecycle().Apply(statemachine.State(invoice.Status), invoicedomain.EventSend)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	now := l.clock.Now()
	updates := map[string]any{
		"status":     string(next),
		"updated_at": now,
	}
	if invoice.SentAt == nil {
		updates["sent_at"] = now
	}

	if err := l.casUpdate(ctx, invoice, updates); err != nil {
		return invoicedomain.Invoice{}, err
	}

	l.bus.Publish(ctx, events.TopicInvoiceSent, events.InvoiceSent{
		InvoiceID:  invoice.ID,
		CustomerID: invoice.CustomerID,
	})

	return l.loadInvoice(ctx, id)
}

func (l *Ledger) MarkViewed(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoice, err := l.loadInvoice(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	next, err := invoicedomain.Lifecycle().Apply(statemachine.State(invoice.Status), invoicedomain.EventView)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	err = l.casUpdate(ctx, invoice, map[string]any{
		"status":     string(next),
		"updated_at": l.clock.Now(),
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return l.loadInvoice(ctx, id)
}

// RecordPayment appends a completed charge and re-derives the invoice
// status from the new amount_paid in the same transaction. paid_at is
// stamped exactly once, on the payment that settles the balance.
func (l *Ledger) RecordPayment(ctx context.Context, id string, req invoicedomain.RecordPaymentRequest) (invoicedomain.Payment, invoicedomain.Invoice, error) {
	if req.Amount <= 0 {
		return invoicedomain.Payment{}, invoicedomain.Invoice{}, money.ErrInvalidAmount
	}

	invoice, err := l.loadInvoice(ctx, id)
	if err != nil {
		return invoicedomain.Payment{}, invoicedomain.Invoice{}, err
	}
	if invoicedomain.Lifecycle().IsTerminal(statemachine.State(invoice.Status)) {
		return invoicedomain.Payment{}, invoicedomain.Invoice{}, invoicedomain.ErrAlreadyTerminal
	}
	if !invoicedomain.Payable(invoice.Status) {
		return invoicedomain.Payment{}, invoicedomain.Invoice{}, invoicedomain.ErrNotPayable
	}

	newPaid := invoice.AmountPaid + req.Amount
	event := invoicedomain.EventRecordPartial
	if newPaid >= invoice.TotalAmount {
		event = invoicedomain.EventSettle
	}
	next, err := invoicedomain.Lifecycle().Apply(statemachine.State(invoice.Status), event)
	if err != nil {
		return invoicedomain.Payment{}, invoicedomain.Invoice{}, err
	}

	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = "other"
	}

	now := l.clock.Now()
	payment := invoicedomain.Payment{
		ID:          l.genID.Generate(),
		InvoiceID:   invoice.ID,
		CustomerID:  invoice.CustomerID,
		Kind:        invoicedomain.KindCharge,
		Amount:      req.Amount,
		Method:      method,
		Status:      invoicedomain.PaymentCompleted,
		Notes:       strings.TrimSpace(req.Notes),
		RecordedBy:  actorcontext.ActorOrSystem(ctx),
		PaymentDate: now,
	}

	updates := map[string]any{
		"status":      string(next),
		"amount_paid": newPaid,
		"updated_at":  now,
	}
	if event == invoicedomain.EventSettle && invoice.PaidAt == nil {
		updates["paid_at"] = now
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		res := tx.Model(&invoicedomain.Invoice{}).
			Where("id = ? AND status = ? AND amount_paid = ?", invoice.ID, invoice.Status, invoice.AmountPaid).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return invoicedomain.ErrConcurrentModification
		}
		return nil
	})
	if err != nil {
		return invoicedomain.Payment{}, invoicedomain.Invoice{}, err
	}

	if event == invoicedomain.EventSettle {
		l.bus.Publish(ctx, events.TopicInvoicePaid, events.InvoicePaid{
			InvoiceID:  invoice.ID,
			CustomerID: invoice.CustomerID,
			JobID:      invoice.JobID,
		})
	}

	settled, err := l.loadInvoice(ctx, id)
	if err != nil {
		return invoicedomain.Payment{}, invoicedomain.Invoice{}, err
	}
	return payment, settled, nil
}

// SettleManually covers the operator "mark as paid" override. It routes
// through RecordPayment with a synthetic manual payment for the open
// balance, so amount_paid keeps driving status and the payment history
// stays complete.
func (l *Ledger) SettleManually(ctx context.Context, id, notes string) (invoicedomain.Invoice, error) {
	invoice, err := l.loadInvoice(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.Status == invoicedomain.StatusPaid {
		return invoice, nil
	}

	remaining := invoice.BalanceDue()
	if remaining <= 0 {
		return invoice, nil
	}

	_, settled, err := l.RecordPayment(ctx, id, invoicedomain.RecordPaymentRequest{
		Amount: remaining,
		Method: invoicedomain.MethodManual,
		Notes:  notes,
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	l.log.Info("invoice settled manually",
		zap.String("invoice_id", invoice.ID.String()),
		zap.Int64("amount", remaining),
	)
	return settled, nil
}

// Void cancels a non-paid invoice. Payment history is kept; only the
// status moves.
func (l *Ledger) Void(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoice, err := l.loadInvoice(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoicedomain.Lifecycle().IsTerminal(statemachine.State(invoice.Status)) {
		return invoicedomain.Invoice{}, invoicedomain.ErrAlreadyTerminal
	}

	next, err := invoicedomain.Lifecycle().Apply(statemachine.State(invoice.Status), invoicedomain.EventCancel)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	err = l.casUpdate(ctx, invoice, map[string]any{
		"status":     string(next),
		"updated_at": l.clock.Now(),
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return l.loadInvoice(ctx, id)
}

// Refund reverses a paid invoice with a compensating refund record. The
// settled charge rows are never mutated.
func (l *Ledger) Refund(ctx context.Context, id, notes string) (invoicedomain.Invoice, error) {
	invoice, err := l.loadInvoice(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.Status != invoicedomain.StatusPaid {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotPaid
	}

	next, err := invoicedomain.Lifecycle().Apply(statemachine.State(invoice.Status), invoicedomain.EventRefund)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	now := l.clock.Now()
	refund := invoicedomain.Payment{
		ID:          l.genID.Generate(),
		InvoiceID:   invoice.ID,
		CustomerID:  invoice.CustomerID,
		Kind:        invoicedomain.KindRefund,
		Amount:      invoice.AmountPaid,
		Method:      invoicedomain.MethodManual,
		Status:      invoicedomain.PaymentCompleted,
		Notes:       strings.TrimSpace(notes),
		RecordedBy:  actorcontext.ActorOrSystem(ctx),
		PaymentDate: now,
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&refund).Error; err != nil {
			return err
		}
		res := tx.Model(&invoicedomain.Invoice{}).
			Where("id = ? AND status = ?", invoice.ID, invoice.Status).
			Updates(map[string]any{
				"status":      string(next),
				"amount_paid": 0,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return invoicedomain.ErrConcurrentModification
		}
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return l.loadInvoice(ctx, id)
}

func (l *Ledger) Payments(ctx context.Context, id string) ([]invoicedomain.Payment, error) {
	invoice, err := l.loadInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	var payments []invoicedomain.Payment
	err = l.db.WithContext(ctx).
		Where("invoice_id = ?", invoice.ID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (l *Ledger) casUpdate(ctx context.Context, invoice invoicedomain.Invoice, updates map[string]any) error {
	res := l.db.WithContext(ctx).Model(&invoicedomain.Invoice{}).
		Where("id = ? AND status = ?", invoice.ID, invoice.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return invoicedomain.ErrConcurrentModification
	}
	return nil
}

func (l *Ledger) loadInvoice(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}

	var invoice invoicedomain.Invoice
	err = l.db.WithContext(ctx).First(&invoice, "id = ?", invoiceID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
		}
		return invoicedomain.Invoice{}, err
	}
	return invoice, nil
}

func (l *Ledger) nextInvoiceNumber(ctx context.Context, tx *gorm.DB) (int64, error) {
	var next int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(invoice_number), 0) + 1 FROM invoices`,
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}
