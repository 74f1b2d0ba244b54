package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pyrosafe/fieldops/internal/actorcontext"
	"github.com/pyrosafe/fieldops/internal/clock"
	"github.com/pyrosafe/fieldops/internal/config"
	"github.com/pyrosafe/fieldops/internal/events"
	invoicedomain "github.com/pyrosafe/fieldops/internal/invoice/domain"
	invoiceservice "github.com/pyrosafe/fieldops/internal/invoice/service"
	"github.com/pyrosafe/fieldops/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ledgerFixture struct {
	ledger invoicedomain.Ledger
	db     *gorm.DB
	clock  *clock.FakeClock
	node   *snowflake.Node
	bus    *events.Bus
}

func setupLedger(t *testing.T) *ledgerFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:invoice_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.Payment{},
	))

	node, err := snowflake.NewNode(22)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, time.May, 11, 10, 0, 0, 0, time.UTC))
	bus := events.NewBus(zap.NewNop())

	ledger := invoiceservice.NewLedger(invoiceservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fakeClock,
		GenID: node,
		Cfg: config.Config{
			DefaultCurrency: "USD",
			InvoiceDueDays:  30,
		},
		Bus: bus,
	})

	return &ledgerFixture{ledger: ledger, db: db, clock: fakeClock, node: node, bus: bus}
}

// createStandardInvoice builds the $974.25 scenario invoice: $900.00 of
// work plus 8.25% tax.
func (f *ledgerFixture) createStandardInvoice(t *testing.T) invoicedomain.InvoiceWithItems {
	t.Helper()

	created, err := f.ledger.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		CustomerID: f.node.Generate().String(),
		LineItems: []invoicedomain.LineItemRequest{
			{Description: "Corrective repairs", ItemType: "service", Quantity: 1, UnitPrice: 90000},
		},
		TaxRate: 825,
	})
	require.NoError(t, err)
	return created
}

func TestCreateComputesSubtotalAndTaxOnly(t *testing.T) {
	f := setupLedger(t)

	created := f.createStandardInvoice(t)
	assert.Equal(t, invoicedomain.StatusDraft, created.Invoice.Status)
	assert.Equal(t, int64(1), created.Invoice.InvoiceNumber)
	assert.Equal(t, int64(90000), created.Invoice.SubtotalAmount)
	assert.Equal(t, int64(7425), created.Invoice.TaxAmount)
	assert.Equal(t, int64(97425), created.Invoice.TotalAmount)
	require.NotNil(t, created.Invoice.DueDate)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 30), created.Invoice.DueDate.UTC())
}

func TestPartialThenFinalPaymentSettles(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	created := f.createStandardInvoice(t)
	id := created.Invoice.ID.String()

	var paidFacts []events.InvoicePaid
	f.bus.Subscribe(events.TopicInvoicePaid, func(_ context.Context, payload any) {
		if fact, ok := payload.(events.InvoicePaid); ok {
			paidFacts = append(paidFacts, fact)
		}
	})

	_, err := f.ledger.Send(ctx, id)
	require.NoError(t, err)

	_, partial, err := f.ledger.RecordPayment(ctx, id, invoicedomain.RecordPaymentRequest{
		Amount: 50000, Method: "check",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPartial, partial.Status)
	assert.Equal(t, int64(47425), partial.BalanceDue())
	assert.Nil(t, partial.PaidAt)
	assert.Empty(t, paidFacts)

	f.clock.Advance(24 * time.Hour)
	_, settled, err := f.ledger.RecordPayment(ctx, id, invoicedomain.RecordPaymentRequest{
		Amount: 47425, Method: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, settled.Status)
	assert.Equal(t, int64(0), settled.BalanceDue())
	require.NotNil(t, settled.PaidAt)
	firstPaidAt := *settled.PaidAt
	require.Len(t, paidFacts, 1)

	// Settled invoices accept no further payments and paid_at holds.
	_, _, err = f.ledger.RecordPayment(ctx, id, invoicedomain.RecordPaymentRequest{
		Amount: 100, Method: "card",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrNotPayable)

	reloaded, err := f.ledger.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Invoice.PaidAt)
	assert.True(t, reloaded.Invoice.PaidAt.Equal(firstPaidAt))
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	f := setupLedger(t)
	created := f.createStandardInvoice(t)

	_, _, err := f.ledger.RecordPayment(context.Background(), created.Invoice.ID.String(),
		invoicedomain.RecordPaymentRequest{Amount: 0, Method: "check"})
	assert.ErrorIs(t, err, money.ErrInvalidAmount)

	_, _, err = f.ledger.RecordPayment(context.Background(), created.Invoice.ID.String(),
		invoicedomain.RecordPaymentRequest{Amount: -500, Method: "check"})
	assert.ErrorIs(t, err, money.ErrInvalidAmount)
}

func TestSettleManuallyCreatesSyntheticPayment(t *testing.T) {
	f := setupLedger(t)
	ctx := actorcontext.WithActor(context.Background(), "office-admin")
	created := f.createStandardInvoice(t)
	id := created.Invoice.ID.String()

	settled, err := f.ledger.SettleManually(ctx, id, "paid by check, no processor record")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, settled.Status)
	assert.Equal(t, int64(97425), settled.AmountPaid)

	payments, err := f.ledger.Payments(ctx, id)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, invoicedomain.MethodManual, payments[0].Method)
	assert.Equal(t, invoicedomain.KindCharge, payments[0].Kind)
	assert.Equal(t, int64(97425), payments[0].Amount)
	assert.Equal(t, "office-admin", payments[0].RecordedBy)

	// Settling an already-paid invoice is a no-op, not an error.
	again, err := f.ledger.SettleManually(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, again.Status)
	payments, err = f.ledger.Payments(ctx, id)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestVoidKeepsPaymentHistory(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	created := f.createStandardInvoice(t)
	id := created.Invoice.ID.String()

	_, err := f.ledger.Send(ctx, id)
	require.NoError(t, err)
	_, _, err = f.ledger.RecordPayment(ctx, id, invoicedomain.RecordPaymentRequest{
		Amount: 10000, Method: "check",
	})
	require.NoError(t, err)

	voided, err := f.ledger.Void(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusCancelled, voided.Status)

	payments, err := f.ledger.Payments(ctx, id)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	// Cancelled is terminal for both send and further payment.
	_, err = f.ledger.Send(ctx, id)
	assert.ErrorIs(t, err, invoicedomain.ErrAlreadyTerminal)
	_, _, err = f.ledger.RecordPayment(ctx, id, invoicedomain.RecordPaymentRequest{
		Amount: 100, Method: "check",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrAlreadyTerminal)

	_, err = f.ledger.Void(ctx, id)
	assert.ErrorIs(t, err, invoicedomain.ErrAlreadyTerminal)
}

func TestVoidRejectedOnPaidInvoice(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	created := f.createStandardInvoice(t)
	id := created.Invoice.ID.String()

	_, err := f.ledger.SettleManually(ctx, id, "")
	require.NoError(t, err)

	_, err = f.ledger.Void(ctx, id)
	assert.Error(t, err)
}

func TestRefundAppendsCompensatingRecord(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	created := f.createStandardInvoice(t)
	id := created.Invoice.ID.String()

	_, err := f.ledger.Refund(ctx, id, "not yet paid")
	assert.ErrorIs(t, err, invoicedomain.ErrNotPaid)

	_, err = f.ledger.SettleManually(ctx, id, "")
	require.NoError(t, err)

	refunded, err := f.ledger.Refund(ctx, id, "duplicate billing")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusRefunded, refunded.Status)
	assert.Equal(t, int64(0), refunded.AmountPaid)

	payments, err := f.ledger.Payments(ctx, id)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, invoicedomain.KindCharge, payments[0].Kind)
	assert.Equal(t, invoicedomain.KindRefund, payments[1].Kind)
	assert.Equal(t, int64(97425), payments[1].Amount)
}

func TestOverdueIsDerived(t *testing.T) {
	f := setupLedger(t)
	created := f.createStandardInvoice(t)

	now := f.clock.Now()
	assert.False(t, created.Invoice.IsOverdue(now))
	assert.True(t, created.Invoice.IsOverdue(now.AddDate(0, 0, 31)))

	settled, err := f.ledger.SettleManually(context.Background(), created.Invoice.ID.String(), "")
	require.NoError(t, err)
	assert.False(t, settled.IsOverdue(now.AddDate(0, 0, 31)))
}
