package conversion_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pyrosafe/fieldops/internal/clock"
	"github.com/pyrosafe/fieldops/internal/config"
	"github.com/pyrosafe/fieldops/internal/conversion"
	deficiencydomain "github.com/pyrosafe/fieldops/internal/deficiency/domain"
	deficiencyservice "github.com/pyrosafe/fieldops/internal/deficiency/service"
	"github.com/pyrosafe/fieldops/internal/events"
	invoicedomain "github.com/pyrosafe/fieldops/internal/invoice/domain"
	invoiceservice "github.com/pyrosafe/fieldops/internal/invoice/service"
	jobdomain "github.com/pyrosafe/fieldops/internal/job/domain"
	jobservice "github.com/pyrosafe/fieldops/internal/job/service"
	quotedomain "github.com/pyrosafe/fieldops/internal/quote/domain"
	quoteservice "github.com/pyrosafe/fieldops/internal/quote/service"
	"github.com/pyrosafe/fieldops/internal/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stack struct {
	coordinator *conversion.Coordinator
	quotes      quotedomain.Engine
	jobs        jobdomain.Service
	invoices    invoicedomain.Ledger
	db          *gorm.DB
	clock       *clock.FakeClock
	node        *snowflake.Node
}

func setupStack(t *testing.T) *stack {
	t.Helper()

	dsn := fmt.Sprintf("file:conversion_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&deficiencydomain.Deficiency{},
		&quotedomain.Quote{},
		&quotedomain.QuoteItem{},
		&jobdomain.Job{},
		&jobdomain.JobAssignment{},
		&jobdomain.JobEvent{},
		&jobdomain.JobNote{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.Payment{},
	))

	node, err := snowflake.NewNode(23)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC))
	bus := events.NewBus(zap.NewNop())
	cfg := config.Config{
		DefaultCurrency: "USD",
		QuoteValidDays:  30,
		InvoiceDueDays:  30,
	}

	ledger := deficiencyservice.NewLedger(deficiencyservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node,
	})
	quotes := quoteservice.NewEngine(quoteservice.Params{
		DB: db, Log: zap.NewNop(), Clock: fakeClock, GenID: node, Cfg: cfg,
		Pricing: config.NewStaticPricingPolicyHolder(config.DefaultPricingPolicy()),
		Ledger:  ledger,
		Bus:     bus,
	})
	jobs := jobservice.NewService(jobservice.Params{
		DB: db, Log: zap.NewNop(), Clock: fakeClock, GenID: node, Cfg: cfg, Bus: bus,
	})
	invoices := invoiceservice.NewLedger(invoiceservice.Params{
		DB: db, Log: zap.NewNop(), Clock: fakeClock, GenID: node, Cfg: cfg, Bus: bus,
	})

	coordinator := conversion.NewCoordinator(conversion.Params{
		DB: db, Log: zap.NewNop(),
		Quotes: quotes, Jobs: jobs, Ledger: invoices, Bus: bus,
	})

	return &stack{
		coordinator: coordinator,
		quotes:      quotes,
		jobs:        jobs,
		invoices:    invoices,
		db:          db,
		clock:       fakeClock,
		node:        node,
	}
}

func (s *stack) acceptedQuote(t *testing.T) quotedomain.QuoteWithItems {
	t.Helper()
	ctx := context.Background()

	created, err := s.quotes.Create(ctx, quotedomain.CreateQuoteRequest{
		CustomerID: s.node.Generate().String(),
		LineItems: []quotedomain.LineItemRequest{
			{Description: "Replace backflow preventer", ItemType: quotedomain.ItemTypeEquipment, Quantity: 1, UnitPrice: 90000},
		},
		TaxRate: 825,
	})
	require.NoError(t, err)

	_, err = s.quotes.Transition(ctx, created.Quote.ID.String(), quotedomain.EventSend)
	require.NoError(t, err)
	_, err = s.quotes.Transition(ctx, created.Quote.ID.String(), quotedomain.EventAccept)
	require.NoError(t, err)

	return created
}

// completeJob walks an approved job through execution to completed.
func (s *stack) completeJob(t *testing.T, jobID string) {
	t.Helper()
	ctx := context.Background()

	steps := []statemachine.Event{
		jobdomain.EventReady,
		jobdomain.EventSchedule,
		jobdomain.EventStart,
		jobdomain.EventComplete,
	}
	for _, step := range steps {
		_, err := s.jobs.Transition(ctx, jobID, step)
		require.NoError(t, err, "step %s", step)
	}
}

func TestConvertQuoteToJobAtMostOnce(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	quote := s.acceptedQuote(t)

	job, err := s.coordinator.ConvertQuoteToJob(ctx, quote.Quote.ID.String(), conversion.ConvertToJobRequest{
		JobType:  "backflow_replacement",
		Priority: jobdomain.PriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusApproved, job.Status)
	require.NotNil(t, job.QuoteID)
	assert.Equal(t, quote.Quote.ID, *job.QuoteID)
	require.NotNil(t, job.TotalAmount)
	assert.Equal(t, int64(97425), *job.TotalAmount)

	_, err = s.coordinator.ConvertQuoteToJob(ctx, quote.Quote.ID.String(), conversion.ConvertToJobRequest{})
	assert.ErrorIs(t, err, conversion.ErrAlreadyConverted)
}

func TestConvertRequiresAcceptedQuote(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	draft, err := s.quotes.Create(ctx, quotedomain.CreateQuoteRequest{
		CustomerID: s.node.Generate().String(),
		LineItems: []quotedomain.LineItemRequest{
			{Description: "Inspection", ItemType: quotedomain.ItemTypeService, Quantity: 1, UnitPrice: 25000},
		},
	})
	require.NoError(t, err)

	_, err = s.coordinator.ConvertQuoteToJob(ctx, draft.Quote.ID.String(), conversion.ConvertToJobRequest{})
	assert.ErrorIs(t, err, conversion.ErrQuoteNotAccepted)
}

func TestCreateInvoiceFromJobIdempotentAndCopiesQuoteItems(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	quote := s.acceptedQuote(t)

	job, err := s.coordinator.ConvertQuoteToJob(ctx, quote.Quote.ID.String(), conversion.ConvertToJobRequest{
		JobType: "backflow_replacement",
	})
	require.NoError(t, err)

	// Not yet completed, nothing to bill.
	_, err = s.coordinator.CreateInvoiceFromJob(ctx, job.ID.String())
	assert.ErrorIs(t, err, conversion.ErrJobNotCompleted)

	s.completeJob(t, job.ID.String())

	invoice, err := s.coordinator.CreateInvoiceFromJob(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusDraft, invoice.Invoice.Status)
	require.NotNil(t, invoice.Invoice.JobID)
	assert.Equal(t, job.ID, *invoice.Invoice.JobID)
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, "Replace backflow preventer", invoice.Items[0].Description)
	assert.Equal(t, int64(97425), invoice.Invoice.TotalAmount)

	invoicedJob, err := s.jobs.GetByID(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusInvoiced, invoicedJob.Status)

	// Second call returns the same invoice instead of creating another.
	again, err := s.coordinator.CreateInvoiceFromJob(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoice.Invoice.ID, again.Invoice.ID)

	var count int64
	require.NoError(t, s.db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInvoiceSettlementCascadesToJob(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	quote := s.acceptedQuote(t)

	job, err := s.coordinator.ConvertQuoteToJob(ctx, quote.Quote.ID.String(), conversion.ConvertToJobRequest{
		JobType: "backflow_replacement",
	})
	require.NoError(t, err)
	s.completeJob(t, job.ID.String())

	invoice, err := s.coordinator.CreateInvoiceFromJob(ctx, job.ID.String())
	require.NoError(t, err)

	_, err = s.invoices.Send(ctx, invoice.Invoice.ID.String())
	require.NoError(t, err)
	_, settled, err := s.invoices.RecordPayment(ctx, invoice.Invoice.ID.String(), invoicedomain.RecordPaymentRequest{
		Amount: invoice.Invoice.TotalAmount,
		Method: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, settled.Status)

	paidJob, err := s.jobs.GetByID(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusPaid, paidJob.Status)
}

func TestGenerateQuoteFromDeficienciesDelegates(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	low := int64(20000)
	high := int64(40000)
	deficiency := deficiencydomain.Deficiency{
		ID:                s.node.Generate(),
		InspectionID:      s.node.Generate(),
		CustomerID:        s.node.Generate(),
		Category:          "exit_sign",
		Severity:          deficiencydomain.SeverityMinor,
		Status:            deficiencydomain.StatusOpen,
		EstimatedCostLow:  &low,
		EstimatedCostHigh: &high,
	}
	require.NoError(t, s.db.Create(&deficiency).Error)

	quote, err := s.coordinator.GenerateQuoteFromDeficiencies(ctx, quotedomain.FromDeficienciesRequest{
		DeficiencyIDs: []string{deficiency.ID.String()},
	})
	require.NoError(t, err)
	require.Len(t, quote.Items, 1)
	assert.Equal(t, int64(30000), quote.Items[0].UnitPrice)

	var held deficiencydomain.Deficiency
	require.NoError(t, s.db.First(&held, "id = ?", deficiency.ID).Error)
	assert.Equal(t, deficiencydomain.StatusQuoted, held.Status)
}
