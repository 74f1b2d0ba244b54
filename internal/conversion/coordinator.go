// Package conversion coordinates the quote -> job -> invoice provenance
// chain. Each source document spawns at most one successor; the unique
// indexes on jobs.quote_id and invoices.job_id back the application-level
// pre-checks so two racing operators cannot both convert.
package conversion

import (
	"context"
	"errors"

	"github.com/pyrosafe/fieldops/internal/events"
	invoicedomain "github.com/pyrosafe/fieldops/internal/invoice/domain"
	jobdomain "github.com/pyrosafe/fieldops/internal/job/domain"
	"github.com/pyrosafe/fieldops/internal/money"
	quotedomain "github.com/pyrosafe/fieldops/internal/quote/domain"
	"github.com/pyrosafe/fieldops/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrAlreadyConverted = errors.New("already_converted")
	ErrQuoteNotAccepted = errors.New("quote_not_accepted")
	ErrJobNotCompleted  = errors.New("job_not_completed")
)

type ConvertToJobRequest struct {
	JobType  string             `json:"job_type"`
	Priority jobdomain.Priority `json:"priority"`
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Quotes  quotedomain.Engine
	Jobs    jobdomain.Service
	Ledger  invoicedomain.Ledger
	Bus     *events.Bus
}

type Coordinator struct {
	db     *gorm.DB
	log    *zap.Logger
	quotes quotedomain.Engine
	jobs   jobdomain.Service
	ledger invoicedomain.Ledger
	bus    *events.Bus
}

func NewCoordinator(p Params) *Coordinator {
	c := &Coordinator{
		db:     p.DB,
		log:    p.Log.Named("conversion.coordinator"),
		quotes: p.Quotes,
		jobs:   p.Jobs,
		ledger: p.Ledger,
		bus:    p.Bus,
	}

	c.bus.Subscribe(events.TopicInvoicePaid, c.onInvoicePaid)
	c.bus.Subscribe(events.TopicJobCompleted, c.onJobCompleted)

	return c
}

// GenerateQuoteFromDeficiencies is the deficiency-selection entry point.
// Pricing and the atomic mark-quoted handoff live in the quote engine.
func (c *Coordinator) GenerateQuoteFromDeficiencies(ctx context.Context, req quotedomain.FromDeficienciesRequest) (quotedomain.QuoteWithItems, error) {
	return c.quotes.FromDeficiencies(ctx, req)
}

// ConvertQuoteToJob spawns the job for an accepted quote, copying the
// customer, site and total. At most one job per quote.
func (c *Coordinator) ConvertQuoteToJob(ctx context.Context, quoteID string, req ConvertToJobRequest) (jobdomain.Job, error) {
	quote, err := c.quotes.GetByID(ctx, quoteID)
	if err != nil {
		return jobdomain.Job{}, err
	}
	if quote.Quote.Status != quotedomain.StatusAccepted {
		return jobdomain.Job{}, ErrQuoteNotAccepted
	}

	var existing jobdomain.Job
	err = c.db.WithContext(ctx).First(&existing, "quote_id = ?", quote.Quote.ID).Error
	if err == nil {
		return jobdomain.Job{}, ErrAlreadyConverted
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return jobdomain.Job{}, err
	}

	job, err := c.jobs.ConvertFromQuote(ctx, jobdomain.ConvertFromQuoteRequest{
		QuoteID:     quote.Quote.ID,
		CustomerID:  quote.Quote.CustomerID,
		SiteID:      quote.Quote.SiteID,
		JobType:     req.JobType,
		Priority:    req.Priority,
		TotalAmount: quote.Quote.TotalAmount,
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return jobdomain.Job{}, ErrAlreadyConverted
		}
		return jobdomain.Job{}, err
	}

	c.log.Info("quote converted to job",
		zap.String("quote_id", quote.Quote.ID.String()),
		zap.String("job_id", job.ID.String()),
	)
	return job, nil
}

// CreateInvoiceFromJob bills a completed job for its full value. The
// operation is idempotent keyed by job id: a repeat call returns the
// invoice already created. Line items are copied from the source quote
// when the job has one; otherwise the job total becomes a single line.
func (c *Coordinator) CreateInvoiceFromJob(ctx context.Context, jobID string) (invoicedomain.InvoiceWithItems, error) {
	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return invoicedomain.InvoiceWithItems{}, err
	}

	if existing, err := c.ledger.GetByJobID(ctx, job.ID.String()); err == nil {
		return c.ledger.GetByID(ctx, existing.ID.String())
	} else if !errors.Is(err, invoicedomain.ErrNotFound) {
		return invoicedomain.InvoiceWithItems{}, err
	}

	if job.Status != jobdomain.StatusCompleted {
		return invoicedomain.InvoiceWithItems{}, ErrJobNotCompleted
	}

	req := invoicedomain.CreateInvoiceRequest{
		CustomerID: job.CustomerID.String(),
		JobID:      job.ID.String(),
	}

	if job.QuoteID != nil {
		quote, err := c.quotes.GetByID(ctx, job.QuoteID.String())
		if err != nil {
			return invoicedomain.InvoiceWithItems{}, err
		}
		req.QuoteID = quote.Quote.ID.String()
		req.TaxRate = money.Bps(quote.Quote.TaxRateBps)
		for _, item := range quote.Items {
			req.LineItems = append(req.LineItems, invoicedomain.LineItemRequest{
				Description: item.Description,
				ItemType:    string(item.ItemType),
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
			})
		}
	} else {
		total := int64(0)
		if job.TotalAmount != nil {
			total = *job.TotalAmount
		}
		if total <= 0 {
			return invoicedomain.InvoiceWithItems{}, money.ErrInvalidAmount
		}
		req.LineItems = []invoicedomain.LineItemRequest{{
			Description: "Field service work: " + job.JobType,
			ItemType:    "service",
			Quantity:    1,
			UnitPrice:   total,
		}}
	}

	invoice, err := c.ledger.Create(ctx, req)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost a race with another operator; theirs wins.
			if existing, lookupErr := c.ledger.GetByJobID(ctx, job.ID.String()); lookupErr == nil {
				return c.ledger.GetByID(ctx, existing.ID.String())
			}
		}
		return invoicedomain.InvoiceWithItems{}, err
	}

	if _, err := c.jobs.MarkInvoiced(ctx, job.ID.String()); err != nil {
		// The invoice exists either way; surface the job-side failure.
		return invoicedomain.InvoiceWithItems{}, err
	}

	c.log.Info("job invoiced",
		zap.String("job_id", job.ID.String()),
		zap.String("invoice_id", invoice.Invoice.ID.String()),
	)
	return invoice, nil
}

// onInvoicePaid cascades full settlement back onto the source job. This
// is the only path that emits the job pay event.
func (c *Coordinator) onInvoicePaid(ctx context.Context, payload any) {
	fact, ok := payload.(events.InvoicePaid)
	if !ok || fact.JobID == nil {
		return
	}

	if _, err := c.jobs.MarkPaid(ctx, fact.JobID.String()); err != nil {
		c.log.Warn("failed to mark job paid after invoice settlement",
			zap.String("job_id", fact.JobID.String()),
			zap.String("invoice_id", fact.InvoiceID.String()),
			zap.Error(err),
		)
	}
}

// onJobCompleted is a notification point only. Invoice creation stays an
// explicit operator action.
func (c *Coordinator) onJobCompleted(_ context.Context, payload any) {
	fact, ok := payload.(events.JobCompleted)
	if !ok {
		return
	}
	c.log.Info("job completed, ready to invoice",
		zap.String("job_id", fact.JobID.String()),
	)
}

var Module = fx.Module("conversion.coordinator",
	fx.Provide(NewCoordinator),
)
