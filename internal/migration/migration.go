// Package migration applies the schema at startup. AutoMigrate keeps the
// schema portable across the three supported dialects; the unique indexes
// it creates on jobs.quote_id and invoices.job_id back the conversion
// at-most-once guarantees.
package migration

import (
	customerdomain "github.com/pyrosafe/fieldops/internal/customer/domain"
	deficiencydomain "github.com/pyrosafe/fieldops/internal/deficiency/domain"
	inspectiondomain "github.com/pyrosafe/fieldops/internal/inspection/domain"
	invoicedomain "github.com/pyrosafe/fieldops/internal/invoice/domain"
	jobdomain "github.com/pyrosafe/fieldops/internal/job/domain"
	quotedomain "github.com/pyrosafe/fieldops/internal/quote/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func Run(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&customerdomain.Customer{},
		&customerdomain.Site{},
		&inspectiondomain.Inspection{},
		&inspectiondomain.ChecklistResult{},
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
	)
}

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)
