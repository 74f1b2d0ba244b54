package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pyrosafe/fieldops/internal/statemachine"
)

var (
	ErrNotFound               = errors.New("not_found")
	ErrInvalidCustomer        = errors.New("invalid_customer")
	ErrInvalidJobType         = errors.New("invalid_job_type")
	ErrInvalidPriority        = errors.New("invalid_priority")
	ErrAlreadyAssigned        = errors.New("already_assigned")
	ErrNotAssigned            = errors.New("not_assigned")
	ErrRestrictedEvent        = errors.New("restricted_event")
	ErrConcurrentModification = errors.New("concurrent_modification")
)

type CreateJobRequest struct {
	CustomerID    string     `json:"customer_id"`
	SiteID        string     `json:"site_id"`
	JobType       string     `json:"job_type"`
	Priority      Priority   `json:"priority"`
	Description   string     `json:"description"`
	ScheduledDate *time.Time `json:"scheduled_date"`
}

// ConvertFromQuoteRequest carries the context copied from an accepted
// quote. The unique index on jobs.quote_id is the at-most-once guard.
type ConvertFromQuoteRequest struct {
	QuoteID     snowflake.ID
	CustomerID  snowflake.ID
	SiteID      *snowflake.ID
	JobType     string
	Priority    Priority
	Description string
	TotalAmount int64
}

type AssignRequest struct {
	TechnicianID string `json:"technician_id"`
	Role         string `json:"role"`
}

// Service drives job execution. Transition covers every operator-visible
// lifecycle event; the invoice and pay events are reserved for the
// conversion coordinator and rejected with ErrRestrictedEvent on the
// public path. Every state change appends to the job event log.
type Service interface {
	Create(ctx context.Context, req CreateJobRequest) (Job, error)
	ConvertFromQuote(ctx context.Context, req ConvertFromQuoteRequest) (Job, error)
	GetByID(ctx context.Context, id string) (Job, error)
	List(ctx context.Context, customerID string, status JobStatus) ([]Job, error)
	Assign(ctx context.Context, id string, req AssignRequest) (JobAssignment, error)
	Unassign(ctx context.Context, id string, req AssignRequest) error
	Assignments(ctx context.Context, id string) ([]JobAssignment, error)
	AddNote(ctx context.Context, id, body string) (JobNote, error)
	Notes(ctx context.Context, id string) ([]JobNote, error)
	Events(ctx context.Context, id string) ([]JobEvent, error)
	Transition(ctx context.Context, id string, event statemachine.Event) (Job, error)

	// Coordinator-only moves driven by invoice state, never by an
	// operator request.
	MarkInvoiced(ctx context.Context, id string) (Job, error)
	MarkPaid(ctx context.Context, id string) (Job, error)
}
