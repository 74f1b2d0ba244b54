package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound               = errors.New("not_found")
	ErrInvalidInspectionType  = errors.New("invalid_inspection_type")
	ErrInvalidCustomer        = errors.New("invalid_customer")
	ErrConcurrentModification = errors.New("concurrent_modification")
	ErrCompletedNotDeletable  = errors.New("completed_not_deletable")
)

type CreateInspectionRequest struct {
	CustomerID     string     `json:"customer_id"`
	SiteID         string     `json:"site_id"`
	InspectionType string     `json:"inspection_type"`
	TechnicianID   string     `json:"technician_id"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
	Notes          string     `json:"notes"`
}

// CompletionResult carries the pass flags recorded when the technician
// finishes an inspection.
type CompletionResult struct {
	Passed               *bool `json:"passed"`
	PassWithDeficiencies *bool `json:"pass_with_deficiencies"`
}

type RecordChecklistRequest struct {
	Item   string `json:"item"`
	Passed bool   `json:"passed"`
	Notes  string `json:"notes"`
}

type Service interface {
	Create(ctx context.Context, req CreateInspectionRequest) (Inspection, error)
	GetByID(ctx context.Context, id string) (Inspection, error)
	List(ctx context.Context, customerID string) ([]Inspection, error)
	Start(ctx context.Context, id string) (Inspection, error)
	Complete(ctx context.Context, id string, result CompletionResult) (Inspection, error)
	Cancel(ctx context.Context, id string) (Inspection, error)
	RecordChecklist(ctx context.Context, id string, req RecordChecklistRequest) (ChecklistResult, error)
	ListChecklist(ctx context.Context, id string) ([]ChecklistResult, error)
	Delete(ctx context.Context, id string) error
}
