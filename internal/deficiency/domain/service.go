package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound               = errors.New("not_found")
	ErrInvalidSeverity        = errors.New("invalid_severity")
	ErrInvalidCategory        = errors.New("invalid_category")
	ErrInvalidCostRange       = errors.New("invalid_cost_range")
	ErrAlreadyQuoted          = errors.New("already_quoted")
	ErrConcurrentModification = errors.New("concurrent_modification")
)

type RecordDeficiencyRequest struct {
	Category          string   `json:"category"`
	Severity          Severity `json:"severity"`
	Description       string   `json:"description"`
	EstimatedCostLow  *int64   `json:"estimated_cost_low"`
	EstimatedCostHigh *int64   `json:"estimated_cost_high"`
}

// Ledger tracks inspection findings and their resolution state. Select
// and MarkQuoted implement the optimistic multi-row guard that prevents
// the same finding from being billed on two quotes.
type Ledger interface {
	Record(ctx context.Context, inspectionID string, req RecordDeficiencyRequest) (Deficiency, error)
	GetByID(ctx context.Context, id string) (Deficiency, error)
	List(ctx context.Context, inspectionID string) ([]Deficiency, error)
	Select(ctx context.Context, ids []snowflake.ID) ([]Deficiency, error)
	MarkQuoted(ctx context.Context, tx *gorm.DB, ids []snowflake.ID, quoteID snowflake.ID) error
	Release(ctx context.Context, tx *gorm.DB, quoteID snowflake.ID) error
	Transition(ctx context.Context, id string, event string) (Deficiency, error)
}
