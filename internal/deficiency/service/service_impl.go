package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	deficiencydomain "github.com/pyrosafe/fieldops/internal/deficiency/domain"
	inspectiondomain "github.com/pyrosafe/fieldops/internal/inspection/domain"
	"github.com/pyrosafe/fieldops/internal/statemachine"
	"github.com/pyrosafe/fieldops/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Ledger struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node

	deficiencies repository.Repository[deficiencydomain.Deficiency]
}

func NewLedger(p Params) deficiencydomain.Ledger {
	return &Ledger{
		db:    p.DB,
		log:   p.Log.Named("deficiency.ledger"),
		genID: p.GenID,

		deficiencies: repository.ProvideStore[deficiencydomain.Deficiency](p.DB),
	}
}

// Record creates a finding against an inspection. Status is always forced
// to open regardless of what the caller supplies.
func (l *Ledger) Record(ctx context.Context, inspectionID string, req deficiencydomain.RecordDeficiencyRequest) (deficiencydomain.Deficiency, error) {
	parsedID, err := snowflake.ParseString(strings.TrimSpace(inspectionID))
	if err != nil {
		return deficiencydomain.Deficiency{}, inspectiondomain.ErrNotFound
	}

	var inspection inspectiondomain.Inspection
	if err := l.db.WithContext(ctx).First(&inspection, "id = ?", parsedID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return deficiencydomain.Deficiency{}, inspectiondomain.ErrNotFound
		}
		return deficiencydomain.Deficiency{}, err
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		return deficiencydomain.Deficiency{}, deficiencydomain.ErrInvalidCategory
	}
	if !deficiencydomain.ValidSeverity(req.Severity) {
		return deficiencydomain.Deficiency{}, deficiencydomain.ErrInvalidSeverity
	}
	if req.EstimatedCostLow != nil && *req.EstimatedCostLow < 0 {
		return deficiencydomain.Deficiency{}, deficiencydomain.ErrInvalidCostRange
	}
	if req.EstimatedCostHigh != nil {
		if *req.EstimatedCostHigh < 0 {
			return deficiencydomain.Deficiency{}, deficiencydomain.ErrInvalidCostRange
		}
		if req.EstimatedCostLow != nil && *req.EstimatedCostHigh < *req.EstimatedCostLow {
			return deficiencydomain.Deficiency{}, deficiencydomain.ErrInvalidCostRange
		}
	}

	deficiency := deficiencydomain.Deficiency{
		ID:                l.genID.Generate(),
		InspectionID:      inspection.ID,
		CustomerID:        inspection.CustomerID,
		Category:          category,
		Severity:          req.Severity,
		Status:            deficiencydomain.StatusOpen,
		Description:       strings.TrimSpace(req.Description),
		EstimatedCostLow:  req.EstimatedCostLow,
		EstimatedCostHigh: req.EstimatedCostHigh,
	}
	if err := l.deficiencies.Create(ctx, &deficiency); err != nil {
		return deficiencydomain.Deficiency{}, err
	}
	return deficiency, nil
}

func (l *Ledger) GetByID(ctx context.Context, id string) (deficiencydomain.Deficiency, error) {
	deficiencyID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return deficiencydomain.Deficiency{}, deficiencydomain.ErrNotFound
	}

	item, err := l.deficiencies.FindOne(ctx, &deficiencydomain.Deficiency{ID: deficiencyID})
	if err != nil {
		return deficiencydomain.Deficiency{}, err
	}
	if item == nil {
		return deficiencydomain.Deficiency{}, deficiencydomain.ErrNotFound
	}
	return *item, nil
}

func (l *Ledger) List(ctx context.Context, inspectionID string) ([]deficiencydomain.Deficiency, error) {
	filter := &deficiencydomain.Deficiency{}
	if trimmed := strings.TrimSpace(inspectionID); trimmed != "" {
		parsed, err := snowflake.ParseString(trimmed)
		if err != nil {
			return nil, inspectiondomain.ErrNotFound
		}
		filter.InspectionID = parsed
	}

	items, err := l.deficiencies.Find(ctx, filter, repository.WithOrder("created_at ASC"))
	if err != nil {
		return nil, err
	}

	deficiencies := make([]deficiencydomain.Deficiency, 0, len(items))
	for _, item := range items {
		deficiencies = append(deficiencies, *item)
	}
	return deficiencies, nil
}

// Select loads the requested deficiencies and fails with ErrAlreadyQuoted
// unless every one of them is still open.
func (l *Ledger) Select(ctx context.Context, ids []snowflake.ID) ([]deficiencydomain.Deficiency, error) {
	if len(ids) == 0 {
		return nil, deficiencydomain.ErrNotFound
	}

	var items []deficiencydomain.Deficiency
	if err := l.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) != len(ids) {
		return nil, deficiencydomain.ErrNotFound
	}
	for _, item := range items {
		if item.Status != deficiencydomain.StatusOpen {
			return nil, deficiencydomain.ErrAlreadyQuoted
		}
	}
	return items, nil
}

// MarkQuoted transitions all selected ids open->quoted in one statement.
// The status predicate doubles as the optimistic-concurrency guard: if a
// concurrent caller already quoted any of the ids the row count comes up
// short and the whole batch fails, rolling back the caller's transaction.
func (l *Ledger) MarkQuoted(ctx context.Context, tx *gorm.DB, ids []snowflake.ID, quoteID snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	if tx == nil {
		tx = l.db
	}

	res := tx.WithContext(ctx).
		Model(&deficiencydomain.Deficiency{}).
		Where("id IN ? AND status = ?", ids, deficiencydomain.StatusOpen).
		Updates(map[string]any{
			"status":   deficiencydomain.StatusQuoted,
			"quote_id": quoteID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != int64(len(ids)) {
		return deficiencydomain.ErrAlreadyQuoted
	}
	return nil
}

// Release reverts quoted->open for every deficiency held by the given
// quote. Ids already released are simply not matched, which makes the
// operation idempotent.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, quoteID snowflake.ID) error {
	if tx == nil {
		tx = l.db
	}

	return tx.WithContext(ctx).
		Model(&deficiencydomain.Deficiency{}).
		Where("quote_id = ? AND status = ?", quoteID, deficiencydomain.StatusQuoted).
		Updates(map[string]any{
			"status":   deficiencydomain.StatusOpen,
			"quote_id": nil,
		}).Error
}

// Transition applies a resolution event (approve, start, complete) with a
// compare-and-set on the current status. Quote/release moves are owned by
// the quote engine and rejected here.
func (l *Ledger) Transition(ctx context.Context, id string, event string) (deficiencydomain.Deficiency, error) {
	deficiency, err := l.GetByID(ctx, id)
	if err != nil {
		return deficiencydomain.Deficiency{}, err
	}

	ev := statemachine.Event(event)
	if ev == deficiencydomain.EventQuote || ev == deficiencydomain.EventRelease {
		return deficiencydomain.Deficiency{}, statemachine.ErrIllegalTransition
	}

	next, err := deficiencydomain.Lifecycle().Apply(statemachine.State(deficiency.Status), ev)
	if err != nil {
		return deficiencydomain.Deficiency{}, err
	}

	res := l.db.WithContext(ctx).
		Model(&deficiencydomain.Deficiency{}).
		Where("id = ? AND status = ?", deficiency.ID, deficiency.Status).
		Update("status", string(next))
	if res.Error != nil {
		return deficiencydomain.Deficiency{}, res.Error
	}
	if res.RowsAffected == 0 {
		return deficiencydomain.Deficiency{}, deficiencydomain.ErrConcurrentModification
	}

	return l.GetByID(ctx, id)
}
