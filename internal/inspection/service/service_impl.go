package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/pyrosafe/fieldops/internal/clock"
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
	Clock clock.Clock
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node

	inspections repository.Repository[inspectiondomain.Inspection]
	checklist   repository.Repository[inspectiondomain.ChecklistResult]
}

func NewService(p Params) inspectiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("inspection.service"),
		clock: p.Clock,
		genID: p.GenID,

		inspections: repository.ProvideStore[inspectiondomain.Inspection](p.DB),
		checklist:   repository.ProvideStore[inspectiondomain.ChecklistResult](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req inspectiondomain.CreateInspectionRequest) (inspectiondomain.Inspection, error) {
	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		return inspectiondomain.Inspection{}, inspectiondomain.ErrInvalidCustomer
	}
	inspectionType := strings.TrimSpace(req.InspectionType)
	if inspectionType == "" {
		return inspectiondomain.Inspection{}, inspectiondomain.ErrInvalidInspectionType
	}

	inspection := inspectiondomain.Inspection{
		ID:             s.genID.Generate(),
		CustomerID:     customerID,
		InspectionType: inspectionType,
		Status:         inspectiondomain.StatusScheduled,
		ScheduledAt:    req.ScheduledAt,
		Notes:          strings.TrimSpace(req.Notes),
	}
	if siteID := strings.TrimSpace(req.SiteID); siteID != "" {
		parsed, err := snowflake.ParseString(siteID)
		if err != nil {
			return inspectiondomain.Inspection{}, inspectiondomain.ErrInvalidCustomer
		}
		inspection.SiteID = &parsed
	}
	if technician := strings.TrimSpace(req.TechnicianID); technician != "" {
		inspection.TechnicianID = &technician
	}

	if err := s.inspections.Create(ctx, &inspection); err != nil {
		return inspectiondomain.Inspection{}, err
	}
	return inspection, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (inspectiondomain.Inspection, error) {
	inspectionID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return inspectiondomain.Inspection{}, inspectiondomain.ErrNotFound
	}

	item, err := s.inspections.FindOne(ctx, &inspectiondomain.Inspection{ID: inspectionID})
	if err != nil {
		return inspectiondomain.Inspection{}, err
	}
	if item == nil {
		return inspectiondomain.Inspection{}, inspectiondomain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, customerID string) ([]inspectiondomain.Inspection, error) {
	filter := &inspectiondomain.Inspection{}
	if trimmed := strings.TrimSpace(customerID); trimmed != "" {
		parsed, err := snowflake.ParseString(trimmed)
		if err != nil {
			return nil, inspectiondomain.ErrInvalidCustomer
		}
		filter.CustomerID = parsed
	}

	items, err := s.inspections.Find(ctx, filter, repository.WithOrder("created_at DESC"))
	if err != nil {
		return nil, err
	}

	inspections := make([]inspectiondomain.Inspection, 0, len(items))
	for _, item := range items {
		inspections = append(inspections, *item)
	}
	return inspections, nil
}

func (s *Service) Start(ctx context.Context, id string) (inspectiondomain.Inspection, error) {
	return s.transition(ctx, id, inspectiondomain.EventStart, nil)
}

func (s *Service) Complete(ctx context.Context, id string, result inspectiondomain.CompletionResult) (inspectiondomain.Inspection, error) {
	return s.transition(ctx, id, inspectiondomain.EventComplete, &result)
}

func (s *Service) Cancel(ctx context.Context, id string) (inspectiondomain.Inspection, error) {
	return s.transition(ctx, id, inspectiondomain.EventCancel, nil)
}

// transition applies a lifecycle event with a compare-and-set on the
// current status. A concurrent writer makes the CAS miss, which surfaces
// as ErrConcurrentModification rather than silently overwriting.
func (s *Service) transition(ctx context.Context, id string, event statemachine.Event, result *inspectiondomain.CompletionResult) (inspectiondomain.Inspection, error) {
	inspection, err := s.GetByID(ctx, id)
	if err != nil {
		return inspectiondomain.Inspection{}, err
	}

	next, err := inspectiondomain.Lifecycle().Apply(statemachine.State(inspection.Status), event)
	if err != nil {
		return inspectiondomain.Inspection{}, err
	}

	now := s.clock.Now()
	updates := map[string]any{
		"status":     string(next),
		"updated_at": now,
	}
	switch event {
	case inspectiondomain.EventStart:
		updates["started_at"] = now
	case inspectiondomain.EventComplete:
		updates["completed_at"] = now
		if result != nil {
			updates["passed"] = result.Passed
			updates["pass_with_deficiencies"] = result.PassWithDeficiencies
		}
	}

	res := s.db.WithContext(ctx).
		Model(&inspectiondomain.Inspection{}).
		Where("id = ? AND status = ?", inspection.ID, inspection.Status).
		Updates(updates)
	if res.Error != nil {
		return inspectiondomain.Inspection{}, res.Error
	}
	if res.RowsAffected == 0 {
		return inspectiondomain.Inspection{}, inspectiondomain.ErrConcurrentModification
	}

	return s.GetByID(ctx, id)
}

func (s *Service) RecordChecklist(ctx context.Context, id string, req inspectiondomain.RecordChecklistRequest) (inspectiondomain.ChecklistResult, error) {
	inspection, err := s.GetByID(ctx, id)
	if err != nil {
		return inspectiondomain.ChecklistResult{}, err
	}
	if inspection.Status != inspectiondomain.StatusInProgress {
		return inspectiondomain.ChecklistResult{}, statemachine.ErrIllegalTransition
	}
	item := strings.TrimSpace(req.Item)
	if item == "" {
		return inspectiondomain.ChecklistResult{}, inspectiondomain.ErrInvalidInspectionType
	}

	result := inspectiondomain.ChecklistResult{
		ID:           s.genID.Generate(),
		InspectionID: inspection.ID,
		Item:         item,
		Passed:       req.Passed,
		Notes:        strings.TrimSpace(req.Notes),
	}
	if err := s.checklist.Create(ctx, &result); err != nil {
		return inspectiondomain.ChecklistResult{}, err
	}
	return result, nil
}

func (s *Service) ListChecklist(ctx context.Context, id string) ([]inspectiondomain.ChecklistResult, error) {
	inspection, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.checklist.Find(ctx, &inspectiondomain.ChecklistResult{InspectionID: inspection.ID},
		repository.WithOrder("created_at ASC"))
	if err != nil {
		return nil, err
	}

	results := make([]inspectiondomain.ChecklistResult, 0, len(items))
	for _, item := range items {
		results = append(results, *item)
	}
	return results, nil
}

// Delete removes an inspection and its owned rows. Completed inspections
// are part of the compliance record and cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	inspection, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if inspection.Status == inspectiondomain.StatusCompleted || inspection.CompletedAt != nil {
		return inspectiondomain.ErrCompletedNotDeletable
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("inspection_id = ?", inspection.ID).
			Delete(&inspectiondomain.ChecklistResult{}).Error; err != nil {
			return err
		}
		if err := tx.Where("inspection_id = ?", inspection.ID).
			Delete(&deficiencydomain.Deficiency{}).Error; err != nil {
			return err
		}
		return tx.Delete(&inspectiondomain.Inspection{}, "id = ?", inspection.ID).Error
	})
}
