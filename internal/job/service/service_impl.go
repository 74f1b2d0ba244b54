package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/pyrosafe/fieldops/internal/actorcontext"
	"github.com/pyrosafe/fieldops/internal/clock"
	"github.com/pyrosafe/fieldops/internal/config"
	"github.com/pyrosafe/fieldops/internal/events"
	jobdomain "github.com/pyrosafe/fieldops/internal/job/domain"
	"github.com/pyrosafe/fieldops/internal/statemachine"
	"github.com/pyrosafe/fieldops/pkg/db"
	"github.com/pyrosafe/fieldops/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	cfg   config.Config
	bus   *events.Bus

	jobs  repository.Repository[jobdomain.Job]
	notes repository.Repository[jobdomain.JobNote]
}

func NewService(p Params) jobdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("job.service"),
		clock: p.Clock,
		genID: p.GenID,
		cfg:   p.Cfg,
		bus:   p.Bus,

		jobs:  repository.ProvideStore[jobdomain.Job](p.DB),
		notes: repository.ProvideStore[jobdomain.JobNote](p.DB),
	}
}

// Create opens a job in lead, or directly in scheduled when a scheduled
// date is supplied with the creation request.
func (s *Service) Create(ctx context.Context, req jobdomain.CreateJobRequest) (jobdomain.Job, error) {
	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		return jobdomain.Job{}, jobdomain.ErrInvalidCustomer
	}

	jobType := strings.TrimSpace(req.JobType)
	if jobType == "" {
		return jobdomain.Job{}, jobdomain.ErrInvalidJobType
	}

	priority := req.Priority
	if priority == "" {
		priority = jobdomain.PriorityMedium
	}
	if !jobdomain.ValidPriority(priority) {
		return jobdomain.Job{}, jobdomain.ErrInvalidPriority
	}

	status := jobdomain.StatusLead
	if req.ScheduledDate != nil {
		status = jobdomain.StatusScheduled
	}

	job := jobdomain.Job{
		ID:            s.genID.Generate(),
		CustomerID:    customerID,
		JobType:       jobType,
		Priority:      priority,
		Description:   strings.TrimSpace(req.Description),
		Status:        status,
		Currency:      s.cfg.DefaultCurrency,
		ScheduledDate: req.ScheduledDate,
	}
	if siteID := strings.TrimSpace(req.SiteID); siteID != "" {
		parsed, err := snowflake.ParseString(siteID)
		if err != nil {
			return jobdomain.Job{}, jobdomain.ErrInvalidCustomer
		}
		job.SiteID = &parsed
	}

	if err := s.jobs.Create(ctx, &job); err != nil {
		return jobdomain.Job{}, err
	}
	return job, nil
}

// ConvertFromQuote opens a job carrying quote provenance at approved:
// the customer already accepted the priced work, so the lead and quoted
// stages are behind it. A second conversion attempt for the same quote
// trips the unique index.
func (s *Service) ConvertFromQuote(ctx context.Context, req jobdomain.ConvertFromQuoteRequest) (jobdomain.Job, error) {
	jobType := strings.TrimSpace(req.JobType)
	if jobType == "" {
		jobType = "converted_work"
	}
	priority := req.Priority
	if priority == "" {
		priority = jobdomain.PriorityMedium
	}
	if !jobdomain.ValidPriority(priority) {
		return jobdomain.Job{}, jobdomain.ErrInvalidPriority
	}

	quoteID := req.QuoteID
	total := req.TotalAmount
	job := jobdomain.Job{
		ID:          s.genID.Generate(),
		CustomerID:  req.CustomerID,
		SiteID:      req.SiteID,
		QuoteID:     &quoteID,
		JobType:     jobType,
		Priority:    priority,
		Description: strings.TrimSpace(req.Description),
		Status:      jobdomain.StatusApproved,
		TotalAmount: &total,
		Currency:    s.cfg.DefaultCurrency,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&job).Error; err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, job.ID, jobdomain.EventKindStatusChanged,
			"", string(jobdomain.StatusApproved), datatypes.JSONMap{
				"event":    "converted_from_quote",
				"quote_id": quoteID.String(),
			})
	})
	if err != nil {
		return jobdomain.Job{}, err
	}
	return job, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (jobdomain.Job, error) {
	jobID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return jobdomain.Job{}, jobdomain.ErrNotFound
	}
	return s.loadJob(ctx, jobID)
}

func (s *Service) List(ctx context.Context, customerID string, status jobdomain.JobStatus) ([]jobdomain.Job, error) {
	filter := &jobdomain.Job{Status: status}
	if trimmed := strings.TrimSpace(customerID); trimmed != "" {
		parsed, err := snowflake.ParseString(trimmed)
		if err != nil {
			return nil, jobdomain.ErrInvalidCustomer
		}
		filter.CustomerID = parsed
	}

	items, err := s.jobs.Find(ctx, filter, repository.WithOrder("created_at DESC"))
	if err != nil {
		return nil, err
	}

	jobs := make([]jobdomain.Job, 0, len(items))
	for _, item := range items {
		jobs = append(jobs, *item)
	}
	return jobs, nil
}

func (s *Service) Assign(ctx context.Context, id string, req jobdomain.AssignRequest) (jobdomain.JobAssignment, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return jobdomain.JobAssignment{}, err
	}

	technicianID, err := snowflake.ParseString(strings.TrimSpace(req.TechnicianID))
	if err != nil {
		return jobdomain.JobAssignment{}, jobdomain.ErrNotAssigned
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = "technician"
	}

	assignment := jobdomain.JobAssignment{
		ID:           s.genID.Generate(),
		JobID:        job.ID,
		TechnicianID: technicianID,
		Role:         role,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&assignment).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return jobdomain.ErrAlreadyAssigned
			}
			return err
		}
		return s.appendEvent(ctx, tx, job.ID, jobdomain.EventKindAssigned, "", "", datatypes.JSONMap{
			"technician_id": technicianID.String(),
			"role":          role,
		})
	})
	if err != nil {
		return jobdomain.JobAssignment{}, err
	}
	return assignment, nil
}

func (s *Service) Unassign(ctx context.Context, id string, req jobdomain.AssignRequest) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	technicianID, err := snowflake.ParseString(strings.TrimSpace(req.TechnicianID))
	if err != nil {
		return jobdomain.ErrNotAssigned
	}
	role := strings.TrimSpace(req.Role)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("job_id = ? AND technician_id = ? AND role = ?", job.ID, technicianID, role).
			Delete(&jobdomain.JobAssignment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return jobdomain.ErrNotAssigned
		}
		return s.appendEvent(ctx, tx, job.ID, jobdomain.EventKindUnassigned, "", "", datatypes.JSONMap{
			"technician_id": technicianID.String(),
			"role":          role,
		})
	})
}

func (s *Service) Assignments(ctx context.Context, id string) ([]jobdomain.JobAssignment, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var assignments []jobdomain.JobAssignment
	err = s.db.WithContext(ctx).
		Where("job_id = ?", job.ID).
		Order("created_at ASC").
		Find(&assignments).Error
	return assignments, err
}

func (s *Service) AddNote(ctx context.Context, id, body string) (jobdomain.JobNote, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return jobdomain.JobNote{}, err
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return jobdomain.JobNote{}, jobdomain.ErrNotFound
	}

	note := jobdomain.JobNote{
		ID:       s.genID.Generate(),
		JobID:    job.ID,
		AuthorID: actorcontext.ActorOrSystem(ctx),
		Body:     trimmed,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&note).Error; err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, job.ID, jobdomain.EventKindNoteAdded, "", "", datatypes.JSONMap{
			"note_id": note.ID.String(),
		})
	})
	if err != nil {
		return jobdomain.JobNote{}, err
	}
	return note, nil
}

func (s *Service) Notes(ctx context.Context, id string) ([]jobdomain.JobNote, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.notes.Find(ctx, &jobdomain.JobNote{JobID: job.ID}, repository.WithOrder("created_at ASC"))
	if err != nil {
		return nil, err
	}

	notes := make([]jobdomain.JobNote, 0, len(items))
	for _, item := range items {
		notes = append(notes, *item)
	}
	return notes, nil
}

func (s *Service) Events(ctx context.Context, id string) ([]jobdomain.JobEvent, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var log []jobdomain.JobEvent
	err = s.db.WithContext(ctx).
		Where("job_id = ?", job.ID).
		Order("created_at ASC, id ASC").
		Find(&log).Error
	return log, err
}

// Transition applies an operator-visible lifecycle event. Invoice and pay
// are reserved for the conversion coordinator; hold records the state it
// interrupted and resume restores it.
func (s *Service) Transition(ctx context.Context, id string, event statemachine.Event) (jobdomain.Job, error) {
	if event == jobdomain.EventInvoice || event == jobdomain.EventPay {
		return jobdomain.Job{}, jobdomain.ErrRestrictedEvent
	}
	return s.transition(ctx, id, event)
}

func (s *Service) MarkInvoiced(ctx context.Context, id string) (jobdomain.Job, error) {
	return s.transition(ctx, id, jobdomain.EventInvoice)
}

func (s *Service) MarkPaid(ctx context.Context, id string) (jobdomain.Job, error) {
	return s.transition(ctx, id, jobdomain.EventPay)
}

func (s *Service) transition(ctx context.Context, id string, event statemachine.Event) (jobdomain.Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return jobdomain.Job{}, err
	}

	next, err := s.resolveNext(job, event)
	if err != nil {
		return jobdomain.Job{}, err
	}

	now := s.clock.Now()
	updates := map[string]any{
		"status":     string(next),
		"updated_at": now,
	}

	switch {
	case event == jobdomain.EventHold:
		updates["previous_status"] = string(job.Status)
	case event == jobdomain.EventResume:
		updates["previous_status"] = nil
	}
	if next == jobdomain.StatusInProgress && job.ActualStartTime == nil {
		updates["actual_start_time"] = now
	}
	if next == jobdomain.StatusCompleted {
		updates["completed_at"] = now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&jobdomain.Job{}).
			Where("id = ? AND status = ?", job.ID, job.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return jobdomain.ErrConcurrentModification
		}
		return s.appendEvent(ctx, tx, job.ID, jobdomain.EventKindStatusChanged,
			string(job.Status), string(next), datatypes.JSONMap{
				"event": string(event),
			})
	})
	if err != nil {
		return jobdomain.Job{}, err
	}

	if next == jobdomain.StatusCompleted {
		s.bus.Publish(ctx, events.TopicJobCompleted, events.JobCompleted{
			JobID:      job.ID,
			CustomerID: job.CustomerID,
		})
	}

	return s.loadJob(ctx, job.ID)
}

// resolveNext answers what state the event leads to. Resume cannot live
// in the transition table because its target is whatever state the hold
// interrupted, so it is resolved from previous_status here.
func (s *Service) resolveNext(job jobdomain.Job, event statemachine.Event) (jobdomain.JobStatus, error) {
	if event == jobdomain.EventResume {
		if job.Status != jobdomain.StatusOnHold || job.PreviousStatus == nil {
			return "", fmt.Errorf("%w: job cannot %q from %q",
				statemachine.ErrIllegalTransition, event, job.Status)
		}
		return *job.PreviousStatus, nil
	}

	next, err := jobdomain.Lifecycle().Apply(statemachine.State(job.Status), event)
	if err != nil {
		return "", err
	}
	return jobdomain.JobStatus(next), nil
}

func (s *Service) appendEvent(ctx context.Context, tx *gorm.DB, jobID snowflake.ID, kind jobdomain.EventKind, from, to string, metadata datatypes.JSONMap) error {
	return tx.Create(&jobdomain.JobEvent{
		ID:        s.genID.Generate(),
		JobID:     jobID,
		Kind:      kind,
		FromState: from,
		ToState:   to,
		ActorID:   actorcontext.ActorOrSystem(ctx),
		Metadata:  metadata,
		CreatedAt: s.clock.Now(),
	}).Error
}

func (s *Service) loadJob(ctx context.Context, id snowflake.ID) (jobdomain.Job, error) {
	job, err := s.jobs.FindOne(ctx, &jobdomain.Job{ID: id})
	if err != nil {
		return jobdomain.Job{}, err
	}
	if job == nil {
		return jobdomain.Job{}, jobdomain.ErrNotFound
	}
	return *job, nil
}
