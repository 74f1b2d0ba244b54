// Package domain contains persistence models and the execution lifecycle
// for service jobs.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// JobStatus represents job lifecycle states.
type JobStatus string

const (
	StatusLead                JobStatus = "lead"
	StatusQuoted              JobStatus = "quoted"
	StatusApproved            JobStatus = "approved"
	StatusPending             JobStatus = "pending"
	StatusScheduled           JobStatus = "scheduled"
	StatusInProgress          JobStatus = "in_progress"
	StatusAwaitingInspection  JobStatus = "awaiting_inspection"
	StatusCorrectionsRequired JobStatus = "corrections_required"
	StatusPassed              JobStatus = "passed"
	StatusOnHold              JobStatus = "on_hold"
	StatusCompleted           JobStatus = "completed"
	StatusInvoiced            JobStatus = "invoiced"
	StatusPaid                JobStatus = "paid"
	StatusClosed              JobStatus = "closed"
	StatusCancelled           JobStatus = "cancelled"
)

// Priority classifies scheduling urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Job is a unit of field work. QuoteID carries provenance when the job
// was converted from an accepted quote; the unique index is what makes
// conversion at-most-once regardless of application-level checks.
// PreviousStatus records the state a hold interrupted so resume can
// restore it.
type Job struct {
	ID         snowflake.ID  `json:"id" gorm:"primaryKey"`
	CustomerID snowflake.ID  `json:"customer_id" gorm:"not null;index"`
	SiteID     *snowflake.ID `json:"site_id" gorm:"index"`
	QuoteID    *snowflake.ID `json:"quote_id" gorm:"uniqueIndex:ux_jobs_quote_id"`

	JobType     string    `json:"job_type" gorm:"type:text;not null"`
	Priority    Priority  `json:"priority" gorm:"type:text;not null;default:'medium'"`
	Description string    `json:"description" gorm:"type:text"`
	Status      JobStatus `json:"status" gorm:"type:text;not null;default:'lead'"`

	PreviousStatus *JobStatus `json:"previous_status" gorm:"type:text"`

	// Estimated value in minor units, copied from the source quote when
	// the job was converted. Absent until priced.
	TotalAmount *int64 `json:"total_amount"`
	Currency    string `json:"currency" gorm:"type:text;not null"`

	ScheduledDate   *time.Time `json:"scheduled_date"`
	ActualStartTime *time.Time `json:"actual_start_time"`
	CompletedAt     *time.Time `json:"completed_at"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Job) TableName() string { return "jobs" }

// JobAssignment links a technician to a job under a role. The composite
// unique index backs the AlreadyAssigned guard.
type JobAssignment struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	JobID        snowflake.ID `json:"job_id" gorm:"not null;uniqueIndex:ux_job_assignments"`
	TechnicianID snowflake.ID `json:"technician_id" gorm:"not null;uniqueIndex:ux_job_assignments"`
	Role         string       `json:"role" gorm:"type:text;not null;uniqueIndex:ux_job_assignments"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
}

func (JobAssignment) TableName() string { return "job_assignments" }

// EventKind tags entries in the job event log.
type EventKind string

const (
	EventKindStatusChanged      EventKind = "status_changed"
	EventKindAssigned           EventKind = "assigned"
	EventKindUnassigned         EventKind = "unassigned"
	EventKindNoteAdded          EventKind = "note_added"
	EventKindChecklistCompleted EventKind = "checklist_completed"
)

// JobEvent is one append-only audit record. Rows are never updated or
// deleted.
type JobEvent struct {
	ID        snowflake.ID      `json:"id" gorm:"primaryKey"`
	JobID     snowflake.ID      `json:"job_id" gorm:"not null;index"`
	Kind      EventKind         `json:"kind" gorm:"type:text;not null"`
	FromState string            `json:"from_state" gorm:"type:text"`
	ToState   string            `json:"to_state" gorm:"type:text"`
	ActorID   string            `json:"actor_id" gorm:"type:text;not null"`
	Metadata  datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null"`
}

func (JobEvent) TableName() string { return "job_events" }

type JobNote struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	JobID     snowflake.ID `json:"job_id" gorm:"not null;index"`
	AuthorID  string       `json:"author_id" gorm:"type:text;not null"`
	Body      string       `json:"body" gorm:"type:text;not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (JobNote) TableName() string { return "job_notes" }
