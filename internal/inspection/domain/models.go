// Package domain contains persistence models and the lifecycle table for
// inspections.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// InspectionStatus represents inspection lifecycle states.
type InspectionStatus string

const (
	StatusScheduled  InspectionStatus = "scheduled"
	StatusInProgress InspectionStatus = "in_progress"
	StatusCompleted  InspectionStatus = "completed"
	StatusCancelled  InspectionStatus = "cancelled"
)

// Inspection is a scheduled visit that produces checklist results and
// deficiencies.
type Inspection struct {
	ID             snowflake.ID     `json:"id" gorm:"primaryKey"`
	CustomerID     snowflake.ID     `json:"customer_id" gorm:"not null;index"`
	SiteID         *snowflake.ID    `json:"site_id" gorm:"index"`
	InspectionType string           `json:"inspection_type" gorm:"type:text;not null"`
	Status         InspectionStatus `json:"status" gorm:"type:text;not null;default:'scheduled'"`
	TechnicianID   *string          `json:"technician_id" gorm:"type:text"`

	// Pass flags are only meaningful once the inspection completes.
	Passed               *bool `json:"passed"`
	PassWithDeficiencies *bool `json:"pass_with_deficiencies"`

	ScheduledAt *time.Time `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Notes       string     `json:"notes" gorm:"type:text"`
	CreatedAt   time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"not null"`
}

func (Inspection) TableName() string { return "inspections" }

// ChecklistResult is one checklist line recorded by the technician.
type ChecklistResult struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	InspectionID snowflake.ID `json:"inspection_id" gorm:"not null;index"`
	Item         string       `json:"item" gorm:"type:text;not null"`
	Passed       bool         `json:"passed" gorm:"not null"`
	Notes        string       `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
}

func (ChecklistResult) TableName() string { return "inspection_checklist_results" }
