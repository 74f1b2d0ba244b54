// Package domain contains persistence models and the resolution lifecycle
// for inspection deficiencies.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Severity classifies how urgent a finding is.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// DeficiencyStatus represents resolution states. A deficiency belongs to
// at most one active quote at a time: quoting moves it to quoted and only
// the owning quote's rejection or expiry releases it back to open.
type DeficiencyStatus string

const (
	StatusOpen       DeficiencyStatus = "open"
	StatusQuoted     DeficiencyStatus = "quoted"
	StatusApproved   DeficiencyStatus = "approved"
	StatusInProgress DeficiencyStatus = "in_progress"
	StatusCompleted  DeficiencyStatus = "completed"
)

// Deficiency is a finding recorded against an inspection.
type Deficiency struct {
	ID           snowflake.ID     `json:"id" gorm:"primaryKey"`
	InspectionID snowflake.ID     `json:"inspection_id" gorm:"not null;index"`
	CustomerID   snowflake.ID     `json:"customer_id" gorm:"not null;index"`
	Category     string           `json:"category" gorm:"type:text;not null"`
	Severity     Severity         `json:"severity" gorm:"type:text;not null"`
	Status       DeficiencyStatus `json:"status" gorm:"type:text;not null;default:'open'"`
	Description  string           `json:"description" gorm:"type:text"`

	// Estimated repair cost range in minor units; either bound may be absent.
	EstimatedCostLow  *int64 `json:"estimated_cost_low"`
	EstimatedCostHigh *int64 `json:"estimated_cost_high"`

	// QuoteID is set while the deficiency is held by an active quote.
	QuoteID *snowflake.ID `json:"quote_id" gorm:"index"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Deficiency) TableName() string { return "deficiencies" }
