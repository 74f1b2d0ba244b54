// Package domain contains persistence models for customers and their
// protected sites.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Customer is a billing account holder.
type Customer struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Email     string       `json:"email" gorm:"type:text;not null;index"`
	Phone     string       `json:"phone" gorm:"type:text"`
	Address   string       `json:"address" gorm:"type:text"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Customer) TableName() string { return "customers" }

// Site is a physical location where inspections and jobs take place.
type Site struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	CustomerID snowflake.ID `json:"customer_id" gorm:"not null;index"`
	Name       string       `json:"name" gorm:"type:text;not null"`
	Address    string       `json:"address" gorm:"type:text"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null"`
}

func (Site) TableName() string { return "sites" }
