// Package domain contains persistence models and the lifecycle table for
// quotes.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// QuoteStatus represents quote lifecycle states.
type QuoteStatus string

const (
	StatusDraft    QuoteStatus = "draft"
	StatusSent     QuoteStatus = "sent"
	StatusViewed   QuoteStatus = "viewed"
	StatusAccepted QuoteStatus = "accepted"
	StatusDeclined QuoteStatus = "declined"
	StatusExpired  QuoteStatus = "expired"
)

// ItemType classifies a priced line.
type ItemType string

const (
	ItemTypeEquipment  ItemType = "equipment"
	ItemTypeLabor      ItemType = "labor"
	ItemTypeService    ItemType = "service"
	ItemTypeMonitoring ItemType = "monitoring"
	ItemTypeOther      ItemType = "other"
)

// Quote is a priced document offered to a customer. The derived amounts
// are recomputed from line items and rates on every mutation; they are
// never patched independently.
type Quote struct {
	ID          snowflake.ID  `json:"id" gorm:"primaryKey"`
	QuoteNumber int64         `json:"quote_number" gorm:"not null;index"`
	CustomerID  snowflake.ID  `json:"customer_id" gorm:"not null;index"`
	SiteID      *snowflake.ID `json:"site_id" gorm:"index"`
	Status      QuoteStatus   `json:"status" gorm:"type:text;not null;default:'draft'"`
	Currency    string        `json:"currency" gorm:"type:text;not null"`

	// Rates in basis points (825 = 8.25%).
	TaxRateBps      int64 `json:"tax_rate_bps" gorm:"not null;default:0"`
	DiscountRateBps int64 `json:"discount_rate_bps" gorm:"not null;default:0"`

	SubtotalAmount int64 `json:"subtotal_amount" gorm:"not null;default:0"`
	DiscountAmount int64 `json:"discount_amount" gorm:"not null;default:0"`
	TaxAmount      int64 `json:"tax_amount" gorm:"not null;default:0"`
	TotalAmount    int64 `json:"total_amount" gorm:"not null;default:0"`

	ExpiresAt  *time.Time `json:"expires_at"`
	SentAt     *time.Time `json:"sent_at"`
	AcceptedAt *time.Time `json:"accepted_at"`
	CreatedAt  time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"not null"`
}

func (Quote) TableName() string { return "quotes" }

// QuoteItem is one priced line on a quote. DeficiencyID links lines that
// were generated from inspection findings.
type QuoteItem struct {
	ID           snowflake.ID  `json:"id" gorm:"primaryKey"`
	QuoteID      snowflake.ID  `json:"quote_id" gorm:"not null;index"`
	DeficiencyID *snowflake.ID `json:"deficiency_id" gorm:"index"`
	Description  string        `json:"description" gorm:"type:text;not null"`
	ItemType     ItemType      `json:"item_type" gorm:"type:text;not null"`
	Quantity     int64         `json:"quantity" gorm:"not null"`
	UnitPrice    int64         `json:"unit_price" gorm:"not null"`
	Amount       int64         `json:"amount" gorm:"not null"`
	Position     int           `json:"position" gorm:"not null;default:0"`
	CreatedAt    time.Time     `json:"created_at" gorm:"not null"`
}

func (QuoteItem) TableName() string { return "quote_items" }

func ValidItemType(t ItemType) bool {
	switch t {
	case ItemTypeEquipment, ItemTypeLabor, ItemTypeService, ItemTypeMonitoring, ItemTypeOther:
		return true
	default:
		return false
	}
}
