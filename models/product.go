package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item. ViewCount is only ever changed by the view recorder.
type Product struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	Name           string           `gorm:"size:255;not null" json:"name"`
	Slug           string           `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Price          decimal.Decimal  `gorm:"type:decimal(12,2);not null;index" json:"price"`
	CompareAtPrice *decimal.Decimal `gorm:"type:decimal(12,2)" json:"compare_at_price,omitempty"`
	Color          string           `gorm:"size:64;index" json:"color"`
	Material       string           `gorm:"size:64;index" json:"material"`
	Featured       bool             `gorm:"not null;default:false" json:"featured"`
	Published      bool             `gorm:"not null;default:false;index" json:"published"`
	CollectionID   *uint            `gorm:"index" json:"collection_id,omitempty"`
	ViewCount      int64            `gorm:"not null;default:0;index" json:"view_count"`
	LastViewedAt   *time.Time       `json:"last_viewed_at,omitempty"`
	CreatedAt      time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Collection     *Collection      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"collection,omitempty"`
}
