package models

import "time"

// ViewEvent is an append-only record of a counted product view.
// A nil SessionToken marks an anonymous view, which is never deduplicated.
type ViewEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ProductID    uint      `gorm:"not null;index:idx_view_dedup,priority:1" json:"product_id"`
	SessionToken *string   `gorm:"size:64;index:idx_view_dedup,priority:2" json:"-"`
	ViewedAt     time.Time `gorm:"not null;index;index:idx_view_dedup,priority:3" json:"viewed_at"`
	Product      *Product  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"product,omitempty"`
}
