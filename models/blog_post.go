package models

import "time"

// BlogPost is a journal article. Only its existence and creation time matter to analytics.
type BlogPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Slug      string    `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Published bool      `gorm:"not null;default:false" json:"published"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
