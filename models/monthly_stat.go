package models

import "time"

// MonthlyStat is the store-wide snapshot for one calendar month, keyed "YYYY-MM".
// Rows are written once and never updated; the unique index on MonthKey
// rejects a second insert for the same month.
type MonthlyStat struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	MonthKey      string    `gorm:"size:7;uniqueIndex;not null" json:"month_key"`
	ProductsCount int64     `gorm:"not null;default:0" json:"products_count"`
	PostsCount    int64     `gorm:"not null;default:0" json:"posts_count"`
	UsersCount    int64     `gorm:"not null;default:0" json:"users_count"`
	TotalViews    int64     `gorm:"not null;default:0" json:"total_views"`
	NewProducts   int64     `gorm:"not null;default:0" json:"new_products"`
	NewPosts      int64     `gorm:"not null;default:0" json:"new_posts"`
	NewUsers      int64     `gorm:"not null;default:0" json:"new_users"`
	CreatedAt     time.Time `json:"created_at"`
}
