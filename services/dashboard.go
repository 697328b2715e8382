package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/oakandloom/storefront/models"
)

// Dashboard serves read-only aggregates for the admin dashboard.
type Dashboard struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

// NewDashboard creates a Dashboard.
func NewDashboard(db *gorm.DB, loc *time.Location, now func() time.Time) *Dashboard {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Dashboard{db: db, loc: loc, now: now}
}

// Overview is the live counterpart of a MonthlyStat row.
type Overview struct {
	MonthKey string `json:"month_key"`
	Snapshot
}

// Overview returns live totals and this month's new-entity counts.
func (d *Dashboard) Overview(ctx context.Context) (Overview, error) {
	now := d.now().In(d.loc)
	snap, err := collectSnapshot(d.db.WithContext(ctx), MonthStart(now).UTC())
	if err != nil {
		return Overview{}, fmt.Errorf("dashboard overview: %w", err)
	}
	return Overview{MonthKey: MonthKey(now), Snapshot: snap}, nil
}

// TopViewed returns the most viewed products, ties broken by id.
func (d *Dashboard) TopViewed(ctx context.Context, limit int) ([]models.Product, error) {
	var products []models.Product
	err := d.db.WithContext(ctx).
		Order("view_count DESC").Order("id ASC").
		Limit(clampLimit(limit, 10, 100)).
		Find(&products).Error
	return products, err
}

// RecentViews returns the latest counted views with their products.
func (d *Dashboard) RecentViews(ctx context.Context, limit int) ([]models.ViewEvent, error) {
	var events []models.ViewEvent
	err := d.db.WithContext(ctx).
		Preload("Product").
		Order("viewed_at DESC").Order("id DESC").
		Limit(clampLimit(limit, 20, 200)).
		Find(&events).Error
	return events, err
}

// Trend returns up to months snapshots, oldest first.
func (d *Dashboard) Trend(ctx context.Context, months int) ([]models.MonthlyStat, error) {
	var stats []models.MonthlyStat
	if err := d.db.WithContext(ctx).
		Order("month_key DESC").
		Limit(clampLimit(months, 12, 120)).
		Find(&stats).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(stats)-1; i < j; i, j = i+1, j-1 {
		stats[i], stats[j] = stats[j], stats[i]
	}
	return stats, nil
}

func clampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
