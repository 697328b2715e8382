package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/oakandloom/storefront/metrics"
	"github.com/oakandloom/storefront/models"
)

// MonthKeyLayout formats a month key such as "2026-10".
const MonthKeyLayout = "2006-01"

// ErrRollupConflict means another trigger inserted this month's row between
// our existence check and our insert. The unique index kept the table clean.
var ErrRollupConflict = errors.New("monthly stats already recorded by a concurrent run")

// MonthKey returns the "YYYY-MM" key of t in t's location.
func MonthKey(t time.Time) string {
	return t.Format(MonthKeyLayout)
}

// MonthStart returns midnight on the first day of t's month, in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Snapshot holds store-wide counters at one instant.
type Snapshot struct {
	ProductsCount int64 `json:"products_count"`
	PostsCount    int64 `json:"posts_count"`
	UsersCount    int64 `json:"users_count"`
	TotalViews    int64 `json:"total_views"`
	NewProducts   int64 `json:"new_products"`
	NewPosts      int64 `json:"new_posts"`
	NewUsers      int64 `json:"new_users"`
}

// collectSnapshot counts entities and views; "new" means created on or after since.
// since must be in UTC to compare correctly against stored timestamps.
func collectSnapshot(db *gorm.DB, since time.Time) (Snapshot, error) {
	var s Snapshot
	steps := []struct {
		name string
		run  func() error
	}{
		{"count products", func() error { return db.Model(&models.Product{}).Count(&s.ProductsCount).Error }},
		{"count blog posts", func() error { return db.Model(&models.BlogPost{}).Count(&s.PostsCount).Error }},
		{"count users", func() error { return db.Model(&models.User{}).Count(&s.UsersCount).Error }},
		{"sum views", func() error {
			return db.Model(&models.Product{}).Select("COALESCE(SUM(view_count),0)").Scan(&s.TotalViews).Error
		}},
		{"count new products", func() error {
			return db.Model(&models.Product{}).Where("created_at >= ?", since).Count(&s.NewProducts).Error
		}},
		{"count new blog posts", func() error {
			return db.Model(&models.BlogPost{}).Where("created_at >= ?", since).Count(&s.NewPosts).Error
		}},
		{"count new users", func() error {
			return db.Model(&models.User{}).Where("created_at >= ?", since).Count(&s.NewUsers).Error
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return s, nil
}

// RollupResult reports what RecordMonthlyStats did.
type RollupResult struct {
	AlreadyExisted bool                `json:"already_existed"`
	MonthKey       string              `json:"month_key"`
	Stat           *models.MonthlyStat `json:"stat,omitempty"`
}

// MonthlyRollup writes one MonthlyStat row per calendar month. It has no timer
// of its own; an external scheduler calls RecordMonthlyStats as often as it likes.
type MonthlyRollup struct {
	db     *gorm.DB
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewMonthlyRollup creates a MonthlyRollup. loc decides where month boundaries fall.
func NewMonthlyRollup(db *gorm.DB, loc *time.Location, now func() time.Time, logger *zap.Logger) *MonthlyRollup {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonthlyRollup{db: db, loc: loc, now: now, logger: logger}
}

// RecordMonthlyStats snapshots the current month if it has not been recorded yet.
// An existing row is returned untouched: a month's figures are whatever they
// were when first computed.
func (m *MonthlyRollup) RecordMonthlyStats(ctx context.Context) (RollupResult, error) {
	started := time.Now()
	res, outcome, err := m.record(ctx)
	metrics.RecordRollup(outcome, time.Since(started))

	switch outcome {
	case metrics.RollupCreated:
		m.logger.Info("monthly stats recorded",
			zap.String("month_key", res.MonthKey),
			zap.Int64("products", res.Stat.ProductsCount),
			zap.Int64("total_views", res.Stat.TotalViews),
		)
	case metrics.RollupExisting:
		m.logger.Debug("monthly stats already recorded", zap.String("month_key", res.MonthKey))
	default:
		m.logger.Error("monthly stats rollup failed", zap.String("month_key", res.MonthKey), zap.Error(err))
	}
	return res, err
}

func (m *MonthlyRollup) record(ctx context.Context) (RollupResult, string, error) {
	now := m.now().In(m.loc)
	res := RollupResult{MonthKey: MonthKey(now)}
	db := m.db.WithContext(ctx)

	var existing models.MonthlyStat
	err := db.Where("month_key = ?", res.MonthKey).Take(&existing).Error
	switch {
	case err == nil:
		res.AlreadyExisted = true
		res.Stat = &existing
		return res, metrics.RollupExisting, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return res, metrics.RollupError, fmt.Errorf("look up monthly stats %s: %w", res.MonthKey, err)
	}

	snap, err := collectSnapshot(db, MonthStart(now).UTC())
	if err != nil {
		return res, metrics.RollupError, fmt.Errorf("collect monthly stats %s: %w", res.MonthKey, err)
	}

	stat := models.MonthlyStat{
		MonthKey:      res.MonthKey,
		ProductsCount: snap.ProductsCount,
		PostsCount:    snap.PostsCount,
		UsersCount:    snap.UsersCount,
		TotalViews:    snap.TotalViews,
		NewProducts:   snap.NewProducts,
		NewPosts:      snap.NewPosts,
		NewUsers:      snap.NewUsers,
		CreatedAt:     now.UTC(),
	}
	if err := db.Create(&stat).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return res, metrics.RollupConflict, fmt.Errorf("insert monthly stats %s: %w", res.MonthKey, ErrRollupConflict)
		}
		return res, metrics.RollupError, fmt.Errorf("insert monthly stats %s: %w", res.MonthKey, err)
	}
	res.Stat = &stat
	return res, metrics.RollupCreated, nil
}
