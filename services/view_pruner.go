package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/oakandloom/storefront/metrics"
	"github.com/oakandloom/storefront/models"
)

const defaultPruneBatch = 500

// ViewEventPruner deletes view events older than the retention horizon.
// Events are only needed for the dedup lookup, so retention must stay at
// least as long as the dedup window.
type ViewEventPruner struct {
	db        *gorm.DB
	retention time.Duration
	batch     int
	now       func() time.Time
	logger    *zap.Logger
}

// NewViewEventPruner creates a pruner. A batch <= 0 uses the default batch size.
func NewViewEventPruner(db *gorm.DB, retention time.Duration, batch int, now func() time.Time, logger *zap.Logger) *ViewEventPruner {
	if batch <= 0 {
		batch = defaultPruneBatch
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewEventPruner{db: db, retention: retention, batch: batch, now: now, logger: logger}
}

// Prune removes expired events in batches and returns how many were deleted.
func (p *ViewEventPruner) Prune(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	cutoff := p.now().UTC().Add(-p.retention)
	db := p.db.WithContext(ctx)

	var total int64
	for {
		var ids []uint
		if err := db.Model(&models.ViewEvent{}).
			Where("viewed_at < ?", cutoff).
			Order("id").
			Limit(p.batch).
			Pluck("id", &ids).Error; err != nil {
			return total, fmt.Errorf("select expired view events: %w", err)
		}
		if len(ids) == 0 {
			return total, nil
		}
		res := db.Where("id IN ?", ids).Delete(&models.ViewEvent{})
		if res.Error != nil {
			return total, fmt.Errorf("delete expired view events: %w", res.Error)
		}
		total += res.RowsAffected
		metrics.ViewEventsPruned.Add(float64(res.RowsAffected))
		if len(ids) < p.batch {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

// Start prunes every interval until ctx is cancelled. Failures are logged and retried next tick.
func (p *ViewEventPruner) Start(ctx context.Context, interval time.Duration) {
	if p.retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := p.Prune(ctx)
				if err != nil {
					p.logger.Warn("view event pruning failed", zap.Error(err))
					continue
				}
				if n > 0 {
					p.logger.Info("pruned view events", zap.Int64("deleted", n))
				}
			}
		}
	}()
}
