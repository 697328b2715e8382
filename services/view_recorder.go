package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/oakandloom/storefront/config"
	"github.com/oakandloom/storefront/metrics"
	"github.com/oakandloom/storefront/models"
)

// MaxSessionTokenLen matches the session_token column size.
const MaxSessionTokenLen = 64

var (
	// ErrProductNotFound is returned when the viewed product row does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidSessionToken is returned for tokens that cannot be stored.
	ErrInvalidSessionToken = errors.New("invalid session token")
)

// ViewOutcome tells whether a view changed the counter.
type ViewOutcome int

const (
	// ViewCounted means the counter was incremented and an event stored.
	ViewCounted ViewOutcome = iota + 1
	// ViewDuplicate means the session already viewed the product inside the window.
	ViewDuplicate
)

func (o ViewOutcome) String() string {
	switch o {
	case ViewCounted:
		return metrics.ViewCounted
	case ViewDuplicate:
		return metrics.ViewDuplicate
	default:
		return "unknown"
	}
}

// ViewRecorderOptions configures deduplication. Zero values take the defaults
// of a 24 hour window scoped per session.
type ViewRecorderOptions struct {
	DedupWindow time.Duration
	DedupScope  string
	Now         func() time.Time
}

// ViewRecorder counts product detail views, suppressing repeats from the same
// session inside a trailing window.
type ViewRecorder struct {
	db     *gorm.DB
	window time.Duration
	scope  string
	now    func() time.Time
	logger *zap.Logger
}

// NewViewRecorder creates a ViewRecorder.
func NewViewRecorder(db *gorm.DB, opts ViewRecorderOptions, logger *zap.Logger) *ViewRecorder {
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = 24 * time.Hour
	}
	if opts.DedupScope == "" {
		opts.DedupScope = config.DedupScopeSession
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewRecorder{
		db:     db,
		window: opts.DedupWindow,
		scope:  opts.DedupScope,
		now:    opts.Now,
		logger: logger,
	}
}

// RecordView records a view and never fails: errors are logged and counted,
// so a tracking problem cannot break the page that triggered it.
func (r *ViewRecorder) RecordView(ctx context.Context, productID uint, sessionToken string) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordView(metrics.ViewError)
			r.logger.Error("product view recorder panicked",
				zap.Uint("product_id", productID),
				zap.Any("panic", rec),
			)
		}
	}()

	outcome, err := r.Record(ctx, productID, sessionToken)
	if err != nil {
		metrics.RecordView(metrics.ViewError)
		r.logger.Warn("record product view failed",
			zap.Uint("product_id", productID),
			zap.Error(err),
		)
		return
	}
	metrics.RecordView(outcome.String())
	r.logger.Debug("product view recorded",
		zap.Uint("product_id", productID),
		zap.Stringer("outcome", outcome),
	)
}

// Record is the error-returning core of RecordView.
//
// The dedup lookup and the write are not serialized: two concurrent requests
// from one session may both pass the lookup and both count. The counter
// itself is always incremented with a relative UPDATE, so concurrent views
// from different sessions never lose updates.
func (r *ViewRecorder) Record(ctx context.Context, productID uint, sessionToken string) (ViewOutcome, error) {
	token := strings.TrimSpace(sessionToken)
	if len(token) > MaxSessionTokenLen {
		return 0, ErrInvalidSessionToken
	}

	now := r.now().UTC()
	db := r.db.WithContext(ctx)

	if token != "" && r.scope == config.DedupScopeSession {
		var recent int64
		if err := db.Model(&models.ViewEvent{}).
			Where("product_id = ? AND session_token = ? AND viewed_at >= ?", productID, token, now.Add(-r.window)).
			Count(&recent).Error; err != nil {
			return 0, fmt.Errorf("dedup lookup: %w", err)
		}
		if recent > 0 {
			return ViewDuplicate, nil
		}
	}

	event := models.ViewEvent{ProductID: productID, ViewedAt: now}
	if token != "" {
		event.SessionToken = &token
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		// UpdateColumns leaves updated_at alone: a view is not a catalog edit
		res := tx.Model(&models.Product{}).
			Where("id = ?", productID).
			UpdateColumns(map[string]interface{}{
				"view_count":     gorm.Expr("view_count + ?", 1),
				"last_viewed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrProductNotFound
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return 0, fmt.Errorf("count view for product %d: %w", productID, err)
	}
	return ViewCounted, nil
}
