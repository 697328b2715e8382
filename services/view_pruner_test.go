package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/oakandloom/storefront/metrics"
	"github.com/oakandloom/storefront/models"
)

func TestViewEventPruner_Prune(t *testing.T) {
	db := newTestDB(t)
	mustCreate(t, db, newProduct(1, 100, viewEpoch))

	now := viewEpoch.Add(30 * 24 * time.Hour)
	for i := 0; i < 7; i++ {
		// five expired events, two inside the retention horizon
		at := now.Add(-time.Duration(8+i) * 24 * time.Hour)
		if i >= 5 {
			at = now.Add(-time.Duration(i) * time.Hour)
		}
		mustCreate(t, db, &models.ViewEvent{ProductID: 1, ViewedAt: at})
	}

	before := testutil.ToFloat64(metrics.ViewEventsPruned)
	pruner := NewViewEventPruner(db, 7*24*time.Hour, 2, newFakeClock(now).Now, zaptest.NewLogger(t))

	deleted, err := pruner.Prune(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(5), deleted)
	require.Equal(t, float64(5), testutil.ToFloat64(metrics.ViewEventsPruned)-before)

	var left int64
	require.NoError(t, db.Model(&models.ViewEvent{}).Count(&left).Error)
	require.Equal(t, int64(2), left)
}

func TestViewEventPruner_KeepsDedupWorking(t *testing.T) {
	db := newTestDB(t)
	mustCreate(t, db, newProduct(7, 100, viewEpoch))
	clock := newFakeClock(viewEpoch)
	rec := NewViewRecorder(db, ViewRecorderOptions{Now: clock.Now}, nil)
	pruner := NewViewEventPruner(db, 48*time.Hour, 0, clock.Now, nil)
	ctx := context.Background()

	_, err := rec.Record(ctx, 7, "A")
	require.NoError(t, err)
	clock.Advance(time.Hour)

	deleted, err := pruner.Prune(ctx)
	require.NoError(t, err)
	require.Zero(t, deleted)

	outcome, err := rec.Record(ctx, 7, "A")
	require.NoError(t, err)
	require.Equal(t, ViewDuplicate, outcome)
}

func TestViewEventPruner_DisabledRetention(t *testing.T) {
	db := newTestDB(t)
	mustCreate(t, db, newProduct(1, 100, viewEpoch))
	mustCreate(t, db, &models.ViewEvent{ProductID: 1, ViewedAt: viewEpoch.AddDate(-1, 0, 0)})

	deleted, err := NewViewEventPruner(db, 0, 0, nil, nil).Prune(context.Background())
	require.NoError(t, err)
	require.Zero(t, deleted)
}
