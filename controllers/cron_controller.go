package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oakandloom/storefront/services"
	"github.com/oakandloom/storefront/utils"
)

// MonthlyStatsRecorder is the rollup the cron endpoint triggers.
type MonthlyStatsRecorder interface {
	RecordMonthlyStats(ctx context.Context) (services.RollupResult, error)
}

// CronController exposes jobs to an external scheduler.
type CronController struct {
	rollup MonthlyStatsRecorder
	cache  *utils.Cache
}

// NewCronController creates a CronController. cache may be nil.
func NewCronController(rollup MonthlyStatsRecorder, cache *utils.Cache) *CronController {
	return &CronController{rollup: rollup, cache: cache}
}

// MonthlyStats records this month's snapshot if it is missing. Safe to call repeatedly.
func (c *CronController) MonthlyStats(ctx *gin.Context) {
	res, err := c.rollup.RecordMonthlyStats(ctx.Request.Context())
	switch {
	case errors.Is(err, services.ErrRollupConflict):
		utils.Error(ctx, http.StatusConflict, 40901, "monthly stats were recorded concurrently")
		return
	case err != nil:
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to record monthly stats")
		return
	}

	if !res.AlreadyExisted {
		c.cache.InvalidateByPrefix(ctx.Request.Context(), dashboardCachePrefix)
	}
	utils.Success(ctx, gin.H{
		"already_existed": res.AlreadyExisted,
		"month_key":       res.MonthKey,
	})
}
