package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oakandloom/storefront/models"
	"github.com/oakandloom/storefront/services"
	"github.com/oakandloom/storefront/utils"
)

const dashboardCachePrefix = "cache:dashboard:"

// DashboardReader is the read side the admin dashboard renders.
type DashboardReader interface {
	Overview(ctx context.Context) (services.Overview, error)
	TopViewed(ctx context.Context, limit int) ([]models.Product, error)
	RecentViews(ctx context.Context, limit int) ([]models.ViewEvent, error)
	Trend(ctx context.Context, months int) ([]models.MonthlyStat, error)
}

// DashboardController provides store statistics for administrators.
type DashboardController struct {
	dash  DashboardReader
	cache *utils.Cache
}

// NewDashboardController creates a DashboardController. cache may be nil.
func NewDashboardController(dash DashboardReader, cache *utils.Cache) *DashboardController {
	return &DashboardController{dash: dash, cache: cache}
}

// Overview returns live totals and this month's new-entity counts.
func (d *DashboardController) Overview(ctx *gin.Context) {
	key := dashboardCachePrefix + "overview"
	var ov services.Overview
	if d.cache.GetJSON(ctx.Request.Context(), key, &ov) {
		utils.Success(ctx, ov)
		return
	}

	ov, err := d.dash.Overview(ctx.Request.Context())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load overview")
		return
	}
	d.cache.SetJSON(ctx.Request.Context(), key, ov)
	utils.Success(ctx, ov)
}

// TopViewed returns the most viewed products. Query: limit.
func (d *DashboardController) TopViewed(ctx *gin.Context) {
	limit := queryInt(ctx, "limit")
	key := fmt.Sprintf("%stop:limit=%d", dashboardCachePrefix, limit)
	var products []models.Product
	if d.cache.GetJSON(ctx.Request.Context(), key, &products) {
		utils.Success(ctx, gin.H{"items": products})
		return
	}

	products, err := d.dash.TopViewed(ctx.Request.Context(), limit)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to load top viewed products")
		return
	}
	d.cache.SetJSON(ctx.Request.Context(), key, products)
	utils.Success(ctx, gin.H{"items": products})
}

// RecentViews returns the latest counted views. Never cached.
func (d *DashboardController) RecentViews(ctx *gin.Context) {
	events, err := d.dash.RecentViews(ctx.Request.Context(), queryInt(ctx, "limit"))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to load recent views")
		return
	}
	utils.Success(ctx, gin.H{"items": events})
}

// Trend returns monthly snapshots oldest first. Query: months.
func (d *DashboardController) Trend(ctx *gin.Context) {
	months := queryInt(ctx, "months")
	key := fmt.Sprintf("%strend:months=%d", dashboardCachePrefix, months)
	var stats []models.MonthlyStat
	if d.cache.GetJSON(ctx.Request.Context(), key, &stats) {
		utils.Success(ctx, gin.H{"items": stats})
		return
	}

	stats, err := d.dash.Trend(ctx.Request.Context(), months)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to load trend")
		return
	}
	d.cache.SetJSON(ctx.Request.Context(), key, stats)
	utils.Success(ctx, gin.H{"items": stats})
}

// queryInt returns 0 for a missing or malformed value; the read models apply their defaults.
func queryInt(ctx *gin.Context, name string) int {
	n, err := strconv.Atoi(ctx.Query(name))
	if err != nil {
		return 0
	}
	return n
}
