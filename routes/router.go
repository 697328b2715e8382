package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/oakandloom/storefront/config"
	"github.com/oakandloom/storefront/controllers"
	"github.com/oakandloom/storefront/middleware"
	"github.com/oakandloom/storefront/services"
	"github.com/oakandloom/storefront/utils"
)

// SetupRouter wires routes, middlewares, and controllers. cache may be nil.
func SetupRouter(cfg config.AppConfig, db *gorm.DB, cache *utils.Cache) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file
	if cfg.GinPath != "" {
		gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err == nil {
			r.Use(utils.Ginzap(gl, time.RFC3339, true))
			r.Use(utils.RecoveryWithZap(gl, false))
		} else {
			utils.Sugar.Warnf("gin access log disabled: %v", err)
			r.Use(utils.RecoveryWithZap(utils.Logger, true))
		}
	} else {
		r.Use(utils.RecoveryWithZap(utils.Logger, true))
	}
	r.Use(middleware.PrometheusMetrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		// browsers refuse credentials with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	loc := cfg.StatsLocation()
	recorder := services.NewViewRecorder(db, services.ViewRecorderOptions{
		DedupWindow: cfg.ViewDedupWindow(),
		DedupScope:  cfg.ViewDedupScope,
	}, utils.Logger.Named("views"))
	rollup := services.NewMonthlyRollup(db, loc, nil, utils.Logger.Named("rollup"))
	dashboard := services.NewDashboard(db, loc, nil)

	catalogController := controllers.NewCatalogController(db)
	cronController := controllers.NewCronController(rollup, cache)
	dashboardController := controllers.NewDashboardController(dashboard, cache)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	api := r.Group("/api/v1")
	api.Use(limiter.Middleware())

	catalog := api.Group("")
	catalog.Use(middleware.VisitorSession(cfg.SessionCookieName))
	catalog.GET("/products", catalogController.ListProducts)
	catalog.GET("/collections/:slug/products", catalogController.ListCollectionProducts)
	catalog.GET("/products/:slug", middleware.ProductViewRecorder(recorder), catalogController.GetProduct)

	admin := api.Group("/admin/dashboard")
	admin.Use(middleware.AdminRequired(cfg.JWTSecret, cfg.AdminUsernames))
	admin.GET("/overview", dashboardController.Overview)
	admin.GET("/top-viewed", dashboardController.TopViewed)
	admin.GET("/recent-views", dashboardController.RecentViews)
	admin.GET("/trend", dashboardController.Trend)

	cron := r.Group("/api/cron")
	cron.Use(limiter.Middleware(), middleware.CronSecret(cfg.CronSecret))
	cron.GET("/monthly-stats", cronController.MonthlyStats)
	cron.POST("/monthly-stats", cronController.MonthlyStats)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
