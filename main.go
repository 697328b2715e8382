package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/oakandloom/storefront/config"
	"github.com/oakandloom/storefront/routes"
	"github.com/oakandloom/storefront/services"
	"github.com/oakandloom/storefront/utils"
)

func main() {
	rollupOnce := flag.Bool("rollup", false, "record this month's stats snapshot and exit")
	flag.Parse()

	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *rollupOnce {
		rollup := services.NewMonthlyRollup(db, cfg.StatsLocation(), nil, utils.Logger.Named("rollup"))
		res, err := rollup.RecordMonthlyStats(ctx)
		if err != nil {
			utils.Logger.Error("monthly rollup failed", zap.Error(err))
			os.Exit(1)
		}
		utils.Logger.Info("monthly rollup finished",
			zap.String("month_key", res.MonthKey),
			zap.Bool("already_existed", res.AlreadyExisted),
		)
		return
	}

	cache := utils.NewCache(utils.GetRedis(), time.Duration(cfg.DashboardCacheSeconds)*time.Second)
	r := routes.SetupRouter(cfg, db, cache)

	pruner := services.NewViewEventPruner(db, cfg.ViewEventRetention(), 0, nil, utils.Logger.Named("pruner"))
	pruner.Start(ctx, time.Hour)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(ctx, utils.NewServer(":"+cfg.AppPort, r)); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
