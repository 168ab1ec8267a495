package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-retail/meridian-stock/internal/app"
	"github.com/meridian-retail/meridian-stock/internal/catalog"
	"github.com/meridian-retail/meridian-stock/internal/platform/cache"
	"github.com/meridian-retail/meridian-stock/internal/platform/db"
	"github.com/meridian-retail/meridian-stock/internal/reorder"
	"github.com/meridian-retail/meridian-stock/internal/shared"
	"github.com/meridian-retail/meridian-stock/internal/warehouse"
	"github.com/meridian-retail/meridian-stock/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	aliases, err := warehouse.LoadAliases(cfg.WarehouseAliasFile)
	if err != nil {
		logger.Error("load warehouse aliases", slog.Any("error", err))
		os.Exit(1)
	}
	resolver := warehouse.NewResolver(aliases)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	catalogRepo := catalog.NewRepository(pool)
	nameIndex := catalog.NewNameIndex(redisClient, cfg.NameIndexTTL)
	locator := catalog.NewLocator(logger, nameIndex, nil)
	alertRepo := reorder.NewRepository(pool)
	mailer := jobs.NewMailer(jobsClient, cfg.ReorderMailTo)
	scanner := reorder.NewScanner(logger, catalogRepo, locator, resolver, alertRepo, mailer)

	idempotencyStore := shared.NewIdempotencyStore(pool)

	jobMetrics := jobs.NewMetrics(nil)
	scanHandler := jobs.NewScanHandler(scanner, jobMetrics)
	maintenanceHandler := jobs.NewMaintenanceHandler(idempotencyStore, jobMetrics)

	maintenanceTask, err := jobs.NewMaintenanceTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build maintenance task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeReorderScan, Handler: scanHandler.Handle},
			{Type: jobs.TaskTypeMaintenanceCleanup, Handler: maintenanceHandler.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: maintenanceTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
