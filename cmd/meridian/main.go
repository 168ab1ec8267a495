package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-retail/meridian-stock/internal/app"
	"github.com/meridian-retail/meridian-stock/internal/catalog"
	"github.com/meridian-retail/meridian-stock/internal/ledger"
	"github.com/meridian-retail/meridian-stock/internal/movement"
	"github.com/meridian-retail/meridian-stock/internal/observability"
	"github.com/meridian-retail/meridian-stock/internal/platform/cache"
	"github.com/meridian-retail/meridian-stock/internal/platform/db"
	"github.com/meridian-retail/meridian-stock/internal/purchase"
	"github.com/meridian-retail/meridian-stock/internal/sales"
	"github.com/meridian-retail/meridian-stock/internal/shared"
	"github.com/meridian-retail/meridian-stock/internal/transfer"
	"github.com/meridian-retail/meridian-stock/internal/warehouse"
	"github.com/meridian-retail/meridian-stock/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	catalogRepo := catalog.NewRepository(dbpool)
	nameIndex := catalog.NewNameIndex(redisClient, cfg.NameIndexTTL)
	locator := catalog.NewLocator(logger, nameIndex, metrics)
	stockLedger := ledger.New(resolver, ledger.Config{HonorCommittedStock: cfg.HonorCommittedStock})

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
	notifier := jobs.NewNotifier(logger, jobsClient)

	engine := movement.NewEngine(logger, catalogRepo, resolver, locator, stockLedger,
		auditLogger, notifier, metrics, movement.Config{
			MaxAttempts: cfg.MovementMaxAttempts,
			Parallelism: cfg.MovementParallelism,
		})

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(logger, salesRepo, resolver, engine, auditLogger,
		sales.Config{DefaultWarehouses: cfg.DefaultWarehouses})
	salesHandler := sales.NewHandler(logger, salesService)

	purchaseRepo := purchase.NewRepository(dbpool)
	purchaseService := purchase.NewService(logger, purchaseRepo, resolver, engine, auditLogger)
	purchaseHandler := purchase.NewHandler(logger, purchaseService)

	transferRepo := transfer.NewRepository(dbpool)
	transferService := transfer.NewService(logger, transferRepo, resolver, engine, idempotencyStore, auditLogger)
	transferHandler := transfer.NewHandler(logger, transferService)

	catalogHandler := catalog.NewHandler(logger, catalogRepo, resolver)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		CatalogHandler:  catalogHandler,
		SalesHandler:    salesHandler,
		PurchaseHandler: purchaseHandler,
		TransferHandler: transferHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
