package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/app"
	"github.com/grocerops/grocerops/internal/inventory"
	jobmetrics "github.com/grocerops/grocerops/internal/jobs"
	"github.com/grocerops/grocerops/internal/orders"
	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/platform/cache"
	"github.com/grocerops/grocerops/internal/platform/db"
	"github.com/grocerops/grocerops/internal/products"
	"github.com/grocerops/grocerops/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	decimal.MarshalJSONWithoutQuotes = true

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

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	api := backend.NewClient(backend.Options{
		BaseURL:   cfg.BackendURL,
		Timeout:   cfg.BackendTimeout,
		RateLimit: cfg.BackendRateLimit,
		Logger:    logger,
	})
	inventoryService := inventory.NewService(inventory.Deps{
		Products: products.NewService(api),
		Orders:   orders.NewService(api),
		Store:    inventory.NewRedisStore(redisClient, 24*time.Hour),
		Repo:     inventory.NewRepository(pool),
		Logger:   logger,
		Rules: inventory.Rules{
			LowStockThreshold: cfg.LowStockThreshold,
			ExpiryWindow:      cfg.ExpiryWindow,
		},
		MaxAge: cfg.InventoryPollInterval,
	})

	scanJob := jobs.NewAlertScanJob(inventoryService, cfg.BackendServiceToken, logger, metrics)
	pruneJob := jobs.NewAlertPruneJob(inventoryService, cfg.AlertRetention, logger, metrics)

	scanTask, err := jobs.NewAlertScanTask("cron")
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}
	pruneTask, err := jobs.NewAlertPruneTask(cfg.AlertRetention)
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}

	cron := []jobs.CronRegistration{
		{Spec: "30 3 * * *", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
	}
	if cfg.BackendServiceToken != "" {
		// Safety net for when no web process is polling.
		cron = append(cron, jobs.CronRegistration{Spec: "*/10 * * * *", Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(1), asynq.Unique(5 * time.Minute)}})
	} else {
		logger.Warn("BACKEND_SERVICE_TOKEN not set, scheduled alert scans disabled")
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInventoryAlertScan, Handler: scanJob.Handle},
			{Type: jobs.TaskInventoryAlertPrune, Handler: pruneJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
