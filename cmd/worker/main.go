package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/harborline-erp/harborline/internal/app"
	"github.com/harborline-erp/harborline/internal/freight"
	"github.com/harborline-erp/harborline/internal/orders"
	"github.com/harborline-erp/harborline/internal/platform/db"
	"github.com/harborline-erp/harborline/internal/recompute"
	"github.com/harborline-erp/harborline/internal/shared"
	"github.com/harborline-erp/harborline/jobs"
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

	auditLogger := shared.NewAuditLogger(pool)

	freightRepo := freight.NewRepository(pool)
	freightService := freight.NewService(freightRepo, auditLogger, logger)

	cutoff, err := cfg.CommissionCutoffDate()
	if err != nil {
		logger.Error("parse commission cutoff", slog.Any("error", err))
		os.Exit(1)
	}
	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, freightService, orders.NewCalculator(cutoff), auditLogger, logger)

	recomputer := recompute.OrderServiceRecomputer{Service: ordersService}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeRecomputeOrder, Handler: jobs.NewRecomputeOrderHandler(recomputer, logger)},
			{Type: jobs.TaskTypeReconcileSweep, Handler: jobs.NewReconcileSweepHandler(ordersService, recomputer, logger)},
		},
		Cron: []jobs.CronRegistration{
			{
				Spec:    "0 3 * * *",
				Task:    jobs.NewReconcileSweepTask(),
				Options: []asynq.Option{asynq.Queue(jobs.QueueRecompute)},
			},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
