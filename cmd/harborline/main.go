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
	"github.com/redis/go-redis/v9"

	"github.com/harborline-erp/harborline/internal/app"
	"github.com/harborline-erp/harborline/internal/freight"
	"github.com/harborline-erp/harborline/internal/materials"
	"github.com/harborline-erp/harborline/internal/orders"
	"github.com/harborline-erp/harborline/internal/platform/db"
	"github.com/harborline-erp/harborline/internal/payments"
	"github.com/harborline-erp/harborline/internal/recompute"
	"github.com/harborline-erp/harborline/internal/shared"
	"github.com/harborline-erp/harborline/internal/summary"
	"github.com/harborline-erp/harborline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

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

	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(paymentsRepo, auditLogger, logger)

	materialsRepo := materials.NewRepository(pool)
	materialsService := materials.NewService(materialsRepo, auditLogger, logger)

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

	orchestrator := recompute.NewOrchestrator(
		recompute.OrderServiceRecomputer{Service: ordersService},
		jobsClient,
		logger,
	)
	ordersService.SetRecomputeNotifier(orchestrator)
	freightService.SetRecomputeNotifier(orchestrator)

	summaryRepo := summary.NewRepository(pool)
	summaryCache := summary.NewCache(redisClient, cfg.SummaryCacheTTL)
	summaryService := summary.NewService(summaryRepo, summaryCache, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		OrdersHandler:    orders.NewHandler(logger, ordersService),
		FreightHandler:   freight.NewHandler(logger, freightService),
		PaymentsHandler:  payments.NewHandler(logger, paymentsService),
		MaterialsHandler: materials.NewHandler(logger, materialsService),
		SummaryHandler:   summary.NewHandler(logger, summaryService),
		JobHandler:       jobs.NewHandler(inspector, logger),
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
