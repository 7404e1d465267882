package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/savdo-pos/savdo-pos/internal/app"
	"github.com/savdo-pos/savdo-pos/internal/inventory"
	"github.com/savdo-pos/savdo-pos/internal/platform/db"
	"github.com/savdo-pos/savdo-pos/jobs"
)

func main() {
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	inventoryRepo := inventory.NewRepository(pool)
	integrity := jobs.NewStockIntegrityChecker(inventoryRepo, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:      asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:         logger,
		StockIntegrity: integrity,
		IntegritySpec:  cfg.StockIntegritySpec,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("queue", jobs.QueueDefault))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}
