package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/palisade-io/palisade/internal/app"
	"github.com/palisade-io/palisade/internal/platform/db"
	"github.com/palisade-io/palisade/internal/shared"
	"github.com/palisade-io/palisade/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	auditLogger := shared.NewAuditLogger(dbpool)

	purgeIdempotency, err := jobs.NewPurgeIdempotencyTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build purge idempotency task", slog.Any("error", err))
		os.Exit(1)
	}
	purgeAudit, err := jobs.NewPurgeAuditTask(cfg.AuditRetention)
	if err != nil {
		logger.Error("build purge audit task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPurgeIdempotency, Handler: jobs.NewPurgeIdempotencyHandler(idempotencyStore, logger)},
			{Type: jobs.TaskPurgeAudit, Handler: jobs.NewPurgeAuditHandler(auditLogger, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: purgeIdempotency},
			{Spec: "30 3 * * *", Task: purgeAudit},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
