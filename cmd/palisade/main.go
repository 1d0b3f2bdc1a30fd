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

	"github.com/palisade-io/palisade/internal/app"
	"github.com/palisade-io/palisade/internal/auth"
	"github.com/palisade-io/palisade/internal/authz"
	"github.com/palisade-io/palisade/internal/observability"
	"github.com/palisade-io/palisade/internal/platform/db"
	"github.com/palisade-io/palisade/internal/shared"
	"github.com/palisade-io/palisade/internal/users"
	"github.com/palisade-io/palisade/jobs"
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	hasher := auth.NewHasher(auth.HasherParams{
		Memory:  cfg.ArgonMemory,
		Time:    cfg.ArgonTime,
		Threads: cfg.ArgonThreads,
	})
	tokens := auth.NewTokenService([]byte(cfg.AuthSecret), cfg.TokenTTL)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, hasher, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, idempotencyStore)

	authService := auth.NewService(usersRepo, hasher, tokens, auditLogger, logger)
	authHandler := auth.NewHandler(logger, authService, cfg.AuthCookie, cfg.IsProduction())
	authMiddleware := auth.Middleware{
		Service:    authService,
		Logger:     logger,
		Metrics:    metrics,
		CookieName: cfg.AuthCookie,
	}

	registry := app.RoutePolicy()
	for _, route := range registry.Routes() {
		logger.Info("route requirement registered", slog.String("route", route))
	}
	authzMiddleware := authz.Middleware{Registry: registry, Logger: logger, Metrics: metrics}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Registry:        registry,
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		AuthzMiddleware: authzMiddleware,
		UsersHandler:    usersHandler,
		JobsHandler:     jobsHandler,
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
