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

	"github.com/worklane/worklane/internal/app"
	"github.com/worklane/worklane/internal/auth"
	"github.com/worklane/worklane/internal/authz"
	"github.com/worklane/worklane/internal/identity"
	identityhttp "github.com/worklane/worklane/internal/identity/http"
	"github.com/worklane/worklane/internal/observability"
	"github.com/worklane/worklane/internal/platform/cache"
	"github.com/worklane/worklane/internal/platform/db"
	"github.com/worklane/worklane/internal/rbac"
	rbachttp "github.com/worklane/worklane/internal/rbac/http"
	"github.com/worklane/worklane/internal/session"
	"github.com/worklane/worklane/internal/shared"
	"github.com/worklane/worklane/jobs"
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	gate := identity.NewGate(cfg.PendingRoleIDs...)
	identityRepo := identity.NewRepository(dbpool)
	identityProvider := identity.NewProvider(dbpool)
	identityService := identity.NewService(identityRepo, gate)

	rbacStore := rbac.NewPGStore(dbpool)
	rbacService := rbac.NewService(rbacStore, identityRepo)

	engine := authz.NewEngine(identityRepo, rbacStore, rbacStore, gate, logger, metrics)
	mw := authz.Middleware{Engine: engine, Logger: logger}

	codec := session.NewTokenCodec(cfg.TokenSecret, cfg.TokenIssuer, cfg.AccessTokenTTL)
	sessions := session.NewManager(redisClient, codec, identityRepo, nil, session.Config{
		IdleTimeout: cfg.IdleTimeout,
		RefreshTTL:  cfg.RefreshTTL,
		BypassTTL:   cfg.BypassTTL,
	}, logger, metrics)
	bypass := session.NewController(sessions, engine, identityRepo, auditLogger, logger, metrics)

	authHandler := auth.NewHandler(logger, identityProvider, sessions, bypass, cfg.IsProduction(), cfg.RefreshTTL)
	rbacHandler := rbachttp.NewHandler(logger, rbacService, mw)
	membersHandler := identityhttp.NewHandler(logger, identityService, mw)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Sessions:       sessions,
		Engine:         engine,
		AuthHandler:    authHandler,
		RBACHandler:    rbacHandler,
		MembersHandler: membersHandler,
		JobsHandler:    jobsHandler,
		Metrics:        metrics,
	})

	go sessions.RunIdleChecker(ctx, cfg.IdleCheckInterval)

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
