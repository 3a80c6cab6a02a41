package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/costlens/costlens/internal/api"
	"github.com/costlens/costlens/internal/auth"
	"github.com/costlens/costlens/internal/config"
	"github.com/costlens/costlens/internal/observability"
	"github.com/costlens/costlens/internal/schema"
	"github.com/costlens/costlens/internal/sqlconn"
	"github.com/costlens/costlens/internal/sqlexec"
)

func main() {
	cfg, err := config.LoadFromEnv("costlens-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	model, err := schema.LoadFile(cfg.Schema.CatalogPath)
	if err != nil {
		logger.Error("failed to load schema catalog", slog.Any("error", err))
		os.Exit(1)
	}
	schemaCtx, err := schema.NewContext(schema.Mode(cfg.Schema.ContextMode), model)
	if err != nil {
		logger.Error("failed to build schema context", slog.Any("error", err))
		os.Exit(1)
	}

	opener := sqlconn.NewOpener(sqlconn.Config{
		Host:            cfg.Warehouse.Host,
		Port:            cfg.Warehouse.Port,
		User:            cfg.Warehouse.User,
		Password:        cfg.Warehouse.Password,
		Database:        cfg.Warehouse.Database,
		Charset:         cfg.Warehouse.Charset,
		MaxOpenConns:    cfg.Warehouse.MaxOpenConns,
		MaxIdleConns:    cfg.Warehouse.MaxIdleConns,
		ConnMaxIdleTime: cfg.Warehouse.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Warehouse.ConnMaxLifetime,
	})
	validator := sqlexec.NewValidator(opener)
	defer func() { _ = validator.Close() }()
	executor := sqlexec.NewExecutor(opener, sqlexec.ExecutorConfig{
		Workers:         cfg.Executor.Workers,
		MaxFailureRatio: cfg.Executor.MaxFailureRatio,
	}, logger)

	deps := api.Dependencies{
		Logger:            logger,
		Schema:            schemaCtx,
		Validator:         validator,
		Executor:          executor,
		DependencyTimeout: time.Second,
	}
	if graphCtx, ok := schemaCtx.(*schema.GraphContext); ok {
		deps.Graph = graphCtx.Graph()
	}
	deps.Readiness = api.CombineReadinessChecks(
		api.CheckWarehouseConfig(cfg),
		api.CheckSchemaCatalog(deps),
	)
	if cfg.Auth.Required {
		keyValidator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, keyValidator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
