package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sqlrag/sqlrag/internal/api"
	"github.com/sqlrag/sqlrag/internal/api/uistatic"
	"github.com/sqlrag/sqlrag/internal/app"
	"github.com/sqlrag/sqlrag/internal/config"
	"github.com/sqlrag/sqlrag/internal/observability"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", slog.Any("error", err))
	}
	cfg, err := config.LoadFromEnv("sqlrag-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logWriter, closeLog := observability.LogWriter(cfg, os.Stdout)
	defer func() { _ = closeLog() }()
	logger := observability.NewLogger(cfg, logWriter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to initialize application", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = application.Close() }()

	// A failed index build leaves the API up and not ready; POST
	// /v1/index/rebuild retries it.
	if err := application.Prepare(ctx); err != nil {
		logger.Error("schema index build failed", slog.Any("error", err))
	}

	handler := api.NewHandler(cfg, application.APIDependencies(uistatic.Handler()))
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("database", string(application.Target.Kind)),
			slog.String("index", cfg.Index.Backend),
		)
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
