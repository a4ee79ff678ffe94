package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/app"
	"github.com/kailas-cloud/sieve/internal/config"
	logpkg "github.com/kailas-cloud/sieve/internal/logger"
	"github.com/kailas-cloud/sieve/internal/metrics"
	chiTransport "github.com/kailas-cloud/sieve/internal/transport/chi"
	mcpTransport "github.com/kailas-cloud/sieve/internal/transport/mcp"
	"github.com/kailas-cloud/sieve/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(logpkg.Config{
		Env:    env,
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: map[string]string{"service": "sieve"},
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if err := run(env, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(env string, cfg config.Config, logger *zap.Logger) error {
	logger.Info("Starting sieve API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("catalog_driver", cfg.Catalog.Driver),
		zap.String("templates_source", cfg.Templates.Source),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.RegisterMetrics()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	go a.RunWatcher(ctx)

	server := chiTransport.NewServer(a.CatalogSvc, a.SearchSvc, a.Answerer(), a.IndexSvc, a.HealthSvc,
		chiTransport.WithDisplayDefaults(cfg.Search.DisplayMinHits, cfg.Search.DisplayMinPages))

	r := chi.NewRouter()
	r.Use(chiTransport.Recoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.RequestLogger(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	if cfg.MCP.Enabled {
		var answerer mcpTransport.Answerer
		if a.AnswerSvc != nil {
			answerer = a.AnswerSvc
		}
		mcpServer, err := mcpTransport.NewServer(a.SearchSvc, answerer, mcpTransport.Config{
			DefaultCollection: cfg.MCP.DefaultCollection,
			DefaultTopK:       cfg.MCP.DefaultTopK,
		}, logger)
		if err != nil {
			return fmt.Errorf("create mcp server: %w", err)
		}
		r.Handle(cfg.MCP.Path, mcpServer.Handler())
		r.Handle(cfg.MCP.Path+"/*", mcpServer.Handler())
		logger.Info("MCP tools mounted", zap.String("path", cfg.MCP.Path))
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
