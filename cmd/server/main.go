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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"pointflow/internal/api"
	"pointflow/internal/api/middleware"
	"pointflow/internal/config"
	"pointflow/pkg/factory"
	"pointflow/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LogLevel(cfg.LogLevel), nil)

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", map[string]interface{}{"error": err.Error()})
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting application", map[string]interface{}{
		"env":     cfg.AppEnv,
		"storage": cfg.Database.Driver,
	})

	appFactory, err := factory.NewFactory(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer func() {
		if err := appFactory.Close(); err != nil {
			log.Error("Failed to release resources", map[string]interface{}{"error": err.Error()})
		}
	}()

	mux := http.NewServeMux()
	api.NewPointHandler(appFactory.GetPointService(), appFactory.GetBatchService(), log).RegisterRoutes(mux)
	api.NewHealthHandler(appFactory.HealthChecks(), log).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := middleware.TracingMiddleware(
		middleware.LoggingMiddleware(log)(
			middleware.MetricsMiddleware(mux),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", map[string]interface{}{"port": cfg.Server.Port})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutting down HTTP server", map[string]interface{}{})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Server stopped", map[string]interface{}{})
	return nil
}
