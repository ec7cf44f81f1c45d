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

	httpadapter "github.com/kirillkom/pid-asset-extractor/internal/adapters/http"
	"github.com/kirillkom/pid-asset-extractor/internal/bootstrap"
	"github.com/kirillkom/pid-asset-extractor/internal/config"
	"github.com/kirillkom/pid-asset-extractor/internal/observability/logging"
	"github.com/kirillkom/pid-asset-extractor/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err.Error())
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, "api", cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	pipelineMetrics := metrics.NewPipelineMetrics("api", httpMetrics.Registerer())

	app, err := bootstrap.New(ctx, cfg,
		bootstrap.WithLogger(logger),
		bootstrap.WithObserver(pipelineMetrics),
	)
	if err != nil {
		logger.Error("bootstrap_error", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Ingestor:  app.IngestUC,
		Extractor: app.ExtractUC,
		Reader:    app.ReviewUC,
		Reviewer:  app.ReviewUC,
		Overlays:  app.OverlayUC,
		Exporter:  app.OverlayUC,
	}, httpadapter.WithMetrics(httpMetrics))

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Synchronous extraction waits for the vision model.
		WriteTimeout: cfg.VisionTimeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_error", "error", err.Error())
	}
}
