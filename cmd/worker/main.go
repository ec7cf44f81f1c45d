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

	"github.com/kirillkom/pid-asset-extractor/internal/bootstrap"
	"github.com/kirillkom/pid-asset-extractor/internal/config"
	"github.com/kirillkom/pid-asset-extractor/internal/observability/logging"
	"github.com/kirillkom/pid-asset-extractor/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err.Error())
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, service, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if cfg.QueueBackend != config.QueueNATS {
		logger.Error("worker_requires_queue", "queue_backend", cfg.QueueBackend)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	pipelineMetrics := metrics.NewPipelineMetrics(service, workerMetrics.Registerer())

	app, err := bootstrap.New(ctx, cfg,
		bootstrap.WithLogger(logger),
		bootstrap.WithObserver(pipelineMetrics),
		bootstrap.WithQueueLagObserver(func(lag time.Duration) {
			workerMetrics.ObserveQueueLag(service, lag)
		}),
	)
	if err != nil {
		logger.Error("bootstrap_error", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux(workerMetrics.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_error", "error", err.Error())
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", app.Queue.Subject())
	err = app.Queue.SubscribeExtractRequested(ctx, func(handlerCtx context.Context, diagramID string) error {
		workerMetrics.StartRequest()
		start := time.Now()
		// The use case applies the vision timeout; this bounds storage and
		// persistence around it.
		extractCtx, cancel := context.WithTimeout(handlerCtx, cfg.VisionTimeout()+time.Minute)
		defer cancel()

		_, err := app.ExtractUC.ExtractStored(extractCtx, diagramID)
		workerMetrics.FinishRequest(service, time.Since(start), err)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_error", "error", err.Error())
		os.Exit(1)
	}
}

func metricsMux(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
