package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/config"
	"github.com/kirillkom/pid-asset-extractor/internal/core/extraction"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
	"github.com/kirillkom/pid-asset-extractor/internal/core/usecase"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/inspect"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/raster"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/repository/memory"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/resilience"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/storage/minio"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/vision"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/vision/anthropic"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/vision/gemini"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/vision/ollama"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	// Queue is nil when QUEUE_BACKEND=none.
	Queue *nats.Queue

	IngestUC  *usecase.IngestDiagramUseCase
	ExtractUC *usecase.ExtractAssetsUseCase
	ReviewUC  *usecase.ReviewUseCase
	OverlayUC *usecase.OverlayUseCase

	closers []func()
}

type Option func(*options)

type options struct {
	logger      *slog.Logger
	observer    ports.PipelineObserver
	lagObserver func(time.Duration)
	// withoutQueue skips the NATS connection for processes that never
	// publish or consume.
	withoutQueue bool
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithObserver(observer ports.PipelineObserver) Option {
	return func(o *options) { o.observer = observer }
}

func WithQueueLagObserver(fn func(time.Duration)) Option {
	return func(o *options) { o.lagObserver = fn }
}

func WithoutQueue() Option {
	return func(o *options) { o.withoutQueue = true }
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	app := &App{Config: cfg, Logger: o.logger}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(resilienceConfig(cfg))

	diagrams, assets, err := app.openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	storage, err := openStorage(ctx, cfg, executor)
	if err != nil {
		return nil, err
	}

	var queue ports.MessageQueue
	if cfg.QueueBackend == config.QueueNATS && !o.withoutQueue {
		q, err := nats.New(cfg.NATSURL, nats.Options{
			Subject:            cfg.NATSSubject,
			QueueGroup:         cfg.NATSQueueGroup,
			ResilienceExecutor: executor,
			Logger:             o.logger,
			LagObserver:        o.lagObserver,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = q
		app.closers = append(app.closers, q.Close)
		queue = q
	}

	model, err := openVisionModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	extractor := extraction.NewAdapter(
		vision.NewGuarded(model, executor),
		extraction.WithPolicy(extraction.ParsePolicy(cfg.ExtractionValidationPolicy)),
		extraction.WithMaxTokens(cfg.VisionMaxTokens),
	)

	rasterizer, err := raster.New()
	if err != nil {
		return nil, fmt.Errorf("init rasterizer: %w", err)
	}

	ingestOpts := []usecase.IngestOption{
		usecase.WithInspector(inspect.New()),
		usecase.WithIngestLogger(o.logger),
		usecase.WithMaxUploadBytes(cfg.MaxUploadBytes()),
	}
	extractOpts := []usecase.ExtractOption{
		usecase.WithExtractLogger(o.logger),
		usecase.WithVisionTimeout(cfg.VisionTimeout()),
	}
	if o.observer != nil {
		ingestOpts = append(ingestOpts, usecase.WithIngestObserver(o.observer))
		extractOpts = append(extractOpts, usecase.WithExtractObserver(o.observer))
	}

	app.IngestUC = usecase.NewIngestDiagramUseCase(diagrams, storage, queue, ingestOpts...)
	app.ExtractUC = usecase.NewExtractAssetsUseCase(diagrams, storage, extractor, extractOpts...)
	app.ReviewUC = usecase.NewReviewUseCase(diagrams, assets)
	app.OverlayUC = usecase.NewOverlayUseCase(app.ReviewUC, storage, rasterizer, xlsx.New())

	o.logger.Info("bootstrap_ready",
		"repository", cfg.RepositoryBackend,
		"storage", cfg.StorageBackend,
		"queue", cfg.QueueBackend,
		"vision_provider", model.Name(),
		"validation_policy", cfg.ExtractionValidationPolicy,
	)
	ok = true
	return app, nil
}

// NewBatchProcessor runs upload and extraction for many files with the
// configured concurrency.
func (a *App) NewBatchProcessor(onUpdate func(usecase.BatchStatus)) *usecase.BatchProcessor {
	return usecase.NewBatchProcessor(a.IngestUC, a.ExtractUC,
		usecase.WithBatchConcurrency(a.Config.BatchConcurrency),
		usecase.WithBatchUpdates(onUpdate),
	)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openRepositories(ctx context.Context, cfg config.Config) (ports.DiagramRepository, ports.AssetRepository, error) {
	if cfg.RepositoryBackend == config.RepositoryMemory {
		store := memory.NewStore(cfg.MemoryMaxDiagrams)
		return store, store, nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return postgres.NewDiagramRepository(db), postgres.NewAssetRepository(db), nil
}

func openStorage(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.ObjectStorage, error) {
	if cfg.StorageBackend == config.StorageMinIO {
		storage, err := minio.New(minio.Config{
			Endpoint:      cfg.MinIOEndpoint,
			AccessKey:     cfg.MinIOAccessKey,
			SecretKey:     cfg.MinIOSecretKey,
			Bucket:        cfg.MinIOBucket,
			UseSSL:        cfg.MinIOUseSSL,
			PublicBaseURL: cfg.StoragePublicBaseURL,
		}, executor)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		if err := storage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
		return storage, nil
	}

	storage, err := localfs.New(cfg.StoragePath, cfg.StoragePublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	return storage, nil
}

func openVisionModel(ctx context.Context, cfg config.Config) (ports.VisionModel, error) {
	switch cfg.VisionProvider {
	case config.VisionGemini:
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		return client, nil
	case config.VisionOllama:
		return ollama.New(cfg.OllamaURL, cfg.OllamaVisionModel, cfg.VisionTimeout()), nil
	default:
		if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
			return nil, fmt.Errorf("init anthropic: api key is required")
		}
		return anthropic.New(anthropic.Config{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.AnthropicBaseURL,
			Model:   cfg.AnthropicModel,
			Timeout: cfg.VisionTimeout(),
		}), nil
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	if cfg.RetryMaxAttempts > 0 {
		rc.RetryMaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryInitialBackoffMilli > 0 {
		rc.RetryInitialBackoff = time.Duration(cfg.RetryInitialBackoffMilli) * time.Millisecond
	}
	if cfg.RetryMaxBackoffMilli > 0 {
		rc.RetryMaxBackoff = time.Duration(cfg.RetryMaxBackoffMilli) * time.Millisecond
	}
	if cfg.BreakerOpenTimeoutSec > 0 {
		rc.BreakerOpenTimeout = time.Duration(cfg.BreakerOpenTimeoutSec) * time.Second
	}
	rc.BreakerEnabled = cfg.BreakerEnabled
	return rc
}
