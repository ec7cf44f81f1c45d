package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
)

const (
	defaultVisionTimeout = 120 * time.Second
	statusWriteTimeout   = 10 * time.Second
)

type ExtractAssetsUseCase struct {
	diagrams      ports.DiagramRepository
	storage       ports.ObjectStorage
	extractor     ports.AssetExtractor
	observer      ports.PipelineObserver
	logger        *slog.Logger
	visionTimeout time.Duration
	now           func() time.Time
}

type ExtractOption func(*ExtractAssetsUseCase)

func WithExtractObserver(observer ports.PipelineObserver) ExtractOption {
	return func(uc *ExtractAssetsUseCase) { uc.observer = observer }
}

func WithExtractLogger(logger *slog.Logger) ExtractOption {
	return func(uc *ExtractAssetsUseCase) { uc.logger = logger }
}

func WithVisionTimeout(timeout time.Duration) ExtractOption {
	return func(uc *ExtractAssetsUseCase) {
		if timeout > 0 {
			uc.visionTimeout = timeout
		}
	}
}

func NewExtractAssetsUseCase(
	diagrams ports.DiagramRepository,
	storage ports.ObjectStorage,
	extractor ports.AssetExtractor,
	opts ...ExtractOption,
) *ExtractAssetsUseCase {
	uc := &ExtractAssetsUseCase{
		diagrams:      diagrams,
		storage:       storage,
		extractor:     extractor,
		logger:        slog.Default(),
		visionTimeout: defaultVisionTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Extract runs the model over the supplied document and records the result
// against the diagram. Every failure after the diagram is marked processing
// leaves it in status error.
func (uc *ExtractAssetsUseCase) Extract(ctx context.Context, req domain.ExtractRequest) (*domain.ExtractResult, error) {
	started := time.Now()
	result, err := uc.extract(ctx, req)
	if uc.observer != nil {
		assets := 0
		if result != nil {
			assets = result.Inserted
		}
		uc.observer.ObserveExtraction(extractionOutcome(err), assets, time.Since(started))
	}
	return result, err
}

// ExtractStored loads the uploaded blob and extracts it. It is the worker
// entry point. A blob that cannot be loaded marks the diagram error.
func (uc *ExtractAssetsUseCase) ExtractStored(ctx context.Context, diagramID string) (*domain.ExtractResult, error) {
	diagram, err := uc.diagrams.GetByID(ctx, diagramID)
	if err != nil {
		return nil, fmt.Errorf("fetch diagram by id: %w", err)
	}
	if diagram.Status.IsTerminal() {
		return uc.Extract(ctx, domain.ExtractRequest{DiagramID: diagram.ID})
	}

	data, err := uc.loadBlob(ctx, diagram.StoragePath)
	if err != nil {
		err = uc.fail(ctx, diagram.ID, err)
		if uc.observer != nil {
			uc.observer.ObserveExtraction(extractionOutcome(err), 0, 0)
		}
		return nil, err
	}
	return uc.Extract(ctx, domain.ExtractRequest{
		DiagramID: diagram.ID,
		Document: domain.DocumentPayload{
			Base64:   base64.StdEncoding.EncodeToString(data),
			MimeType: diagram.MimeType,
		},
	})
}

func (uc *ExtractAssetsUseCase) loadBlob(ctx context.Context, key string) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open stored diagram: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read stored diagram: %w", err)
	}
	return data, nil
}

func (uc *ExtractAssetsUseCase) extract(ctx context.Context, req domain.ExtractRequest) (*domain.ExtractResult, error) {
	diagramID := strings.TrimSpace(req.DiagramID)
	if diagramID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract assets", errors.New("diagram id is required"))
	}

	diagram, err := uc.diagrams.GetByID(ctx, diagramID)
	if err != nil {
		return nil, fmt.Errorf("fetch diagram by id: %w", err)
	}
	if diagram.Status.IsTerminal() {
		uc.logger.Warn("extraction_rejected",
			"diagram_id", diagramID,
			"status", string(diagram.Status),
		)
		return nil, domain.WrapError(domain.ErrInvalidTransition, "extract assets",
			fmt.Errorf("diagram %s is already %s", diagramID, diagram.Status))
	}

	if err := uc.diagrams.Transition(ctx, diagramID, domain.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("set status=processing: %w", err)
	}

	doc := req.Document
	if strings.TrimSpace(doc.MimeType) == "" {
		doc.MimeType = diagram.MimeType
	}

	outcome, err := uc.runExtractor(ctx, doc)
	if err != nil {
		return nil, uc.fail(ctx, diagramID, err)
	}
	if outcome.Dropped > 0 {
		uc.logger.Warn("extraction_assets_dropped", "diagram_id", diagramID, "dropped", outcome.Dropped)
	}

	result := &domain.ExtractResult{
		DiagramID: diagramID,
		Assets:    outcome.Assets,
		Dropped:   outcome.Dropped,
	}
	if result.Assets == nil {
		result.Assets = []domain.ExtractedAsset{}
	}

	if len(outcome.Assets) == 0 {
		if err := uc.diagrams.Transition(ctx, diagramID, domain.StatusCompleted, ""); err != nil {
			return nil, uc.fail(ctx, diagramID, persistenceError("set status=completed", err))
		}
		uc.logger.Info("extraction_completed", "diagram_id", diagramID, "inserted", 0)
		return result, nil
	}

	records := uc.buildAssets(diagramID, outcome.Assets)
	if err := uc.diagrams.CompleteWithAssets(ctx, diagramID, records); err != nil {
		return nil, uc.fail(ctx, diagramID, persistenceError("insert assets", err))
	}
	result.Inserted = len(records)
	uc.logger.Info("extraction_completed", "diagram_id", diagramID, "inserted", result.Inserted)
	return result, nil
}

func (uc *ExtractAssetsUseCase) runExtractor(ctx context.Context, doc domain.DocumentPayload) (ports.ExtractionOutcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.visionTimeout)
	defer cancel()

	outcome, err := uc.extractor.Extract(callCtx, doc)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrTemporary) {
			return ports.ExtractionOutcome{}, domain.WrapError(domain.ErrTemporary, "vision call timed out", err)
		}
		return ports.ExtractionOutcome{}, err
	}
	return outcome, nil
}

func (uc *ExtractAssetsUseCase) buildAssets(diagramID string, extracted []domain.ExtractedAsset) []domain.Asset {
	now := uc.now()
	records := make([]domain.Asset, 0, len(extracted))
	for _, item := range extracted {
		records = append(records, domain.Asset{
			ID:          uuid.NewString(),
			DiagramID:   diagramID,
			Tag:         item.Tag,
			Type:        item.Type,
			Coordinates: item.Coordinates,
			Verified:    false,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return records
}

// fail records the failure on the diagram and returns the original error.
func (uc *ExtractAssetsUseCase) fail(ctx context.Context, diagramID string, cause error) error {
	uc.logger.Error("extraction_failed",
		"diagram_id", diagramID,
		"kind", domain.KindName(cause),
		"error", cause.Error(),
	)
	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	if err := uc.diagrams.Transition(statusCtx, diagramID, domain.StatusError, cause.Error()); err != nil {
		return fmt.Errorf("%w; mark failed status: %v", cause, err)
	}
	return cause
}

// persistenceError leaves lifecycle conflicts as they are so callers see
// InvalidTransition rather than a generic persistence failure.
func persistenceError(op string, err error) error {
	if domain.IsKind(err, domain.ErrPersistence) || domain.IsKind(err, domain.ErrInvalidTransition) {
		return err
	}
	return domain.WrapError(domain.ErrPersistence, op, err)
}

func extractionOutcome(err error) string {
	if err == nil {
		return "completed"
	}
	return domain.KindName(err)
}
