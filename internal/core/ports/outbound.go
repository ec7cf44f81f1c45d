package ports

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/overlay"
)

// DiagramRepository persists diagram records and applies lifecycle moves.
type DiagramRepository interface {
	Create(ctx context.Context, diagram *domain.Diagram) error
	GetByID(ctx context.Context, id string) (*domain.Diagram, error)
	ListByOwner(ctx context.Context, ownerRef string, limit int) ([]domain.Diagram, error)
	// Transition moves the diagram to status only when its current status
	// allows it; it returns domain.ErrInvalidTransition otherwise.
	Transition(ctx context.Context, id string, status domain.DiagramStatus, errMessage string) error
	// CompleteWithAssets inserts the batch and marks the diagram completed
	// as one atomic write.
	CompleteWithAssets(ctx context.Context, diagramID string, assets []domain.Asset) error
}

// AssetRepository reads assets and stores review decisions.
type AssetRepository interface {
	ListByDiagram(ctx context.Context, diagramID string) ([]domain.Asset, error)
	SetVerified(ctx context.Context, assetID string, verified bool) (*domain.Asset, error)
}

// ObjectStorage stores source diagrams and issues public URLs for them.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	PublicURL(key string) string
}

// MessageQueue publishes/consumes extraction requests.
type MessageQueue interface {
	PublishExtractRequested(ctx context.Context, diagramID string) error
	SubscribeExtractRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// VisionModel sends one multimodal request and returns the raw text answer.
type VisionModel interface {
	Name() string
	Complete(ctx context.Context, req domain.VisionRequest) (string, error)
}

// AssetExtractor turns a document into validated assets.
type AssetExtractor interface {
	Extract(ctx context.Context, doc domain.DocumentPayload) (ExtractionOutcome, error)
}

type ExtractionOutcome struct {
	Assets  []domain.ExtractedAsset
	Dropped int
}

// DocumentInspector reads page count and raster dimensions.
type DocumentInspector interface {
	Inspect(ctx context.Context, mimeType string, data []byte) (domain.DocumentInfo, error)
}

// SceneRasterizer decodes diagram rasters and paints overlay scenes on them.
type SceneRasterizer interface {
	Decode(r io.Reader) (image.Image, error)
	Draw(base image.Image, scene overlay.Scene) ([]byte, error)
	Measurer() overlay.TextMeasurer
}

// AssetExporter renders an asset register for download.
type AssetExporter interface {
	Export(diagram *domain.Diagram, assets []domain.Asset) ([]byte, error)
	ContentType() string
}

// PipelineObserver receives pipeline outcomes for metrics.
type PipelineObserver interface {
	ObserveUpload(status string)
	ObserveExtraction(outcome string, assets int, duration time.Duration)
}
