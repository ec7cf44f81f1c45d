package ports

import (
	"context"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/overlay"
)

// DiagramIngestor is the inbound contract for diagram upload.
type DiagramIngestor interface {
	Upload(ctx context.Context, req domain.UploadRequest) (*domain.Diagram, error)
}

// AssetExtractionService runs extraction for an uploaded diagram.
type AssetExtractionService interface {
	Extract(ctx context.Context, req domain.ExtractRequest) (*domain.ExtractResult, error)
	ExtractStored(ctx context.Context, diagramID string) (*domain.ExtractResult, error)
}

// DiagramReader is the read model used by the review workbench.
type DiagramReader interface {
	GetDiagram(ctx context.Context, id string) (*domain.Diagram, error)
	ListDiagrams(ctx context.Context, ownerRef string, limit int) ([]domain.Diagram, error)
	ListAssets(ctx context.Context, diagramID string) ([]domain.Asset, error)
}

// AssetReviewer stores human verification decisions.
type AssetReviewer interface {
	SetAssetVerified(ctx context.Context, assetID string, verified bool) (*domain.Asset, error)
}

// OverlayService produces marker overlays for a diagram.
type OverlayService interface {
	Scene(ctx context.Context, diagramID, selectedAssetID string, zoom float64) (*overlay.Scene, error)
	RenderPNG(ctx context.Context, diagramID, selectedAssetID string, zoom float64) ([]byte, error)
}

// AssetRegisterExporter exports the assets of a diagram.
type AssetRegisterExporter interface {
	ExportAssets(ctx context.Context, diagramID string) ([]byte, string, error)
}
