package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/overlay"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
)

// OverlayUseCase builds marker scenes for the review workbench and paints
// them onto the stored raster when a PNG is requested.
type OverlayUseCase struct {
	reader     *ReviewUseCase
	storage    ports.ObjectStorage
	rasterizer ports.SceneRasterizer
	exporter   ports.AssetExporter
}

// NewOverlayUseCase accepts a nil rasterizer or exporter; the operations
// that need them then report ErrUnsupportedMediaType.
func NewOverlayUseCase(
	reader *ReviewUseCase,
	storage ports.ObjectStorage,
	rasterizer ports.SceneRasterizer,
	exporter ports.AssetExporter,
) *OverlayUseCase {
	return &OverlayUseCase{
		reader:     reader,
		storage:    storage,
		rasterizer: rasterizer,
		exporter:   exporter,
	}
}

func (uc *OverlayUseCase) Scene(ctx context.Context, diagramID, selectedAssetID string, zoom float64) (*overlay.Scene, error) {
	diagram, assets, err := uc.load(ctx, diagramID)
	if err != nil {
		return nil, err
	}
	scene := overlay.Render(surfaceOf(diagram), assets, selectedAssetID, zoom, uc.measurer())
	return &scene, nil
}

func (uc *OverlayUseCase) RenderPNG(ctx context.Context, diagramID, selectedAssetID string, zoom float64) ([]byte, error) {
	diagram, assets, err := uc.load(ctx, diagramID)
	if err != nil {
		return nil, err
	}
	if diagram.IsPDF() {
		return nil, domain.WrapError(domain.ErrUnsupportedMediaType, "render overlay",
			errors.New("pdf diagrams are shown in an embedded viewer"))
	}
	if uc.rasterizer == nil {
		return nil, domain.WrapError(domain.ErrUnsupportedMediaType, "render overlay", errors.New("raster rendering is disabled"))
	}

	base, err := uc.decode(ctx, diagram)
	if err != nil {
		return nil, err
	}
	bounds := base.Bounds()
	surface := overlay.Surface{Width: bounds.Dx(), Height: bounds.Dy(), MimeType: diagram.MimeType}
	scene := overlay.Render(surface, assets, selectedAssetID, zoom, uc.rasterizer.Measurer())

	out, err := uc.rasterizer.Draw(base, scene)
	if err != nil {
		return nil, fmt.Errorf("draw overlay: %w", err)
	}
	return out, nil
}

// ExportAssets renders the asset register of a diagram and returns it with
// its content type.
func (uc *OverlayUseCase) ExportAssets(ctx context.Context, diagramID string) ([]byte, string, error) {
	if uc.exporter == nil {
		return nil, "", domain.WrapError(domain.ErrUnsupportedMediaType, "export assets", errors.New("export is disabled"))
	}
	diagram, assets, err := uc.load(ctx, diagramID)
	if err != nil {
		return nil, "", err
	}
	data, err := uc.exporter.Export(diagram, assets)
	if err != nil {
		return nil, "", fmt.Errorf("export assets: %w", err)
	}
	return data, uc.exporter.ContentType(), nil
}

func (uc *OverlayUseCase) load(ctx context.Context, diagramID string) (*domain.Diagram, []domain.Asset, error) {
	diagram, err := uc.reader.GetDiagram(ctx, diagramID)
	if err != nil {
		return nil, nil, err
	}
	assets, err := uc.reader.assets.ListByDiagram(ctx, diagram.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list assets: %w", err)
	}
	return diagram, assets, nil
}

func (uc *OverlayUseCase) decode(ctx context.Context, diagram *domain.Diagram) (image.Image, error) {
	reader, err := uc.storage.Open(ctx, diagram.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored diagram: %w", err)
	}
	defer reader.Close()

	img, err := uc.rasterizer.Decode(reader)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode stored diagram", err)
	}
	return img, nil
}

func (uc *OverlayUseCase) measurer() overlay.TextMeasurer {
	if uc.rasterizer != nil {
		return uc.rasterizer.Measurer()
	}
	return overlay.DefaultMeasurer
}

func surfaceOf(diagram *domain.Diagram) overlay.Surface {
	return overlay.Surface{Width: diagram.Width, Height: diagram.Height, MimeType: diagram.MimeType}
}
