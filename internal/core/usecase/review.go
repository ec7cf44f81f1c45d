package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type ReviewUseCase struct {
	diagrams ports.DiagramRepository
	assets   ports.AssetRepository
}

func NewReviewUseCase(diagrams ports.DiagramRepository, assets ports.AssetRepository) *ReviewUseCase {
	return &ReviewUseCase{diagrams: diagrams, assets: assets}
}

func (uc *ReviewUseCase) GetDiagram(ctx context.Context, id string) (*domain.Diagram, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get diagram", errors.New("diagram id is required"))
	}
	return uc.diagrams.GetByID(ctx, id)
}

func (uc *ReviewUseCase) ListDiagrams(ctx context.Context, owner string, limit int) ([]domain.Diagram, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	diagrams, err := uc.diagrams.ListByOwner(ctx, ownerRef(owner), limit)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	return diagrams, nil
}

// ListAssets returns the assets of an existing diagram, oldest first.
func (uc *ReviewUseCase) ListAssets(ctx context.Context, diagramID string) ([]domain.Asset, error) {
	if _, err := uc.GetDiagram(ctx, diagramID); err != nil {
		return nil, err
	}
	assets, err := uc.assets.ListByDiagram(ctx, strings.TrimSpace(diagramID))
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

func (uc *ReviewUseCase) SetAssetVerified(ctx context.Context, assetID string, verified bool) (*domain.Asset, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "verify asset", errors.New("asset id is required"))
	}
	return uc.assets.SetVerified(ctx, assetID, verified)
}
