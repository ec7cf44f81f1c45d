package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
)

const assetColumns = `id, diagram_id, tag, type, coordinates, verified, created_at, updated_at`

type AssetRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *AssetRepository) ListByDiagram(ctx context.Context, diagramID string) ([]domain.Asset, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+assetColumns+`
FROM assets
WHERE diagram_id = $1
ORDER BY created_at ASC, id ASC
`, diagramID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Asset, 0)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return out, nil
}

func (r *AssetRepository) SetVerified(ctx context.Context, assetID string, verified bool) (*domain.Asset, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE assets
SET verified = $2, updated_at = $3
WHERE id = $1
RETURNING `+assetColumns+`
`, assetID, verified, r.now())

	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrAssetNotFound, "set asset verified", fmt.Errorf("id=%s", assetID))
		}
		return nil, fmt.Errorf("update asset verified: %w", err)
	}
	return &asset, nil
}

func scanAsset(row rowScanner) (domain.Asset, error) {
	var a domain.Asset
	err := row.Scan(
		&a.ID,
		&a.DiagramID,
		&a.Tag,
		&a.Type,
		&a.Coordinates,
		&a.Verified,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Asset{}, err
	}
	return a, nil
}
