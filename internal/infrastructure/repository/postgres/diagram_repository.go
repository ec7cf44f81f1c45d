package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
)

const diagramColumns = `id, user_id, filename, mime_type, storage_path, public_url, status, error_message, page_count, width, height, created_at, updated_at`

type DiagramRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDiagramRepository(db *sql.DB) *DiagramRepository {
	return &DiagramRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *DiagramRepository) Create(ctx context.Context, d *domain.Diagram) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO diagrams (`+diagramColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		d.ID, d.UserID, d.Filename, d.MimeType, d.StoragePath, d.PublicURL, string(d.Status), d.Error,
		d.PageCount, d.Width, d.Height, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert diagram: %w", err)
	}
	return nil
}

func (r *DiagramRepository) GetByID(ctx context.Context, id string) (*domain.Diagram, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+diagramColumns+`
FROM diagrams
WHERE id = $1
`, id)

	d, err := scanDiagram(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDiagramNotFound, "get diagram", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan diagram: %w", err)
	}
	return &d, nil
}

func (r *DiagramRepository) ListByOwner(ctx context.Context, ownerRef string, limit int) ([]domain.Diagram, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+diagramColumns+`
FROM diagrams
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`, ownerRef, limit)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Diagram, 0, limit)
	for rows.Next() {
		d, err := scanDiagram(rows)
		if err != nil {
			return nil, fmt.Errorf("scan diagram: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagrams: %w", err)
	}
	return out, nil
}

// Transition applies the status change only when the stored status is one
// of the legal sources, so repeating a status write is harmless.
func (r *DiagramRepository) Transition(ctx context.Context, id string, status domain.DiagramStatus, errMessage string) error {
	return transition(ctx, r.db, id, status, errMessage, r.now())
}

// CompleteWithAssets marks the diagram completed and inserts the batch in
// one transaction.
func (r *DiagramRepository) CompleteWithAssets(ctx context.Context, diagramID string, assets []domain.Asset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "begin assets tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := transition(ctx, tx, diagramID, domain.StatusCompleted, "", r.now()); err != nil {
		return err
	}
	if err := insertAssets(ctx, tx, assets); err != nil {
		return domain.WrapError(domain.ErrPersistence, "insert assets", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrPersistence, "commit assets tx", err)
	}
	return nil
}

func transition(ctx context.Context, db execer, id string, status domain.DiagramStatus, errMessage string, now time.Time) error {
	if !status.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "transition diagram", fmt.Errorf("unknown status %q", status))
	}
	sources := domain.SourcesFor(status)
	if len(sources) == 0 {
		return domain.WrapError(domain.ErrInvalidTransition, "transition diagram", fmt.Errorf("no legal source for %s", status))
	}

	args := []any{id, string(status), errMessage, now}
	for _, s := range sources {
		args = append(args, string(s))
	}
	result, err := db.ExecContext(ctx, `
UPDATE diagrams
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1 AND status IN (`+placeholders(5, len(sources))+`)
`, args...)
	if err != nil {
		return fmt.Errorf("update diagram status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update diagram status rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var current string
	err = db.QueryRowContext(ctx, `SELECT status FROM diagrams WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WrapError(domain.ErrDiagramNotFound, "transition diagram", fmt.Errorf("id=%s", id))
		}
		return fmt.Errorf("read diagram status: %w", err)
	}
	if err := domain.CheckTransition(domain.DiagramStatus(current), status); err != nil {
		return err
	}
	return domain.WrapError(domain.ErrInvalidTransition, "transition diagram", fmt.Errorf("status of %s changed concurrently", id))
}

func insertAssets(ctx context.Context, tx *sql.Tx, assets []domain.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	const columns = 8
	values := make([]string, 0, len(assets))
	args := make([]any, 0, len(assets)*columns)
	for i, a := range assets {
		values = append(values, "("+placeholders(i*columns+1, columns)+")")
		args = append(args, a.ID, a.DiagramID, a.Tag, a.Type, a.Coordinates, a.Verified, a.CreatedAt, a.UpdatedAt)
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO assets (id, diagram_id, tag, type, coordinates, verified, created_at, updated_at)
VALUES `+strings.Join(values, ",\n"), args...)
	return err
}

func scanDiagram(row rowScanner) (domain.Diagram, error) {
	var d domain.Diagram
	var status string
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Filename,
		&d.MimeType,
		&d.StoragePath,
		&d.PublicURL,
		&status,
		&d.Error,
		&d.PageCount,
		&d.Width,
		&d.Height,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return domain.Diagram{}, err
	}
	d.Status = domain.DiagramStatus(status)
	return d, nil
}
