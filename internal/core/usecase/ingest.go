package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
)

// DefaultMaxUploadBytes bounds a single diagram upload.
const DefaultMaxUploadBytes int64 = 50 << 20

type IngestDiagramUseCase struct {
	repo      ports.DiagramRepository
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	inspector ports.DocumentInspector
	observer  ports.PipelineObserver
	logger    *slog.Logger
	maxBytes  int64
	now       func() time.Time
}

type IngestOption func(*IngestDiagramUseCase)

func WithInspector(inspector ports.DocumentInspector) IngestOption {
	return func(uc *IngestDiagramUseCase) { uc.inspector = inspector }
}

func WithIngestObserver(observer ports.PipelineObserver) IngestOption {
	return func(uc *IngestDiagramUseCase) { uc.observer = observer }
}

func WithIngestLogger(logger *slog.Logger) IngestOption {
	return func(uc *IngestDiagramUseCase) { uc.logger = logger }
}

func WithMaxUploadBytes(n int64) IngestOption {
	return func(uc *IngestDiagramUseCase) {
		if n > 0 {
			uc.maxBytes = n
		}
	}
}

// NewIngestDiagramUseCase wires the upload pipeline. queue may be nil when
// auto extraction is not deployed.
func NewIngestDiagramUseCase(
	repo ports.DiagramRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	opts ...IngestOption,
) *IngestDiagramUseCase {
	uc := &IngestDiagramUseCase{
		repo:     repo,
		storage:  storage,
		queue:    queue,
		logger:   slog.Default(),
		maxBytes: DefaultMaxUploadBytes,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *IngestDiagramUseCase) Upload(ctx context.Context, req domain.UploadRequest) (*domain.Diagram, error) {
	diagram, err := uc.upload(ctx, req)
	if uc.observer != nil {
		uc.observer.ObserveUpload(uploadOutcome(err))
	}
	return diagram, err
}

func (uc *IngestDiagramUseCase) upload(ctx context.Context, req domain.UploadRequest) (*domain.Diagram, error) {
	mimeType, err := domain.ValidateMimeType(req.MimeType)
	if err != nil {
		return nil, err
	}
	if req.Body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload diagram", errors.New("empty body"))
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, uc.maxBytes+1))
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorageWrite, "read upload body", err)
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload diagram", errors.New("empty body"))
	}
	if int64(len(data)) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload diagram", fmt.Errorf("file exceeds %d bytes", uc.maxBytes))
	}

	owner := ownerRef(req.OwnerRef)
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s_%s", owner, id, sanitizeFilename(req.Filename))

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		return nil, domain.WrapError(domain.ErrStorageWrite, "save to object storage", err)
	}

	now := uc.now()
	diagram := &domain.Diagram{
		ID:          id,
		UserID:      owner,
		Filename:    req.Filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		PublicURL:   uc.storage.PublicURL(storageKey),
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	uc.inspect(ctx, diagram, data)

	if err := uc.repo.Create(ctx, diagram); err != nil {
		return nil, domain.WrapError(domain.ErrRecordCreation, "create diagram record", err)
	}

	uc.logger.Info("diagram_uploaded",
		"diagram_id", diagram.ID,
		"owner", owner,
		"mime_type", mimeType,
		"bytes", len(data),
	)

	if req.AutoExtract && uc.queue != nil {
		if err := uc.queue.PublishExtractRequested(ctx, diagram.ID); err != nil {
			// The record exists; extraction can still be requested explicitly.
			uc.logger.Warn("extract_request_publish_failed", "diagram_id", diagram.ID, "error", err.Error())
		}
	}
	return diagram, nil
}

func (uc *IngestDiagramUseCase) inspect(ctx context.Context, diagram *domain.Diagram, data []byte) {
	if uc.inspector == nil {
		return
	}
	info, err := uc.inspector.Inspect(ctx, diagram.MimeType, data)
	if err != nil {
		uc.logger.Warn("diagram_inspection_failed", "diagram_id", diagram.ID, "error", err.Error())
		return
	}
	diagram.PageCount = info.PageCount
	diagram.Width = info.Width
	diagram.Height = info.Height
}

func ownerRef(raw string) string {
	owner := strings.TrimSpace(raw)
	if owner == "" {
		return domain.AnonymousOwner
	}
	owner = sanitizeFilename(owner)
	if owner == "diagram.bin" || strings.Trim(owner, "._") == "" {
		return domain.AnonymousOwner
	}
	return owner
}

func uploadOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.KindName(err)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "diagram.bin"
	}
	return base
}
