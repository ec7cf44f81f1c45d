package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/config"
	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/overlay"
)

type ingestFake struct {
	err  error
	last domain.UploadRequest
	body []byte
}

func (f *ingestFake) Upload(_ context.Context, req domain.UploadRequest) (*domain.Diagram, error) {
	f.last = req
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	f.body = raw
	if f.err != nil {
		return nil, f.err
	}
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	return &domain.Diagram{
		ID:          "d-1",
		UserID:      req.OwnerRef,
		Filename:    req.Filename,
		MimeType:    req.MimeType,
		StoragePath: "anonymous/d-1_" + req.Filename,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type extractFake struct {
	err    error
	last   domain.ExtractRequest
	result *domain.ExtractResult
}

func (f *extractFake) Extract(_ context.Context, req domain.ExtractRequest) (*domain.ExtractResult, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *extractFake) ExtractStored(context.Context, string) (*domain.ExtractResult, error) {
	return f.result, f.err
}

type readerFake struct {
	err       error
	diagrams  []domain.Diagram
	assets    []domain.Asset
	lastOwner string
	lastLimit int
}

func (f *readerFake) GetDiagram(_ context.Context, id string) (*domain.Diagram, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.diagrams {
		if f.diagrams[i].ID == id {
			d := f.diagrams[i]
			return &d, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDiagramNotFound, "get diagram", io.EOF)
}

func (f *readerFake) ListDiagrams(_ context.Context, owner string, limit int) ([]domain.Diagram, error) {
	f.lastOwner, f.lastLimit = owner, limit
	return f.diagrams, f.err
}

func (f *readerFake) ListAssets(_ context.Context, diagramID string) ([]domain.Asset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.assets, nil
}

type reviewerFake struct {
	err      error
	lastID   string
	verified bool
}

func (f *reviewerFake) SetAssetVerified(_ context.Context, id string, verified bool) (*domain.Asset, error) {
	f.lastID, f.verified = id, verified
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Asset{ID: id, Tag: "P-101", Type: "pump", Verified: verified}, nil
}

type overlayFake struct {
	err          error
	lastSelected string
	lastZoom     float64
}

func (f *overlayFake) Scene(_ context.Context, _ string, selected string, zoom float64) (*overlay.Scene, error) {
	f.lastSelected, f.lastZoom = selected, zoom
	if f.err != nil {
		return nil, f.err
	}
	return &overlay.Scene{Mode: overlay.ModeCanvas, Width: 100, Height: 50, Scale: zoom, Commands: []overlay.Command{}}, nil
}

func (f *overlayFake) RenderPNG(_ context.Context, _ string, selected string, zoom float64) ([]byte, error) {
	f.lastSelected, f.lastZoom = selected, zoom
	if f.err != nil {
		return nil, f.err
	}
	return []byte("\x89PNG"), nil
}

type exportFake struct {
	err error
}

func (f exportFake) ExportAssets(context.Context, string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("PK"), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
}

type testDeps struct {
	ingest   *ingestFake
	extract  *extractFake
	reader   *readerFake
	reviewer *reviewerFake
	overlays *overlayFake
	export   exportFake
}

func newTestDeps() *testDeps {
	return &testDeps{
		ingest:   &ingestFake{},
		extract:  &extractFake{result: &domain.ExtractResult{DiagramID: "d-1", Assets: []domain.ExtractedAsset{}}},
		reader:   &readerFake{},
		reviewer: &reviewerFake{},
		overlays: &overlayFake{},
	}
}

func (d *testDeps) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, Services{
		Ingestor:  d.ingest,
		Extractor: d.extract,
		Reader:    d.reader,
		Reviewer:  d.reviewer,
		Overlays:  d.overlays,
		Exporter:  d.export,
	}).Handler()
}

func defaultTestConfig() config.Config {
	return config.Config{MaxUploadMB: 1}
}
