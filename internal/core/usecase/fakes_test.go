package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/overlay"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
)

type statusCall struct {
	status domain.DiagramStatus
	errMsg string
}

type diagramRepoFake struct {
	mu          sync.Mutex
	diagrams    map[string]*domain.Diagram
	assets      map[string][]domain.Asset
	createErr   error
	completeErr error
	statusCalls []statusCall
	completes   int
}

func newDiagramRepoFake() *diagramRepoFake {
	return &diagramRepoFake{
		diagrams: map[string]*domain.Diagram{},
		assets:   map[string][]domain.Asset{},
	}
}

func (f *diagramRepoFake) seed(d domain.Diagram) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyDiagram := d
	f.diagrams[d.ID] = &copyDiagram
}

func (f *diagramRepoFake) Create(_ context.Context, d *domain.Diagram) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.seed(*d)
	return nil
}

func (f *diagramRepoFake) GetByID(_ context.Context, id string) (*domain.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.diagrams[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDiagramNotFound, "get diagram", fmt.Errorf("id=%s", id))
	}
	copyDiagram := *d
	return &copyDiagram, nil
}

func (f *diagramRepoFake) ListByOwner(_ context.Context, owner string, limit int) ([]domain.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Diagram{}
	for _, d := range f.diagrams {
		if d.UserID == owner {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *diagramRepoFake) Transition(_ context.Context, id string, status domain.DiagramStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	d, ok := f.diagrams[id]
	if !ok {
		return domain.ErrDiagramNotFound
	}
	if err := domain.CheckTransition(d.Status, status); err != nil {
		return err
	}
	d.Status = status
	d.Error = errMessage
	return nil
}

func (f *diagramRepoFake) CompleteWithAssets(_ context.Context, diagramID string, assets []domain.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes++
	if f.completeErr != nil {
		return f.completeErr
	}
	d, ok := f.diagrams[diagramID]
	if !ok {
		return domain.ErrDiagramNotFound
	}
	if err := domain.CheckTransition(d.Status, domain.StatusCompleted); err != nil {
		return err
	}
	f.assets[diagramID] = append(f.assets[diagramID], assets...)
	d.Status = domain.StatusCompleted
	return nil
}

func (f *diagramRepoFake) status(id string) domain.DiagramStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.diagrams[id].Status
}

func (f *diagramRepoFake) assetCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.assets[id])
}

// assetRepoFake reads the assets stored through diagramRepoFake.
type assetRepoFake struct {
	repo      *diagramRepoFake
	verifyErr error
}

func (f *assetRepoFake) ListByDiagram(_ context.Context, diagramID string) ([]domain.Asset, error) {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	out := append([]domain.Asset(nil), f.repo.assets[diagramID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *assetRepoFake) SetVerified(_ context.Context, assetID string, verified bool) (*domain.Asset, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	for diagramID, assets := range f.repo.assets {
		for i := range assets {
			if assets[i].ID == assetID {
				f.repo.assets[diagramID][i].Verified = verified
				updated := f.repo.assets[diagramID][i]
				return &updated, nil
			}
		}
	}
	return nil, domain.WrapError(domain.ErrAssetNotFound, "set verified", fmt.Errorf("id=%s", assetID))
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	saveErr error
	saves   int
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader, size int64, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if int64(len(raw)) != size {
		return fmt.Errorf("size mismatch: %d != %d", len(raw), size)
	}
	f.objects[key] = raw
	f.types[key] = contentType
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) PublicURL(key string) string {
	return "http://storage.local/diagrams/" + key
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishExtractRequested(_ context.Context, diagramID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, diagramID)
	return nil
}

func (f *queueFake) SubscribeExtractRequested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type extractorFake struct {
	mu       sync.Mutex
	outcome  ports.ExtractionOutcome
	err      error
	calls    int
	payloads []domain.DocumentPayload
	deadline bool
}

func (f *extractorFake) Extract(ctx context.Context, doc domain.DocumentPayload) (ports.ExtractionOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.payloads = append(f.payloads, doc)
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return ports.ExtractionOutcome{}, f.err
	}
	return f.outcome, nil
}

type inspectorFake struct {
	info domain.DocumentInfo
	err  error
}

func (f *inspectorFake) Inspect(context.Context, string, []byte) (domain.DocumentInfo, error) {
	return f.info, f.err
}

type observerFake struct {
	mu          sync.Mutex
	uploads     []string
	extractions []string
}

func (f *observerFake) ObserveUpload(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, status)
}

func (f *observerFake) ObserveExtraction(outcome string, _ int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractions = append(f.extractions, outcome)
}

type rasterizerFake struct {
	decoded image.Image
	scene   overlay.Scene
	drawn   bool
}

func (f *rasterizerFake) Decode(io.Reader) (image.Image, error) {
	return f.decoded, nil
}

func (f *rasterizerFake) Draw(_ image.Image, scene overlay.Scene) ([]byte, error) {
	f.drawn = true
	f.scene = scene
	return []byte("png"), nil
}

func (f *rasterizerFake) Measurer() overlay.TextMeasurer {
	return overlay.FixedWidthMeasurer(10)
}

type exporterFake struct {
	diagramID string
	assets    int
}

func (f *exporterFake) Export(d *domain.Diagram, assets []domain.Asset) ([]byte, error) {
	f.diagramID = d.ID
	f.assets = len(assets)
	return []byte("xlsx"), nil
}

func (f *exporterFake) ContentType() string { return "application/test" }

func twoAssets() []domain.ExtractedAsset {
	return []domain.ExtractedAsset{
		{Tag: "P-101", Type: "Pump", Coordinates: domain.Coordinates{X: 0.22, Y: 0.41}},
		{Tag: "V-201", Type: "Valve", Coordinates: domain.Coordinates{X: 0.55, Y: 0.3}},
	}
}
