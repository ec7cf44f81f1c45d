package usecase

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
)

type BatchState string

const (
	BatchUploading  BatchState = "uploading"
	BatchExtracting BatchState = "extracting"
	BatchCompleted  BatchState = "completed"
	BatchError      BatchState = "error"
)

const defaultBatchConcurrency = 4

// BatchItem is one file of a batch. Open is called once, inside the
// pipeline that handles the item.
type BatchItem struct {
	Filename string
	MimeType string
	Open     func() (io.ReadCloser, error)
}

type BatchStatus struct {
	ID        string     `json:"id"`
	Filename  string     `json:"filename"`
	State     BatchState `json:"state"`
	Message   string     `json:"message,omitempty"`
	DiagramID string     `json:"diagram_id,omitempty"`
	Inserted  int        `json:"inserted"`
}

// BatchProcessor runs upload then extraction for many files at once. Each
// file is an independent pipeline; a failure is recorded on its own status
// entry and never stops its siblings.
type BatchProcessor struct {
	ingestor    ports.DiagramIngestor
	extractor   ports.AssetExtractionService
	concurrency int
	onUpdate    func(BatchStatus)
}

type BatchOption func(*BatchProcessor)

func WithBatchConcurrency(n int) BatchOption {
	return func(p *BatchProcessor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithBatchUpdates registers a callback invoked after every state change.
// Calls are serialized.
func WithBatchUpdates(fn func(BatchStatus)) BatchOption {
	return func(p *BatchProcessor) { p.onUpdate = fn }
}

func NewBatchProcessor(ingestor ports.DiagramIngestor, extractor ports.AssetExtractionService, opts ...BatchOption) *BatchProcessor {
	p := &BatchProcessor{
		ingestor:    ingestor,
		extractor:   extractor,
		concurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process returns one status per item, in input order.
func (p *BatchProcessor) Process(ctx context.Context, owner string, items []BatchItem) []BatchStatus {
	tracker := newBatchTracker(items, p.onUpdate)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.concurrency)
	for i, item := range items {
		group.Go(func() error {
			p.run(groupCtx, tracker, i, owner, item)
			return nil
		})
	}
	_ = group.Wait()
	return tracker.snapshot()
}

func (p *BatchProcessor) run(ctx context.Context, tracker *batchTracker, index int, owner string, item BatchItem) {
	body, err := item.Open()
	if err != nil {
		tracker.fail(index, domain.WrapError(domain.ErrInvalidInput, "open batch file", err))
		return
	}
	defer body.Close()

	diagram, err := p.ingestor.Upload(ctx, domain.UploadRequest{
		Filename: item.Filename,
		MimeType: item.MimeType,
		OwnerRef: owner,
		Body:     body,
	})
	if err != nil {
		tracker.fail(index, err)
		return
	}
	tracker.update(index, func(s *BatchStatus) {
		s.State = BatchExtracting
		s.DiagramID = diagram.ID
	})

	result, err := p.extractor.ExtractStored(ctx, diagram.ID)
	if err != nil {
		tracker.fail(index, err)
		return
	}
	tracker.update(index, func(s *BatchStatus) {
		s.State = BatchCompleted
		s.Inserted = result.Inserted
	})
}

type batchTracker struct {
	mu       sync.Mutex
	statuses []BatchStatus
	onUpdate func(BatchStatus)
}

func newBatchTracker(items []BatchItem, onUpdate func(BatchStatus)) *batchTracker {
	statuses := make([]BatchStatus, len(items))
	for i, item := range items {
		statuses[i] = BatchStatus{
			ID:       uuid.NewString(),
			Filename: item.Filename,
			State:    BatchUploading,
		}
	}
	return &batchTracker{statuses: statuses, onUpdate: onUpdate}
}

func (t *batchTracker) update(index int, fn func(*BatchStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.statuses[index])
	if t.onUpdate != nil {
		t.onUpdate(t.statuses[index])
	}
}

func (t *batchTracker) fail(index int, err error) {
	t.update(index, func(s *BatchStatus) {
		s.State = BatchError
		s.Message = domain.KindName(err) + ": " + err.Error()
	})
}

func (t *batchTracker) snapshot() []BatchStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]BatchStatus, len(t.statuses))
	copy(out, t.statuses)
	return out
}
