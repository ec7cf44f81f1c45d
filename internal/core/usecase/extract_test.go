package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
)

func seededDiagram(repo *diagramRepoFake, storage *storageFake, status domain.DiagramStatus) domain.Diagram {
	d := domain.Diagram{
		ID:          "diagram-1",
		UserID:      domain.AnonymousOwner,
		Filename:    "unit1.pdf",
		MimeType:    domain.MimePDF,
		StoragePath: "anonymous/diagram-1_unit1.pdf",
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	repo.seed(d)
	if storage != nil {
		storage.objects[d.StoragePath] = []byte("%PDF-1.7 unit1")
	}
	return d
}

func pdfRequest(id string) domain.ExtractRequest {
	return domain.ExtractRequest{
		DiagramID: id,
		Document:  domain.DocumentPayload{Base64: "JVBERi0xLjc=", MimeType: domain.MimePDF},
	}
}

func TestExtractPersistsAssetsAndCompletes(t *testing.T) {
	repo := newDiagramRepoFake()
	seededDiagram(repo, nil, domain.StatusPending)
	extractor := &extractorFake{outcome: ports.ExtractionOutcome{Assets: twoAssets()}}
	observer := &observerFake{}
	uc := NewExtractAssetsUseCase(repo, newStorageFake(), extractor, WithExtractObserver(observer))

	result, err := uc.Extract(context.Background(), pdfRequest("diagram-1"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Inserted != 2 || len(result.Assets) != 2 {
		t.Fatalf("expected 2 inserted assets, got %+v", result)
	}
	if repo.status("diagram-1") != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", repo.status("diagram-1"))
	}
	stored := repo.assets["diagram-1"]
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored assets, got %d", len(stored))
	}
	for _, a := range stored {
		if a.Verified || a.ID == "" || a.DiagramID != "diagram-1" {
			t.Fatalf("unexpected stored asset %+v", a)
		}
	}
	if stored[0].Coordinates != (domain.Coordinates{X: 0.22, Y: 0.41}) {
		t.Fatalf("coordinates must be stored unchanged, got %+v", stored[0].Coordinates)
	}
	if len(repo.statusCalls) != 1 || repo.statusCalls[0].status != domain.StatusProcessing {
		t.Fatalf("expected a single processing transition, got %+v", repo.statusCalls)
	}
	if !extractor.deadline {
		t.Fatalf("vision call must run with a deadline")
	}
	if observer.extractions[0] != "completed" {
		t.Fatalf("unexpected observed outcome %v", observer.extractions)
	}
}

func TestExtractZeroAssetsCompletesWithoutWrites(t *testing.T) {
	repo := newDiagramRepoFake()
	seededDiagram(repo, nil, domain.StatusPending)
	uc := NewExtractAssetsUseCase(repo, newStorageFake(), &extractorFake{})

	result, err := uc.Extract(context.Background(), pdfRequest("diagram-1"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Inserted != 0 || result.Assets == nil {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if repo.completes != 0 {
		t.Fatalf("no asset writes expected")
	}
	if repo.status("diagram-1") != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", repo.status("diagram-1"))
	}
}

func TestExtractSchemaRejectionMarksError(t *testing.T) {
	repo := newDiagramRepoFake()
	seededDiagram(repo, nil, domain.StatusPending)
	schemaErr := domain.WrapError(domain.ErrSchemaValidation, "parse", errors.New("assets[1]/tag: property \"tag\" is missing"))
	uc := NewExtractAssetsUseCase(repo, newStorageFake(), &extractorFake{err: schemaErr})

	_, err := uc.Extract(context.Background(), pdfRequest("diagram-1"))
	if !domain.IsKind(err, domain.ErrSchemaValidation) {
		t.Fatalf("expected ErrSchemaValidation, got %v", err)
	}
	if repo.assetCount("diagram-1") != 0 || repo.completes != 0 {
		t.Fatalf("nothing may be persisted")
	}
	if repo.status("diagram-1") != domain.StatusError {
		t.Fatalf("expected status error, got %s", repo.status("diagram-1"))
	}
	if !strings.Contains(repo.diagrams["diagram-1"].Error, "tag") {
		t.Fatalf("expected error message on diagram, got %q", repo.diagrams["diagram-1"].Error)
	}
}

func TestExtractNetworkFailureMarksError(t *testing.T) {
	repo := newDiagramRepoFake()
	seededDiagram(repo, nil, domain.StatusPending)
	netErr := domain.WrapError(domain.ErrUnknown, "anthropic vision call", errors.New("dial tcp: connection refused"))
	observer := &observerFake{}
	uc := NewExtractAssetsUseCase(repo, newStorageFake(), &extractorFake{err: netErr}, WithExtractObserver(observer))

	_, err := uc.Extract(context.Background(), pdfRequest("diagram-1"))
	if !domain.IsKind(err, domain.ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
	if repo.status("diagram-1") != domain.StatusError {
		t.Fatalf("expected status error, got %s", repo.status("diagram-1"))
	}
	if observer.extractions[0] != "UnknownError" {
		t.Fatalf("unexpected observed outcome %v", observer.extractions)
	}
}

func TestExtractPersistenceFailureMarksError(t *testing.T) {
	repo := newDiagramRepoFake()
	repo.completeErr = errors.New("tx aborted")
	seededDiagram(repo, nil, domain.StatusPending)
	uc := NewExtractAssetsUseCase(repo, newStorageFake(), &extractorFake{outcome: ports.ExtractionOutcome{Assets: twoAssets()}})

	_, err := uc.Extract(context.Background(), pdfRequest("diagram-1"))
	if !domain.IsKind(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if repo.status("diagram-1") != domain.StatusError {
		t.Fatalf("expected status error, got %s", repo.status("diagram-1"))
	}
}

func TestExtractRejectsTerminalDiagram(t *testing.T) {
	for _, status := range []domain.DiagramStatus{domain.StatusCompleted, domain.StatusError} {
		repo := newDiagramRepoFake()
		seededDiagram(repo, nil, status)
		extractor := &extractorFake{outcome: ports.ExtractionOutcome{Assets: twoAssets()}}
		uc := NewExtractAssetsUseCase(repo, newStorageFake(), extractor)

		_, err := uc.Extract(context.Background(), pdfRequest("diagram-1"))
		if !domain.IsKind(err, domain.ErrInvalidTransition) {
			t.Fatalf("%s: expected ErrInvalidTransition, got %v", status, err)
		}
		if extractor.calls != 0 || len(repo.statusCalls) != 0 {
			t.Fatalf("%s: terminal diagram must not be touched", status)
		}
		if repo.status("diagram-1") != status {
			t.Fatalf("%s: status changed to %s", status, repo.status("diagram-1"))
		}
	}
}

func TestExtractUnknownDiagram(t *testing.T) {
	uc := NewExtractAssetsUseCase(newDiagramRepoFake(), newStorageFake(), &extractorFake{})
	_, err := uc.Extract(context.Background(), pdfRequest("missing"))
	if !domain.IsKind(err, domain.ErrDiagramNotFound) {
		t.Fatalf("expected ErrDiagramNotFound, got %v", err)
	}
	_, err = uc.Extract(context.Background(), pdfRequest("  "))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtractTimeoutIsTemporary(t *testing.T) {
	repo := newDiagramRepoFake()
	seededDiagram(repo, nil, domain.StatusPending)
	uc := NewExtractAssetsUseCase(repo, newStorageFake(), &extractorFake{err: context.DeadlineExceeded}, WithVisionTimeout(time.Second))

	_, err := uc.Extract(context.Background(), pdfRequest("diagram-1"))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if repo.status("diagram-1") != domain.StatusError {
		t.Fatalf("expected status error, got %s", repo.status("diagram-1"))
	}
}

func TestExtractStoredUsesUploadedBlob(t *testing.T) {
	repo := newDiagramRepoFake()
	storage := newStorageFake()
	seededDiagram(repo, storage, domain.StatusPending)
	extractor := &extractorFake{outcome: ports.ExtractionOutcome{Assets: twoAssets()}}
	uc := NewExtractAssetsUseCase(repo, storage, extractor)

	result, err := uc.ExtractStored(context.Background(), "diagram-1")
	if err != nil {
		t.Fatalf("ExtractStored() error = %v", err)
	}
	if result.Inserted != 2 {
		t.Fatalf("expected 2 inserted, got %d", result.Inserted)
	}
	payload := extractor.payloads[0]
	if payload.MimeType != domain.MimePDF || payload.Base64 != "JVBERi0xLjcgdW5pdDE=" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestExtractStoredMissingBlobMarksError(t *testing.T) {
	repo := newDiagramRepoFake()
	seededDiagram(repo, nil, domain.StatusPending)
	extractor := &extractorFake{}
	observer := &observerFake{}
	uc := NewExtractAssetsUseCase(repo, newStorageFake(), extractor, WithExtractObserver(observer))

	_, err := uc.ExtractStored(context.Background(), "diagram-1")
	if err == nil || !strings.Contains(err.Error(), "open stored diagram") {
		t.Fatalf("expected open error, got %v", err)
	}
	if repo.status("diagram-1") != domain.StatusError {
		t.Fatalf("expected status error, got %s", repo.status("diagram-1"))
	}
	if extractor.calls != 0 {
		t.Fatalf("extractor must not run without a blob")
	}
	if len(observer.extractions) != 1 {
		t.Fatalf("expected one observed extraction, got %v", observer.extractions)
	}
}

func TestExtractStoredRejectsTerminalDiagram(t *testing.T) {
	repo := newDiagramRepoFake()
	seededDiagram(repo, nil, domain.StatusCompleted)
	uc := NewExtractAssetsUseCase(repo, newStorageFake(), &extractorFake{})

	_, err := uc.ExtractStored(context.Background(), "diagram-1")
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if repo.status("diagram-1") != domain.StatusCompleted {
		t.Fatalf("status changed to %s", repo.status("diagram-1"))
	}
}

func TestExtractConcurrentCompletionKeepsTransitionKind(t *testing.T) {
	repo := newDiagramRepoFake()
	repo.completeErr = domain.WrapError(domain.ErrInvalidTransition, "complete diagram", errors.New("already completed"))
	seededDiagram(repo, nil, domain.StatusPending)
	uc := NewExtractAssetsUseCase(repo, newStorageFake(), &extractorFake{outcome: ports.ExtractionOutcome{Assets: twoAssets()}})

	_, err := uc.Extract(context.Background(), pdfRequest("diagram-1"))
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if domain.IsKind(err, domain.ErrPersistence) {
		t.Fatalf("transition conflict must not be reported as persistence failure: %v", err)
	}
	if got := domain.KindName(err); got != "InvalidTransition" {
		t.Fatalf("expected kind InvalidTransition, got %s", got)
	}
}

func TestExtractDefaultsMimeTypeToDiagram(t *testing.T) {
	repo := newDiagramRepoFake()
	seededDiagram(repo, nil, domain.StatusPending)
	extractor := &extractorFake{}
	uc := NewExtractAssetsUseCase(repo, newStorageFake(), extractor)

	req := pdfRequest("diagram-1")
	req.Document.MimeType = ""
	if _, err := uc.Extract(context.Background(), req); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if extractor.payloads[0].MimeType != domain.MimePDF {
		t.Fatalf("expected diagram mime type, got %q", extractor.payloads[0].MimeType)
	}
}
