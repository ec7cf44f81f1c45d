package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
)

func newDiagram(id string, createdAt time.Time) *domain.Diagram {
	return &domain.Diagram{ID: id, UserID: domain.AnonymousOwner, Status: domain.StatusPending, CreatedAt: createdAt}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore(0)
	if err := store.Create(ctx, newDiagram("d-1", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.Transition(ctx, "d-1", domain.StatusProcessing, ""); err != nil {
		t.Fatalf("Transition(processing) error = %v", err)
	}
	if err := store.Transition(ctx, "d-1", domain.StatusProcessing, ""); err != nil {
		t.Fatalf("repeated Transition(processing) must be a no-op, got %v", err)
	}

	base := time.Now().UTC()
	assets := []domain.Asset{
		{ID: "a-2", DiagramID: "d-1", Tag: "V-1", Coordinates: domain.Coordinates{X: 0.2, Y: 0.4}, CreatedAt: base.Add(time.Second)},
		{ID: "a-1", DiagramID: "d-1", Tag: "P-1", CreatedAt: base},
	}
	if err := store.CompleteWithAssets(ctx, "d-1", assets); err != nil {
		t.Fatalf("CompleteWithAssets() error = %v", err)
	}

	d, _ := store.GetByID(ctx, "d-1")
	if d.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", d.Status)
	}
	if err := store.Transition(ctx, "d-1", domain.StatusError, "late"); !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := store.CompleteWithAssets(ctx, "d-1", assets); !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected second completion to be rejected, got %v", err)
	}

	listed, _ := store.ListByDiagram(ctx, "d-1")
	if len(listed) != 2 || listed[0].ID != "a-1" {
		t.Fatalf("expected assets oldest first, got %+v", listed)
	}
	if listed[1].Coordinates != (domain.Coordinates{X: 0.2, Y: 0.4}) {
		t.Fatalf("coordinates changed: %+v", listed[1].Coordinates)
	}

	updated, err := store.SetVerified(ctx, "a-1", true)
	if err != nil || !updated.Verified {
		t.Fatalf("SetVerified() = %+v, %v", updated, err)
	}
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewStore(0)
	if _, err := store.GetByID(ctx, "x"); !domain.IsKind(err, domain.ErrDiagramNotFound) {
		t.Fatalf("expected ErrDiagramNotFound, got %v", err)
	}
	if err := store.Transition(ctx, "x", domain.StatusError, ""); !domain.IsKind(err, domain.ErrDiagramNotFound) {
		t.Fatalf("expected ErrDiagramNotFound, got %v", err)
	}
	if _, err := store.SetVerified(ctx, "x", true); !domain.IsKind(err, domain.ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestStoreEvictsOldestDiagrams(t *testing.T) {
	ctx := context.Background()
	store := NewStore(2)
	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		if err := store.Create(ctx, newDiagram(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
	if _, err := store.GetByID(ctx, "old"); err == nil {
		t.Fatalf("expected oldest diagram to be evicted")
	}
	listed, _ := store.ListByOwner(ctx, domain.AnonymousOwner, 10)
	if len(listed) != 2 || listed[0].ID != "new" {
		t.Fatalf("unexpected listing %+v", listed)
	}
}
