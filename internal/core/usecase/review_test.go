package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
)

func reviewFixture() (*diagramRepoFake, *ReviewUseCase) {
	repo := newDiagramRepoFake()
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	repo.seed(domain.Diagram{ID: "d-1", UserID: "alice", Status: domain.StatusCompleted, CreatedAt: base})
	repo.seed(domain.Diagram{ID: "d-2", UserID: "alice", Status: domain.StatusPending, CreatedAt: base.Add(time.Hour)})
	repo.seed(domain.Diagram{ID: "d-3", UserID: domain.AnonymousOwner, Status: domain.StatusPending, CreatedAt: base})
	repo.assets["d-1"] = []domain.Asset{
		{ID: "a-2", DiagramID: "d-1", Tag: "V-1", CreatedAt: base.Add(time.Minute)},
		{ID: "a-1", DiagramID: "d-1", Tag: "P-1", CreatedAt: base},
	}
	return repo, NewReviewUseCase(repo, &assetRepoFake{repo: repo})
}

func TestReviewListDiagramsByOwner(t *testing.T) {
	_, uc := reviewFixture()

	diagrams, err := uc.ListDiagrams(context.Background(), "alice", 0)
	if err != nil {
		t.Fatalf("ListDiagrams() error = %v", err)
	}
	if len(diagrams) != 2 || diagrams[0].ID != "d-2" {
		t.Fatalf("expected newest alice diagram first, got %+v", diagrams)
	}

	anonymous, err := uc.ListDiagrams(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("ListDiagrams() error = %v", err)
	}
	if len(anonymous) != 1 || anonymous[0].ID != "d-3" {
		t.Fatalf("expected anonymous diagrams, got %+v", anonymous)
	}
}

func TestReviewListAssetsOrderedByCreation(t *testing.T) {
	_, uc := reviewFixture()

	assets, err := uc.ListAssets(context.Background(), "d-1")
	if err != nil {
		t.Fatalf("ListAssets() error = %v", err)
	}
	if len(assets) != 2 || assets[0].ID != "a-1" || assets[1].ID != "a-2" {
		t.Fatalf("unexpected order %+v", assets)
	}

	if _, err := uc.ListAssets(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDiagramNotFound) {
		t.Fatalf("expected ErrDiagramNotFound, got %v", err)
	}
}

func TestReviewSetAssetVerified(t *testing.T) {
	repo, uc := reviewFixture()

	asset, err := uc.SetAssetVerified(context.Background(), "a-1", true)
	if err != nil {
		t.Fatalf("SetAssetVerified() error = %v", err)
	}
	if !asset.Verified {
		t.Fatalf("expected verified asset")
	}
	if !repo.assets["d-1"][1].Verified {
		t.Fatalf("expected stored flag to change")
	}
	if _, err := uc.SetAssetVerified(context.Background(), "nope", true); !domain.IsKind(err, domain.ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
	if _, err := uc.SetAssetVerified(context.Background(), "", true); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
