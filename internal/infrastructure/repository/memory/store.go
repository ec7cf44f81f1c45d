// Package memory keeps diagrams and assets in process memory. It backs the
// CLI and local development when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
)

// Store implements both the diagram and the asset repository.
type Store struct {
	mu          sync.RWMutex
	diagrams    map[string]*domain.Diagram
	assets      map[string][]domain.Asset
	maxDiagrams int // 0 = unlimited
	now         func() time.Time
}

func NewStore(maxDiagrams int) *Store {
	if maxDiagrams < 0 {
		maxDiagrams = 0
	}
	return &Store{
		diagrams:    make(map[string]*domain.Diagram),
		assets:      make(map[string][]domain.Asset),
		maxDiagrams: maxDiagrams,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Create(_ context.Context, d *domain.Diagram) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.diagrams[d.ID]; exists {
		return fmt.Errorf("diagram already exists: id=%s", d.ID)
	}
	stored := *d
	s.diagrams[d.ID] = &stored
	s.cleanupIfNeeded()
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.Diagram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.diagrams[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDiagramNotFound, "get diagram", fmt.Errorf("id=%s", id))
	}
	out := *d
	return &out, nil
}

func (s *Store) ListByOwner(_ context.Context, ownerRef string, limit int) ([]domain.Diagram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Diagram, 0)
	for _, d := range s.diagrams {
		if d.UserID == ownerRef {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Transition(_ context.Context, id string, status domain.DiagramStatus, errMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(id, status, errMessage)
}

func (s *Store) CompleteWithAssets(_ context.Context, diagramID string, assets []domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(diagramID, domain.StatusCompleted, ""); err != nil {
		return err
	}
	s.assets[diagramID] = append(s.assets[diagramID], assets...)
	return nil
}

func (s *Store) ListByDiagram(_ context.Context, diagramID string) ([]domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.Asset{}, s.assets[diagramID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SetVerified(_ context.Context, assetID string, verified bool) (*domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, assets := range s.assets {
		for i := range assets {
			if assets[i].ID != assetID {
				continue
			}
			assets[i].Verified = verified
			assets[i].UpdatedAt = s.now()
			out := assets[i]
			return &out, nil
		}
	}
	return nil, domain.WrapError(domain.ErrAssetNotFound, "set asset verified", fmt.Errorf("id=%s", assetID))
}

// Must be called with lock held.
func (s *Store) transitionLocked(id string, status domain.DiagramStatus, errMessage string) error {
	d, ok := s.diagrams[id]
	if !ok {
		return domain.WrapError(domain.ErrDiagramNotFound, "transition diagram", fmt.Errorf("id=%s", id))
	}
	if err := domain.CheckTransition(d.Status, status); err != nil {
		return err
	}
	d.Status = status
	d.Error = errMessage
	d.UpdatedAt = s.now()
	return nil
}

// cleanupIfNeeded evicts the oldest diagrams and their assets once the
// store exceeds maxDiagrams. Must be called with lock held.
func (s *Store) cleanupIfNeeded() {
	if s.maxDiagrams <= 0 || len(s.diagrams) <= s.maxDiagrams {
		return
	}

	type entry struct {
		id        string
		createdAt time.Time
	}
	entries := make([]entry, 0, len(s.diagrams))
	for id, d := range s.diagrams {
		entries = append(entries, entry{id: id, createdAt: d.CreatedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].createdAt.Before(entries[j].createdAt)
	})

	for _, e := range entries[:len(s.diagrams)-s.maxDiagrams] {
		delete(s.diagrams, e.id)
		delete(s.assets, e.id)
	}
}
