// Package memory holds in-process stores for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"artion-backend/application/ports"
	"artion-backend/domain/core/entities"
	pkgerrors "artion-backend/pkg/errors"
)

// OrphanStore keeps orphaned bundles in a map
type OrphanStore struct {
	mu      sync.RWMutex
	orphans map[string]entities.OrphanedBundle
	clock   ports.Clock
}

var _ ports.OrphanStore = (*OrphanStore)(nil)

// NewOrphanStore creates an empty store
func NewOrphanStore(clock ports.Clock) *OrphanStore {
	return &OrphanStore{
		orphans: make(map[string]entities.OrphanedBundle),
		clock:   clock,
	}
}

func (s *OrphanStore) Record(ctx context.Context, orphan entities.OrphanedBundle) error {
	if orphan.BundleID == "" {
		return pkgerrors.NewValidationError("orphaned bundle requires a bundle id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orphans[orphan.BundleID]; exists {
		return nil
	}
	if orphan.Status == "" {
		orphan.Status = entities.OrphanStatusOpen
	}
	if orphan.RecordedAt.IsZero() {
		orphan.RecordedAt = s.clock.Now().UTC()
	}
	s.orphans[orphan.BundleID] = orphan
	return nil
}

func (s *OrphanStore) ListOpen(ctx context.Context) ([]entities.OrphanedBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := make([]entities.OrphanedBundle, 0, len(s.orphans))
	for _, o := range s.orphans {
		if o.Status == entities.OrphanStatusOpen {
			open = append(open, o)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].RecordedAt.Equal(open[j].RecordedAt) {
			return open[i].BundleID < open[j].BundleID
		}
		return open[i].RecordedAt.Before(open[j].RecordedAt)
	})
	return open, nil
}

func (s *OrphanStore) Resolve(ctx context.Context, bundleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orphan, ok := s.orphans[bundleID]
	if !ok {
		return pkgerrors.NewNotFoundError("orphaned bundle " + bundleID)
	}
	resolved := s.clock.Now().UTC()
	orphan.Status = entities.OrphanStatusResolved
	orphan.ResolvedAt = &resolved
	s.orphans[bundleID] = orphan
	return nil
}
