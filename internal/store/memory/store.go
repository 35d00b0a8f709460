// Package memory is an in-process posting store used for tests and
// single-node runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"employability-workers/internal/models"
)

type Store struct {
	mu      sync.RWMutex
	seen    map[string]struct{}
	records []models.CanonicalRecord
}

func New() *Store {
	return &Store{seen: make(map[string]struct{})}
}

func (s *Store) Exists(_ context.Context, detailURL string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[detailURL]
	return ok, nil
}

// InsertPair stores both records unless the positive's detail url is
// already present.
func (s *Store) InsertPair(_ context.Context, positive, negative models.CanonicalRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[positive.DetailURL]; ok {
		return false, nil
	}
	s.seen[positive.DetailURL] = struct{}{}
	s.records = append(s.records, positive.Clone(), negative.Clone())
	return true, nil
}

// All returns records ordered by detail url, positive first.
func (s *Store) All(_ context.Context) ([]models.CanonicalRecord, error) {
	s.mu.RLock()
	out := make([]models.CanonicalRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DetailURL != out[j].DetailURL {
			return out[i].DetailURL < out[j].DetailURL
		}
		return out[i].Employable && !out[j].Employable
	})
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }
