// Package history keeps the session's bounded, most-recent-first list of
// upload snapshots.
package history

import (
	"errors"
	"sync"

	"github.com/tphummel/insight_hub/internal/models"
)

// Bound is the maximum number of entries retained; older entries are
// evicted from the tail.
const Bound = 5

// ErrNotFound is returned by Select for an unknown entry id.
var ErrNotFound = errors.New("history entry not found")

// Store is a bounded upload-history list. Entries are append-and-evict only;
// existing entries are never updated or removed individually. Safe for
// concurrent use.
type Store struct {
	mu      sync.Mutex
	entries []models.UploadHistory
	limit   int
}

// NewStore returns an empty store bounded at Bound entries.
func NewStore() *Store {
	return &Store{limit: Bound}
}

// Record prepends entry and evicts the oldest entries beyond the bound.
func (s *Store) Record(entry models.UploadHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]models.UploadHistory{entry}, s.entries...)
	if len(s.entries) > s.limit {
		s.entries = s.entries[:s.limit]
	}
}

// Select returns the entry with the given id, or ErrNotFound.
func (s *Store) Select(id string) (models.UploadHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return models.UploadHistory{}, ErrNotFound
}

// List returns the entries newest-first. The returned slice is a copy.
func (s *Store) List() []models.UploadHistory {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.UploadHistory, len(s.entries))
	copy(out, s.entries)
	return out
}

// Replace swaps the whole list for entries (truncated to the bound),
// newest-first. Used to rehydrate the store from persisted snapshots.
func (s *Store) Replace(entries []models.UploadHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}
	s.entries = make([]models.UploadHistory, len(entries))
	copy(s.entries, entries)
}

// Len returns the current number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
