package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with the same dedup and prune semantics
// as PostgresStore. It backs the processor and contract tests.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	entries map[string][]Entry // user_id -> entries, append order
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		entries: make(map[string][]Entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Append(ctx context.Context, userID, statusText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[userID]
	if len(list) > 0 && list[len(list)-1].StatusText == statusText {
		return nil
	}

	s.entries[userID] = append(list, Entry{
		ID:         s.nextID,
		UserID:     userID,
		StatusText: statusText,
		CreatedAt:  s.now().UTC(),
	})
	s.nextID++
	return nil
}

func (s *MemoryStore) Prune(ctx context.Context, userID string, limit, truncateAfterDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[userID]
	if len(list) == 0 {
		return nil
	}

	// most recent `limit` entries survive the count axis
	byRecency := make([]Entry, len(list))
	copy(byRecency, list)
	sort.Slice(byRecency, func(i, j int) bool {
		if byRecency[i].CreatedAt.Equal(byRecency[j].CreatedAt) {
			return byRecency[i].ID > byRecency[j].ID
		}
		return byRecency[i].CreatedAt.After(byRecency[j].CreatedAt)
	})
	withinCount := make(map[int64]bool, limit)
	for i, e := range byRecency {
		if i >= limit {
			break
		}
		withinCount[e.ID] = true
	}

	var cutoff time.Time
	if truncateAfterDays > 0 {
		cutoff = s.now().UTC().AddDate(0, 0, -truncateAfterDays)
	}

	kept := list[:0]
	for _, e := range list {
		deleteByCount := !withinCount[e.ID]
		deleteByAge := truncateAfterDays > 0 && !e.CreatedAt.After(cutoff)
		if deleteByCount || deleteByAge {
			continue
		}
		kept = append(kept, e)
	}
	s.entries[userID] = kept
	return nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[userID]
	out := make([]Entry, len(list))
	copy(out, list)
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetClock overrides the store's clock; tests use it to age entries.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
