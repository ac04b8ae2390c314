package feed

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/errandly/backend/internal/domain"
)

// OpenSet is a client-side view of the open requests, reconciled from
// pushed updates. Apply is idempotent and last-write-wins by request id,
// so replayed or reordered pushes converge to the same set.
type OpenSet struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]domain.Request
}

// NewOpenSet returns an empty OpenSet.
func NewOpenSet() *OpenSet {
	return &OpenSet{requests: make(map[uuid.UUID]domain.Request)}
}

// Replace swaps the whole set for a fresh snapshot (e.g. the initial
// list fetch before updates start flowing). Non-open requests in the
// snapshot are ignored.
func (s *OpenSet) Replace(requests []domain.Request) {
	next := make(map[uuid.UUID]domain.Request, len(requests))
	for _, r := range requests {
		if r.Status() == domain.StatusOpen {
			next[r.ID] = r
		}
	}

	s.mu.Lock()
	s.requests = next
	s.mu.Unlock()
}

// Apply folds one pushed update into the set. The update's snapshot
// decides membership: an open request is upserted, anything else is
// removed. Applying the same update twice is a no-op.
func (s *OpenSet) Apply(update Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.Request.Status() == domain.StatusOpen {
		s.requests[update.Request.ID] = update.Request
		return
	}
	delete(s.requests, update.Request.ID)
}

// Snapshot returns the open requests ordered newest first.
func (s *OpenSet) Snapshot() []domain.Request {
	s.mu.RLock()
	out := make([]domain.Request, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len reports the current number of open requests.
func (s *OpenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}
