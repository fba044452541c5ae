package quote

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/coachpo/swapgate/errs"
)

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	order  []string
}

// NewMemoryStore constructs an empty in-memory quote store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{quotes: make(map[string]Quote)}
}

// Insert stores the quote and assigns it a fresh identifier.
func (s *MemoryStore) Insert(_ context.Context, q Quote) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = uuid.NewString()
	s.quotes[q.ID] = q
	s.order = append(s.order, q.ID)
	return q, nil
}

// FindByID returns the stored quote or a not_found error.
func (s *MemoryStore) FindByID(_ context.Context, id string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[id]
	if !ok {
		return Quote{}, errs.NotFound(id)
	}
	return q, nil
}

// UpdateState applies a state transition to a stored quote.
func (s *MemoryStore) UpdateState(_ context.Context, id string, update StateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok {
		return errs.NotFound(id)
	}
	q.State = update.State
	if update.ExecutedAt != nil {
		executedAt := *update.ExecutedAt
		q.ExecutedAt = &executedAt
	}
	if update.ExecutionRef != "" {
		q.ExecutionRef = update.ExecutionRef
	}
	s.quotes[id] = q
	return nil
}

// ListByState returns up to limit quotes in the given state, oldest first.
func (s *MemoryStore) ListByState(_ context.Context, state State, limit int) ([]Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Quote
	for _, id := range s.order {
		q := s.quotes[id]
		if q.State != state {
			continue
		}
		out = append(out, q)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
