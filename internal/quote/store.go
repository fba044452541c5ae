package quote

import (
	"context"
	"time"
)

// StateUpdate captures a confirmation-time state transition for a stored quote.
type StateUpdate struct {
	State        State
	ExecutedAt   *time.Time
	ExecutionRef string
}

// Store defines the persistence contract for quote records.
//
// Insert assigns the quote its identifier; identity is immutable afterwards.
// FindByID returns a not_found error for unknown identifiers.
type Store interface {
	Insert(ctx context.Context, q Quote) (Quote, error)
	FindByID(ctx context.Context, id string) (Quote, error)
	UpdateState(ctx context.Context, id string, update StateUpdate) error
	ListByState(ctx context.Context, state State, limit int) ([]Quote, error)
}
