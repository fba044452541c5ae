// Package quote implements the swap quote entity, fee policy and lifecycle.
package quote

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/swapgate/internal/book"
)

// State identifies where a quote sits in its lifecycle.
type State string

const (
	// StatePricing marks a quote being priced; never persisted.
	StatePricing State = "pricing"
	// StateOpen marks a priced quote awaiting confirmation.
	StateOpen State = "open"
	// StateConfirmed marks a quote executed on the exchange.
	StateConfirmed State = "confirmed"
	// StateConfirmFailed marks a quote whose execution the exchange rejected.
	StateConfirmFailed State = "confirm_failed"
	// StateExpired marks a quote observed past its validity window.
	StateExpired State = "expired"
)

// Quote is a priced, time-bounded offer to execute a swap at a fixed price.
//
// ProviderPrice is the raw market price and stays internal for auditing;
// OfferedPrice is the fee-adjusted price shown to the caller. The two are
// tracked separately so the fee application remains reproducible.
type Quote struct {
	ID              string
	Pair            string
	Side            book.Side
	RequestedVolume decimal.Decimal
	ProviderPrice   decimal.Decimal
	OfferedPrice    decimal.Decimal
	State           State
	CreatedAt       time.Time
	ExpiresAt       time.Time
	ExecutedAt      *time.Time
	ExecutionRef    string
}

// Confirmable reports whether the quote can still be confirmed at now.
// Confirmation at or after the expiry instant is rejected.
func (q Quote) Confirmable(now time.Time) bool {
	return q.State == StateOpen && now.Before(q.ExpiresAt)
}
