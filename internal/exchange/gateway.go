// Package exchange defines the contract between the quote core and exchange venues.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/coachpo/swapgate/internal/book"
)

// Gateway supplies order-book snapshots and executes confirmed quotes.
//
// FetchOrderBook returns asks ascending and bids descending by price; the
// snapshot is fetched exactly once per pricing call and owned by that call.
// Execute places the swap at the given price and volume and returns the
// venue's execution reference; rejection errors carry the venue's message
// verbatim.
type Gateway interface {
	FetchOrderBook(ctx context.Context, pair string) (book.Snapshot, error)
	Execute(ctx context.Context, pair string, side book.Side, volume, price decimal.Decimal) (string, error)
}
