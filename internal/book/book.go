// Package book models depth-of-market snapshots and prices volumes against them.
package book

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side selects which side of the order book a trade consumes.
type Side string

const (
	// SideBuy consumes ask liquidity to acquire the base asset.
	SideBuy Side = "buy"
	// SideSell consumes bid liquidity to dispose of the base asset.
	SideSell Side = "sell"
)

// ParseSide normalizes a side string into a Side value.
func ParseSide(input string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return "", fmt.Errorf("unsupported side %q", input)
	}
}

// Level is one row of order-book depth at a given price.
//
// Size*Multiplier is the nominal capacity of the level; Liquidated is the
// portion already consumed by other activity.
type Level struct {
	Price      decimal.Decimal
	Size       decimal.Decimal
	Liquidated decimal.Decimal
	Multiplier decimal.Decimal
}

// Available reports the remaining tradable capacity of the level.
func (l Level) Available() decimal.Decimal {
	return l.Size.Mul(l.Multiplier).Sub(l.Liquidated)
}

// Snapshot is an immutable point-in-time view of both sides of an order book.
//
// Asks are stored ascending and bids descending by price; the stored order is
// authoritative and consumers must not re-sort.
type Snapshot struct {
	Pair       string
	Asks       []Level
	Bids       []Level
	ObservedAt time.Time
}

// Levels returns the side of the snapshot consumed by the given trade side.
func (s Snapshot) Levels(side Side) []Level {
	if side == SideSell {
		return s.Bids
	}
	return s.Asks
}
