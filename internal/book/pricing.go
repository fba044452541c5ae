package book

import (
	"github.com/shopspring/decimal"

	"github.com/coachpo/swapgate/errs"
)

// PriceVolume computes the volume-weighted price for filling requested volume
// against one side of the snapshot.
//
// Levels are walked in the snapshot's stored priority order, partially
// consuming the last level touched. All arithmetic is decimal-exact; the
// single division happens once over the full requested volume, so per-level
// contributions sum to a full-volume average. When cumulative depth cannot
// cover the request the walk fails with an under-liquidity error and no
// partial price is surfaced.
func PriceVolume(snap Snapshot, side Side, requested decimal.Decimal) (decimal.Decimal, error) {
	if requested.Sign() <= 0 {
		return decimal.Decimal{}, errs.New(errs.CodeInvalid,
			errs.WithMessage("requested volume must be positive"),
			errs.WithContext("volume", requested.String()),
		)
	}

	filled := decimal.Zero
	notional := decimal.Zero
	for _, level := range snap.Levels(side) {
		available := level.Available()
		remaining := requested.Sub(filled)
		take := available
		if remaining.LessThan(available) {
			take = remaining
		}
		notional = notional.Add(level.Price.Mul(take))
		filled = filled.Add(take)
		if !filled.LessThan(requested) {
			break
		}
	}

	if filled.LessThan(requested) {
		return decimal.Decimal{}, errs.UnderLiquidity(snap.Pair, string(side), requested.String())
	}
	return notional.Div(requested), nil
}
