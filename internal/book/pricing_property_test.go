package book

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/coachpo/swapgate/errs"
)

// genAskLadder generates a strictly ascending ask ladder with positive sizes.
func genAskLadder(t *rapid.T) []Level {
	n := rapid.IntRange(1, 20).Draw(t, "numLevels")
	levels := make([]Level, 0, n)
	price := decimal.NewFromInt(rapid.Int64Range(1, 1000).Draw(t, "basePrice"))
	for i := 0; i < n; i++ {
		step := decimal.NewFromInt(rapid.Int64Range(1, 50).Draw(t, fmt.Sprintf("step-%d", i)))
		price = price.Add(step)
		size := decimal.NewFromInt(rapid.Int64Range(1, 500).Draw(t, fmt.Sprintf("size-%d", i)))
		levels = append(levels, Level{
			Price:      price,
			Size:       size,
			Liquidated: decimal.Zero,
			Multiplier: decimal.NewFromInt(1),
		})
	}
	return levels
}

func totalDepth(levels []Level) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range levels {
		sum = sum.Add(l.Available())
	}
	return sum
}

func TestProperty_PriceBoundedByConsumedLevels(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		asks := genAskLadder(t)
		snap := Snapshot{Pair: "TEST/USD", Asks: asks}

		depth := totalDepth(asks)
		volume := decimal.NewFromInt(rapid.Int64Range(1, depth.IntPart()).Draw(t, "volume"))

		price, err := PriceVolume(snap, SideBuy, volume)
		if err != nil {
			t.Fatalf("pricing failed for volume %s of depth %s: %v", volume, depth, err)
		}

		best := asks[0].Price
		if price.LessThan(best) {
			t.Fatalf("price %s below best ask %s", price, best)
		}
		// Locate the worst level the walk could have touched.
		filled := decimal.Zero
		worst := best
		for _, l := range asks {
			worst = l.Price
			filled = filled.Add(l.Available())
			if !filled.LessThan(volume) {
				break
			}
		}
		if price.GreaterThan(worst) {
			t.Fatalf("price %s above worst consumed ask %s", price, worst)
		}
	})
}

func TestProperty_SingleLevelFillPriceIsLevelPrice(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		asks := genAskLadder(t)
		snap := Snapshot{Pair: "TEST/USD", Asks: asks}

		first := asks[0].Available()
		volume := decimal.NewFromInt(rapid.Int64Range(1, first.IntPart()).Draw(t, "volume"))

		price, err := PriceVolume(snap, SideBuy, volume)
		if err != nil {
			t.Fatalf("pricing failed: %v", err)
		}
		if !price.Equal(asks[0].Price) {
			t.Fatalf("volume %s fits the best level; price = %s, want %s", volume, price, asks[0].Price)
		}
	})
}

func TestProperty_OverDepthAlwaysUnderLiquidity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		asks := genAskLadder(t)
		snap := Snapshot{Pair: "TEST/USD", Asks: asks}

		excess := decimal.NewFromInt(rapid.Int64Range(1, 1000).Draw(t, "excess"))
		volume := totalDepth(asks).Add(excess)

		_, err := PriceVolume(snap, SideBuy, volume)
		if err == nil {
			t.Fatalf("expected under-liquidity for volume %s over depth %s", volume, totalDepth(asks))
		}
		if !errs.Is(err, errs.CodeUnderLiquidity) {
			t.Fatalf("error code = %q, want under_liquidity", errs.CodeOf(err))
		}
	})
}
