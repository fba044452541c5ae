package book

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coachpo/swapgate/errs"
)

func level(price, size, liquidated, multiplier string) Level {
	return Level{
		Price:      decimal.RequireFromString(price),
		Size:       decimal.RequireFromString(size),
		Liquidated: decimal.RequireFromString(liquidated),
		Multiplier: decimal.RequireFromString(multiplier),
	}
}

func TestPriceVolumeSingleLevelCoversRequest(t *testing.T) {
	snap := Snapshot{
		Pair: "BTC/USD",
		Asks: []Level{level("36713.5", "15169", "0", "1")},
	}

	price, err := PriceVolume(snap, SideBuy, decimal.RequireFromString("1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("36713.5")) {
		t.Fatalf("price = %s, want 36713.5", price)
	}
}

func TestPriceVolumeWalksMultipleLevels(t *testing.T) {
	snap := Snapshot{
		Pair: "BTC/USD",
		Asks: []Level{
			level("100", "5", "0", "1"),
			level("101", "5", "0", "1"),
			level("200", "100", "0", "1"),
		},
	}

	// 5 @ 100 and 3 @ 101: (500 + 303) / 8 = 100.375. The third level is untouched.
	price, err := PriceVolume(snap, SideBuy, decimal.RequireFromString("8"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("100.375")) {
		t.Fatalf("price = %s, want 100.375", price)
	}
}

func TestPriceVolumeSellConsumesBids(t *testing.T) {
	snap := Snapshot{
		Pair: "BTC/USD",
		Asks: []Level{level("101", "10", "0", "1")},
		Bids: []Level{
			level("99", "4", "0", "1"),
			level("98", "10", "0", "1"),
		},
	}

	// 4 @ 99 and 2 @ 98: (396 + 196) / 6 = 98.666...; exact decimal check via notional.
	price, err := PriceVolume(snap, SideSell, decimal.RequireFromString("6"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := decimal.RequireFromString("592").Div(decimal.RequireFromString("6"))
	if !price.Equal(want) {
		t.Fatalf("price = %s, want %s", price, want)
	}
}

func TestPriceVolumeSubtractsLiquidatedAndAppliesMultiplier(t *testing.T) {
	snap := Snapshot{
		Pair: "BTC/USD",
		Asks: []Level{
			// capacity 2*10 - 15 = 5
			level("100", "2", "15", "10"),
			level("110", "10", "0", "1"),
		},
	}

	price, err := PriceVolume(snap, SideBuy, decimal.RequireFromString("7"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 5 @ 100 and 2 @ 110: (500 + 220) / 7
	want := decimal.RequireFromString("720").Div(decimal.RequireFromString("7"))
	if !price.Equal(want) {
		t.Fatalf("price = %s, want %s", price, want)
	}
}

func TestPriceVolumeUnderLiquidity(t *testing.T) {
	snap := Snapshot{
		Pair: "BTC/USD",
		Asks: []Level{level("36713.5", "15", "0", "1")},
	}

	_, err := PriceVolume(snap, SideBuy, decimal.RequireFromString("1000"))
	if err == nil {
		t.Fatal("expected under-liquidity error")
	}
	if !errs.Is(err, errs.CodeUnderLiquidity) {
		t.Fatalf("error code = %q, want under_liquidity: %v", errs.CodeOf(err), err)
	}
}

func TestPriceVolumeEmptyBookUnderLiquidity(t *testing.T) {
	snap := Snapshot{Pair: "BTC/USD"}
	_, err := PriceVolume(snap, SideBuy, decimal.RequireFromString("1"))
	if !errs.Is(err, errs.CodeUnderLiquidity) {
		t.Fatalf("expected under_liquidity, got %v", err)
	}
}

func TestPriceVolumeRejectsNonPositiveVolume(t *testing.T) {
	snap := Snapshot{
		Pair: "BTC/USD",
		Asks: []Level{level("100", "10", "0", "1")},
	}
	for _, volume := range []string{"0", "-1"} {
		_, err := PriceVolume(snap, SideBuy, decimal.RequireFromString(volume))
		if !errs.Is(err, errs.CodeInvalid) {
			t.Fatalf("volume %s: expected invalid_request, got %v", volume, err)
		}
	}
}

func TestParseSide(t *testing.T) {
	cases := []struct {
		input string
		want  Side
		ok    bool
	}{
		{input: "buy", want: SideBuy, ok: true},
		{input: " SELL ", want: SideSell, ok: true},
		{input: "hold", ok: false},
		{input: "", ok: false},
	}
	for _, tc := range cases {
		got, err := ParseSide(tc.input)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseSide(%q) = %q, %v; want %q", tc.input, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseSide(%q) should fail", tc.input)
		}
	}
}
