package quote

import (
	"github.com/shopspring/decimal"

	"github.com/coachpo/swapgate/internal/book"
)

var oneHundred = decimal.NewFromInt(100)

// ApplyFee derives the price offered to the user from the raw provider price.
//
// Buys pay a markup of feePercent; sells receive a markdown. The function is
// pure and decimal-exact; fee percentages are validated at configuration load,
// not here.
func ApplyFee(providerPrice decimal.Decimal, side book.Side, feePercent decimal.Decimal) decimal.Decimal {
	if side == book.SideSell {
		return providerPrice.Mul(oneHundred.Sub(feePercent)).Div(oneHundred)
	}
	return providerPrice.Mul(oneHundred.Add(feePercent)).Div(oneHundred)
}
