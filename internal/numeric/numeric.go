// Package numeric provides helpers for decimal conversions used across services.
package numeric

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Parse converts a decimal string into an exact decimal value.
// On failure, it returns (zero, false).
func Parse(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// FormatFixed converts d into a fixed-scale decimal string rounded toward zero.
// Formatting happens only at output boundaries; intermediate math stays exact.
func FormatFixed(d decimal.Decimal, scale int) string {
	return d.Truncate(int32(scale)).StringFixed(int32(scale))
}

// ScaleFromStep derives the effective fractional precision from a decimal "step" string.
func ScaleFromStep(step string) int {
	step = strings.TrimSpace(step)
	if step == "" {
		return 0
	}
	idx := strings.IndexByte(step, '.')
	if idx < 0 {
		return 0
	}
	frac := strings.TrimRight(step[idx+1:], "0")
	return len(frac)
}
