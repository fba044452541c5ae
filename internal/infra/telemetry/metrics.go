package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// QuoteMetrics instruments the quote lifecycle. A nil receiver records nothing,
// so callers can run without telemetry wired.
type QuoteMetrics struct {
	quotesPriced    metric.Int64Counter
	quotesRejected  metric.Int64Counter
	quotesConfirmed metric.Int64Counter
	confirmFailures metric.Int64Counter
	pricingDepth    metric.Int64Histogram
}

// NewQuoteMetrics registers quote lifecycle instruments on the given meter.
func NewQuoteMetrics(meter metric.Meter) (*QuoteMetrics, error) {
	priced, err := meter.Int64Counter("swapgate.quotes.priced",
		metric.WithDescription("Quotes successfully priced and opened"))
	if err != nil {
		return nil, fmt.Errorf("create priced counter: %w", err)
	}
	rejected, err := meter.Int64Counter("swapgate.quotes.rejected",
		metric.WithDescription("Pricing requests rejected for insufficient depth"))
	if err != nil {
		return nil, fmt.Errorf("create rejected counter: %w", err)
	}
	confirmed, err := meter.Int64Counter("swapgate.quotes.confirmed",
		metric.WithDescription("Quotes confirmed and executed on the venue"))
	if err != nil {
		return nil, fmt.Errorf("create confirmed counter: %w", err)
	}
	failures, err := meter.Int64Counter("swapgate.quotes.confirm_failures",
		metric.WithDescription("Confirmation attempts rejected or failed"))
	if err != nil {
		return nil, fmt.Errorf("create confirm failures counter: %w", err)
	}
	depth, err := meter.Int64Histogram("swapgate.pricing.book_depth",
		metric.WithDescription("Book levels available in the priced snapshot"))
	if err != nil {
		return nil, fmt.Errorf("create pricing depth histogram: %w", err)
	}
	return &QuoteMetrics{
		quotesPriced:    priced,
		quotesRejected:  rejected,
		quotesConfirmed: confirmed,
		confirmFailures: failures,
		pricingDepth:    depth,
	}, nil
}

// RecordPriced counts a successfully opened quote for the pair/side.
func (m *QuoteMetrics) RecordPriced(ctx context.Context, pair, side string) {
	if m == nil {
		return
	}
	m.quotesPriced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pair", pair),
		attribute.String("side", side),
	))
}

// RecordRejected counts an under-liquidity rejection for the pair/side.
func (m *QuoteMetrics) RecordRejected(ctx context.Context, pair, side string) {
	if m == nil {
		return
	}
	m.quotesRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pair", pair),
		attribute.String("side", side),
	))
}

// RecordConfirmed counts a confirmed execution for the pair.
func (m *QuoteMetrics) RecordConfirmed(ctx context.Context, pair string) {
	if m == nil {
		return
	}
	m.quotesConfirmed.Add(ctx, 1, metric.WithAttributes(attribute.String("pair", pair)))
}

// RecordConfirmFailure counts a failed confirmation attempt with its reason.
func (m *QuoteMetrics) RecordConfirmFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.confirmFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordBookDepth observes how many levels the priced side of a snapshot carried.
func (m *QuoteMetrics) RecordBookDepth(ctx context.Context, pair, side string, levels int) {
	if m == nil {
		return
	}
	m.pricingDepth.Record(ctx, int64(levels), metric.WithAttributes(
		attribute.String("pair", pair),
		attribute.String("side", side),
	))
}
