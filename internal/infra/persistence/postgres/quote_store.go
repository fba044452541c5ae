// Package postgres provides the PostgreSQL-backed quote repository.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/coachpo/swapgate/errs"
	"github.com/coachpo/swapgate/internal/book"
	"github.com/coachpo/swapgate/internal/quote"
)

// QuoteStore persists quote lifecycle records.
type QuoteStore struct {
	pool *pgxpool.Pool
}

// NewQuoteStore constructs a QuoteStore backed by the provided pool.
func NewQuoteStore(pool *pgxpool.Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

const (
	quoteInsertSQL = `
INSERT INTO quotes (
    id,
    pair,
    side,
    requested_volume,
    provider_price,
    offered_price,
    state,
    execution_ref,
    created_at,
    expires_at,
    executed_at,
    updated_at
)
VALUES (
    @id,
    @pair,
    @side,
    @requested_volume,
    @provider_price,
    @offered_price,
    @state,
    NULL,
    @created_at,
    @expires_at,
    NULL,
    NOW()
);
`

	quoteUpdateStateSQL = `
UPDATE quotes
SET state = @state,
    executed_at = COALESCE(@executed_at, executed_at),
    execution_ref = COALESCE(@execution_ref, execution_ref),
    updated_at = NOW()
WHERE id = @id;
`

	quoteSelectBase = `
SELECT
    id::text,
    pair,
    side,
    requested_volume::text,
    provider_price::text,
    offered_price::text,
    state,
    execution_ref,
    created_at,
    expires_at,
    executed_at
FROM quotes
`

	defaultQuoteLimit = 50
	maxQuoteLimit     = 500
)

func (s *QuoteStore) ensurePool() (*pgxpool.Pool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("quote store: nil pool")
	}
	return s.pool, nil
}

// Insert stores the quote and assigns it a fresh identifier.
func (s *QuoteStore) Insert(ctx context.Context, q quote.Quote) (quote.Quote, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return quote.Quote{}, err
	}
	q.ID = uuid.NewString()

	requestedVolume, err := numericFromDecimal(q.RequestedVolume)
	if err != nil {
		return quote.Quote{}, fmt.Errorf("quote store: requested volume: %w", err)
	}
	providerPrice, err := numericFromDecimal(q.ProviderPrice)
	if err != nil {
		return quote.Quote{}, fmt.Errorf("quote store: provider price: %w", err)
	}
	offeredPrice, err := numericFromDecimal(q.OfferedPrice)
	if err != nil {
		return quote.Quote{}, fmt.Errorf("quote store: offered price: %w", err)
	}

	args := pgx.NamedArgs{
		"id":               q.ID,
		"pair":             strings.TrimSpace(q.Pair),
		"side":             string(q.Side),
		"requested_volume": requestedVolume,
		"provider_price":   providerPrice,
		"offered_price":    offeredPrice,
		"state":            string(q.State),
		"created_at":       q.CreatedAt,
		"expires_at":       q.ExpiresAt,
	}
	if _, err := pool.Exec(ctx, quoteInsertSQL, args); err != nil {
		return quote.Quote{}, fmt.Errorf("quote store: insert quote: %w", err)
	}
	return q, nil
}

// FindByID returns the stored quote or a not_found error.
func (s *QuoteStore) FindByID(ctx context.Context, id string) (quote.Quote, error) {
	trimmed := strings.TrimSpace(id)
	if _, err := uuid.Parse(trimmed); err != nil {
		return quote.Quote{}, errs.NotFound(id)
	}
	pool, err := s.ensurePool()
	if err != nil {
		return quote.Quote{}, err
	}

	row := pool.QueryRow(ctx, quoteSelectBase+" WHERE id = $1", trimmed)
	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return quote.Quote{}, errs.NotFound(id)
		}
		return quote.Quote{}, fmt.Errorf("quote store: find quote: %w", err)
	}
	return q, nil
}

// UpdateState applies a state transition to a stored quote.
func (s *QuoteStore) UpdateState(ctx context.Context, id string, update quote.StateUpdate) error {
	trimmed := strings.TrimSpace(id)
	if _, err := uuid.Parse(trimmed); err != nil {
		return errs.NotFound(id)
	}
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}

	args := pgx.NamedArgs{
		"id":            trimmed,
		"state":         string(update.State),
		"executed_at":   nullableTime(update.ExecutedAt),
		"execution_ref": nullableString(update.ExecutionRef),
	}
	tag, err := pool.Exec(ctx, quoteUpdateStateSQL, args)
	if err != nil {
		return fmt.Errorf("quote store: update quote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound(id)
	}
	return nil
}

// ListByState retrieves up to limit quotes in the given state, oldest first.
func (s *QuoteStore) ListByState(ctx context.Context, state quote.State, limit int) ([]quote.Quote, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, defaultQuoteLimit, maxQuoteLimit)

	rows, err := pool.Query(ctx, quoteSelectBase+" WHERE state = $1 ORDER BY created_at ASC LIMIT $2", string(state), limit)
	if err != nil {
		return nil, fmt.Errorf("quote store: list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []quote.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("quote store: scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quote store: iterate quotes: %w", err)
	}
	return quotes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (quote.Quote, error) {
	var (
		id              string
		pair            string
		side            string
		requestedVolume string
		providerPrice   string
		offeredPrice    string
		state           string
		executionRef    sql.NullString
		createdAt       time.Time
		expiresAt       time.Time
		executedAt      pgtype.Timestamptz
	)
	if err := row.Scan(
		&id,
		&pair,
		&side,
		&requestedVolume,
		&providerPrice,
		&offeredPrice,
		&state,
		&executionRef,
		&createdAt,
		&expiresAt,
		&executedAt,
	); err != nil {
		return quote.Quote{}, err
	}

	volume, err := decimal.NewFromString(requestedVolume)
	if err != nil {
		return quote.Quote{}, fmt.Errorf("parse requested volume %q: %w", requestedVolume, err)
	}
	provider, err := decimal.NewFromString(providerPrice)
	if err != nil {
		return quote.Quote{}, fmt.Errorf("parse provider price %q: %w", providerPrice, err)
	}
	offered, err := decimal.NewFromString(offeredPrice)
	if err != nil {
		return quote.Quote{}, fmt.Errorf("parse offered price %q: %w", offeredPrice, err)
	}

	q := quote.Quote{
		ID:              id,
		Pair:            pair,
		Side:            book.Side(side),
		RequestedVolume: volume,
		ProviderPrice:   provider,
		OfferedPrice:    offered,
		State:           quote.State(state),
		CreatedAt:       createdAt,
		ExpiresAt:       expiresAt,
	}
	if executionRef.Valid {
		q.ExecutionRef = executionRef.String
	}
	if executedAt.Valid {
		executed := executedAt.Time
		q.ExecutedAt = &executed
	}
	return q, nil
}

func nullableString(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}

func nullableTime(ptr *time.Time) any {
	if ptr == nil {
		return nil
	}
	return *ptr
}

func clampLimit(value, fallback, maximum int) int {
	if value <= 0 {
		return fallback
	}
	if value > maximum {
		return maximum
	}
	return value
}
