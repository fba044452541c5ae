package quote

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/swapgate/errs"
	"github.com/coachpo/swapgate/internal/book"
	"github.com/coachpo/swapgate/internal/exchange"
	"github.com/coachpo/swapgate/internal/infra/telemetry"
)

// Settings carries the read-only pricing configuration shared across requests.
type Settings struct {
	// FeePercent maps each trade side to its commission percentage.
	FeePercent map[book.Side]decimal.Decimal
	// ValidityWindow is how long an open quote remains confirmable.
	ValidityWindow time.Duration
}

// Fee returns the configured commission percentage for the side.
func (s Settings) Fee(side book.Side) decimal.Decimal {
	return s.FeePercent[side]
}

// Service orchestrates quote state transitions. It is the only component that
// mutates quote state; collaborators are injected so tests can substitute them.
type Service struct {
	gateway  exchange.Gateway
	store    Store
	settings Settings
	clock    func() time.Time
	logger   *log.Logger
	metrics  *telemetry.QuoteMetrics
}

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*Service)

// WithClock overrides the service clock, primarily for testing.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger attaches a logger for lifecycle events.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics attaches quote lifecycle instrumentation.
func WithMetrics(metrics *telemetry.QuoteMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// NewService constructs a quote lifecycle service.
func NewService(gateway exchange.Gateway, store Store, settings Settings, opts ...ServiceOption) *Service {
	svc := &Service{
		gateway:  gateway,
		store:    store,
		settings: settings,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateQuote prices a new swap quote for the pair/side/volume and opens it.
//
// The snapshot is fetched exactly once and owned by this call. Pricing
// failures propagate unchanged and leave no stored record.
func (s *Service) CreateQuote(ctx context.Context, pair string, side book.Side, volume decimal.Decimal) (Quote, error) {
	pair = strings.TrimSpace(pair)
	if pair == "" {
		return Quote{}, errs.New(errs.CodeInvalid, errs.WithMessage("pair required"))
	}
	if volume.Sign() <= 0 {
		return Quote{}, errs.New(errs.CodeInvalid,
			errs.WithMessage("requested volume must be positive"),
			errs.WithContext("pair", pair),
			errs.WithContext("volume", volume.String()),
		)
	}

	snap, err := s.gateway.FetchOrderBook(ctx, pair)
	if err != nil {
		return Quote{}, err
	}
	s.metrics.RecordBookDepth(ctx, pair, string(side), len(snap.Levels(side)))

	providerPrice, err := book.PriceVolume(snap, side, volume)
	if err != nil {
		if errs.Is(err, errs.CodeUnderLiquidity) {
			s.metrics.RecordRejected(ctx, pair, string(side))
			s.logf("pricing rejected: pair=%s side=%s volume=%s", pair, side, volume)
		}
		return Quote{}, err
	}
	offeredPrice := ApplyFee(providerPrice, side, s.settings.Fee(side))

	now := s.clock()
	q := Quote{
		Pair:            pair,
		Side:            side,
		RequestedVolume: volume,
		ProviderPrice:   providerPrice,
		OfferedPrice:    offeredPrice,
		State:           StateOpen,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.settings.ValidityWindow),
	}
	stored, err := s.store.Insert(ctx, q)
	if err != nil {
		return Quote{}, err
	}
	s.metrics.RecordPriced(ctx, pair, string(side))
	s.logf("quote opened: id=%s pair=%s side=%s volume=%s offered=%s expires=%s",
		stored.ID, pair, side, volume, offeredPrice, stored.ExpiresAt.Format(time.RFC3339))
	return stored, nil
}

// GetQuote returns the stored quote for the identifier.
func (s *Service) GetQuote(ctx context.Context, id string) (Quote, error) {
	return s.store.FindByID(ctx, id)
}

// ConfirmQuote executes an open quote on the exchange before its expiry.
//
// Expiry is enforced lazily here rather than by a background sweep: a
// confirmation observed at or after the expiry instant marks the quote
// expired and is rejected. Gateway rejections move the quote to
// confirm_failed and surface the venue's error verbatim; the transition is
// terminal, a new quote must be priced to retry.
func (s *Service) ConfirmQuote(ctx context.Context, id string) (Quote, error) {
	q, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.metrics.RecordConfirmFailure(ctx, string(errs.CodeOf(err)))
		return Quote{}, err
	}

	if q.State != StateOpen {
		s.metrics.RecordConfirmFailure(ctx, string(errs.ReasonWrongState))
		return q, errs.NotConfirmable(id, errs.ReasonWrongState)
	}

	now := s.clock()
	if !q.Confirmable(now) {
		if updateErr := s.store.UpdateState(ctx, id, StateUpdate{State: StateExpired}); updateErr != nil {
			s.logf("mark expired failed: id=%s err=%v", id, updateErr)
		} else {
			q.State = StateExpired
		}
		s.metrics.RecordConfirmFailure(ctx, string(errs.ReasonExpired))
		return q, errs.NotConfirmable(id, errs.ReasonExpired)
	}

	ref, err := s.gateway.Execute(ctx, q.Pair, q.Side, q.RequestedVolume, q.OfferedPrice)
	if err != nil {
		if updateErr := s.store.UpdateState(ctx, id, StateUpdate{State: StateConfirmFailed}); updateErr != nil {
			s.logf("mark confirm_failed failed: id=%s err=%v", id, updateErr)
		} else {
			q.State = StateConfirmFailed
		}
		s.metrics.RecordConfirmFailure(ctx, string(errs.CodeProviderExecution))
		s.logf("execution rejected: id=%s err=%v", id, err)
		return q, err
	}

	executedAt := s.clock()
	update := StateUpdate{State: StateConfirmed, ExecutedAt: &executedAt, ExecutionRef: ref}
	if err := s.store.UpdateState(ctx, id, update); err != nil {
		return q, err
	}
	q.State = StateConfirmed
	q.ExecutedAt = &executedAt
	q.ExecutionRef = ref
	s.metrics.RecordConfirmed(ctx, q.Pair)
	s.logf("quote confirmed: id=%s pair=%s ref=%s", id, q.Pair, ref)
	return q, nil
}

// ListOpenQuotes returns up to limit quotes currently in the open state.
func (s *Service) ListOpenQuotes(ctx context.Context, limit int) ([]Quote, error) {
	return s.store.ListByState(ctx, StateOpen, limit)
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
