// Package currencycom implements the exchange gateway against the Currency.com REST API.
package currencycom

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/coachpo/swapgate/errs"
	"github.com/coachpo/swapgate/internal/book"
)

const (
	venueName = "currencycom"

	depthPath = "/api/v2/depth"
	orderPath = "/api/v2/order"

	defaultHTTPTimeout   = 10 * time.Second
	defaultDepthLimit    = 100
	defaultFetchAttempts = 3
)

// Options configures the Currency.com REST client.
type Options struct {
	BaseURL           string
	APIKey            string
	APISecret         string
	HTTPTimeout       time.Duration
	RecvWindow        time.Duration
	DepthLimit        int
	FetchAttempts     int
	RequestsPerSecond float64
}

func (o Options) httpTimeout() time.Duration {
	if o.HTTPTimeout <= 0 {
		return defaultHTTPTimeout
	}
	return o.HTTPTimeout
}

func (o Options) depthLimit() int {
	if o.DepthLimit <= 0 {
		return defaultDepthLimit
	}
	return o.DepthLimit
}

func (o Options) fetchAttempts() int {
	if o.FetchAttempts <= 0 {
		return defaultFetchAttempts
	}
	return o.FetchAttempts
}

// Client is an authenticated Currency.com REST client implementing the
// exchange gateway contract.
type Client struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	clock   func() time.Time
	logger  *log.Logger
}

// Option configures optional Client collaborators.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client, primarily for testing.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithClock overrides the signing timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger attaches a logger for transport events.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New constructs a Currency.com client from the given options.
func New(opts Options, clientOpts ...Option) *Client {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	c := &Client{
		opts:    opts,
		client:  &http.Client{Timeout: opts.httpTimeout()},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		clock:   time.Now,
	}
	for _, opt := range clientOpts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type depthResponse struct {
	LastUpdateID int64             `json:"lastUpdateId"`
	Asks         [][]json.Number   `json:"asks"`
	Bids         [][]json.Number   `json:"bids"`
}

// FetchOrderBook retrieves a point-in-time depth snapshot for the pair.
//
// The venue returns asks ascending and bids descending; that order is kept
// verbatim. Transient transport failures are retried with exponential
// backoff up to the configured attempt count.
func (c *Client) FetchOrderBook(ctx context.Context, pair string) (book.Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return book.Snapshot{}, fmt.Errorf("depth rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("limit", strconv.Itoa(c.opts.depthLimit()))
	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + depthPath + "?" + params.Encode()

	var lastErr error
	backoffCfg := backoff.NewExponentialBackOff()
	for attempt := 0; attempt < c.opts.fetchAttempts(); attempt++ {
		if attempt > 0 {
			sleep := backoffCfg.NextBackOff()
			select {
			case <-ctx.Done():
				return book.Snapshot{}, ctx.Err()
			case <-time.After(sleep):
			}
		}

		snap, err := c.fetchDepthOnce(ctx, endpoint, pair)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		c.logf("depth fetch retry: pair=%s attempt=%d err=%v", pair, attempt+1, err)
	}
	return book.Snapshot{}, lastErr
}

func (c *Client) fetchDepthOnce(ctx context.Context, endpoint, pair string) (book.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return book.Snapshot{}, fmt.Errorf("create depth request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return book.Snapshot{}, errs.New(errs.CodeNetwork,
			errs.WithVenue(venueName),
			errs.WithMessage("depth request failed"),
			errs.WithCause(err),
		)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return book.Snapshot{}, fmt.Errorf("read depth response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return book.Snapshot{}, parseVenueError(resp.StatusCode, body)
	}

	var payload depthResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return book.Snapshot{}, fmt.Errorf("decode depth response: %w", err)
	}

	observed := c.clock()
	asks, err := parseLevels(payload.Asks)
	if err != nil {
		return book.Snapshot{}, fmt.Errorf("parse asks: %w", err)
	}
	bids, err := parseLevels(payload.Bids)
	if err != nil {
		return book.Snapshot{}, fmt.Errorf("parse bids: %w", err)
	}
	return book.Snapshot{
		Pair:       pair,
		Asks:       asks,
		Bids:       bids,
		ObservedAt: observed,
	}, nil
}

// parseLevels converts venue depth rows into book levels. Rows carry
// [price, size] with optional trailing [liquidated, unitsPerLot] entries.
func parseLevels(rows [][]json.Number) ([]book.Level, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	levels := make([]book.Level, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("depth row %d: expected at least price and size, got %d entries", i, len(row))
		}
		price, err := decimal.NewFromString(row[0].String())
		if err != nil {
			return nil, fmt.Errorf("depth row %d price: %w", i, err)
		}
		size, err := decimal.NewFromString(row[1].String())
		if err != nil {
			return nil, fmt.Errorf("depth row %d size: %w", i, err)
		}
		liquidated := decimal.Zero
		if len(row) > 2 {
			liquidated, err = decimal.NewFromString(row[2].String())
			if err != nil {
				return nil, fmt.Errorf("depth row %d liquidated: %w", i, err)
			}
		}
		multiplier := decimal.NewFromInt(1)
		if len(row) > 3 {
			multiplier, err = decimal.NewFromString(row[3].String())
			if err != nil {
				return nil, fmt.Errorf("depth row %d multiplier: %w", i, err)
			}
		}
		levels = append(levels, book.Level{
			Price:      price,
			Size:       size,
			Liquidated: liquidated,
			Multiplier: multiplier,
		})
	}
	return levels, nil
}

type orderResponse struct {
	OrderID       json.Number `json:"orderId"`
	ClientOrderID string      `json:"clientOrderId"`
	Status        string      `json:"status"`
	ExecutedQty   string      `json:"executedQty"`
}

// Execute places a fill-or-kill limit order at the quoted price and returns
// the venue's order identifier. Venue rejections surface the raw message
// verbatim in a provider_execution error.
func (c *Client) Execute(ctx context.Context, pair string, side book.Side, volume, price decimal.Decimal) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("order rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("side", venueSide(side))
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "FOK")
	params.Set("quantity", volume.String())
	params.Set("price", price.String())
	if c.opts.RecvWindow > 0 {
		params.Set("recvWindow", strconv.FormatInt(c.opts.RecvWindow.Milliseconds(), 10))
	}
	params.Set("timestamp", strconv.FormatInt(c.clock().UTC().UnixMilli(), 10))
	basePayload := params.Encode()
	body := basePayload + "&signature=" + signPayload(basePayload, c.opts.APISecret)

	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + orderPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create order request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.opts.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errs.New(errs.CodeNetwork,
			errs.WithVenue(venueName),
			errs.WithMessage("order request failed"),
			errs.WithCause(err),
		)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read order response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", parseExecutionError(resp.StatusCode, respBody)
	}

	var order orderResponse
	if err := json.Unmarshal(respBody, &order); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	ref := order.OrderID.String()
	if ref == "" {
		return "", errs.New(errs.CodeProviderExecution,
			errs.WithVenue(venueName),
			errs.WithMessage("venue returned no order identifier"),
		)
	}
	c.logf("order executed: pair=%s side=%s ref=%s", pair, side, ref)
	return ref, nil
}

type venueError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func parseVenueError(status int, body []byte) error {
	var ve venueError
	if err := json.Unmarshal(body, &ve); err == nil && ve.Msg != "" {
		return errs.New(errs.CodeNetwork,
			errs.WithVenue(venueName),
			errs.WithHTTP(status),
			errs.WithMessage("depth request rejected"),
			errs.WithRawMessage(ve.Msg),
		)
	}
	return errs.New(errs.CodeNetwork,
		errs.WithVenue(venueName),
		errs.WithHTTP(status),
		errs.WithMessage("depth request rejected"),
		errs.WithRawMessage(strings.TrimSpace(string(body))),
	)
}

func parseExecutionError(status int, body []byte) error {
	var ve venueError
	raw := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &ve); err == nil && ve.Msg != "" {
		raw = ve.Msg
	}
	return errs.New(errs.CodeProviderExecution,
		errs.WithVenue(venueName),
		errs.WithHTTP(status),
		errs.WithMessage("execution rejected"),
		errs.WithRawMessage(raw),
	)
}

// retryable reports whether a depth failure is worth another attempt.
// Venue-level rejections with 4xx statuses are not.
func retryable(err error) bool {
	var envelope *errs.E
	if !errors.As(err, &envelope) {
		return true
	}
	if envelope.HTTP >= 400 && envelope.HTTP < 500 {
		return false
	}
	return true
}

func signPayload(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func venueSide(side book.Side) string {
	if side == book.SideSell {
		return "SELL"
	}
	return "BUY"
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
