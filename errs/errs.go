// Package errs provides structured error types and helpers for swapgate services.
package errs

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Code identifies a quote-service error category.
type Code string

const (
	// CodeUnderLiquidity indicates the order book lacked depth to fill the requested volume.
	CodeUnderLiquidity Code = "under_liquidity"
	// CodeNotFound indicates a missing resource.
	CodeNotFound Code = "not_found"
	// CodeNotConfirmable indicates the quote exists but cannot be confirmed.
	CodeNotConfirmable Code = "not_confirmable"
	// CodeProviderExecution indicates the exchange rejected an execution request.
	CodeProviderExecution Code = "provider_execution"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeConfig indicates malformed service configuration.
	CodeConfig Code = "config"
	// CodeNetwork indicates a network transport failure.
	CodeNetwork Code = "network"
	// CodeInternal captures uncategorized failures.
	CodeInternal Code = "internal"
)

// Reason refines CodeNotConfirmable with the concrete rejection cause.
type Reason string

const (
	// ReasonExpired indicates the quote validity window elapsed.
	ReasonExpired Reason = "expired"
	// ReasonWrongState indicates the quote left the open state already.
	ReasonWrongState Reason = "wrong_state"
)

// E captures structured error information produced across the swapgate stack.
type E struct {
	Venue   string
	Code    Code
	Reason  Reason
	HTTP    int
	Message string
	RawMsg  string
	Context map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the given code.
func New(code Code, opts ...Option) *E {
	e := &E{Code: code}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithVenue records the exchange venue the error originated from.
func WithVenue(venue string) Option {
	trimmed := strings.TrimSpace(venue)
	return func(e *E) {
		e.Venue = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRawMessage captures the raw provider error message verbatim.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithReason refines a not-confirmable error with the rejection cause.
func WithReason(reason Reason) Option {
	return func(e *E) {
		e.Reason = reason
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithContext appends a single context key/value pair.
func WithContext(key, value string) Option {
	return func(e *E) {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return
		}
		if e.Context == nil {
			e.Context = make(map[string]string, 1)
		}
		e.Context[trimmedKey] = strings.TrimSpace(value)
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = string(CodeInternal)
	}
	parts = append(parts, "code="+code)

	if e.Reason != "" {
		parts = append(parts, "reason="+string(e.Reason))
	}
	if venue := strings.TrimSpace(e.Venue); venue != "" {
		parts = append(parts, "venue="+venue)
	}
	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.Context[k]))
		}
		parts = append(parts, "context="+strings.Join(pairs, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the error code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var envelope *E
	if errors.As(err, &envelope) && envelope != nil {
		return envelope.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// UnderLiquidity returns a standardized error for insufficient book depth.
func UnderLiquidity(pair, side, volume string) *E {
	return New(CodeUnderLiquidity,
		WithMessage("not enough depth to fill the requested volume"),
		WithContext("pair", pair),
		WithContext("side", side),
		WithContext("volume", volume),
	)
}

// NotFound returns a standardized error for an unknown quote identifier.
func NotFound(id string) *E {
	return New(CodeNotFound,
		WithMessage("quote not found"),
		WithContext("id", id),
	)
}

// NotConfirmable returns a standardized error for a quote that cannot be confirmed.
func NotConfirmable(id string, reason Reason) *E {
	return New(CodeNotConfirmable,
		WithMessage("quote not confirmable"),
		WithReason(reason),
		WithContext("id", id),
	)
}
