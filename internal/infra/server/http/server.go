// Package httpserver exposes HTTP handlers for pricing and confirming swap quotes.
package httpserver

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/coachpo/swapgate/errs"
	"github.com/coachpo/swapgate/internal/book"
	"github.com/coachpo/swapgate/internal/numeric"
	"github.com/coachpo/swapgate/internal/quote"
)

const (
	maxJSONBodyBytes int64 = 1 << 20 // 1 MiB

	quotesPath        = "/quotes"
	quoteDetailPrefix = quotesPath + "/"

	feesPath   = "/config/fees"
	healthPath = "/health"

	confirmAction = "confirm"
)

type handlerFunc func(http.ResponseWriter, *http.Request)

type httpServer struct {
	service  *quote.Service
	settings quote.Settings
}

// NewHandler creates an HTTP handler for quote lifecycle operations.
func NewHandler(service *quote.Service, settings quote.Settings) http.Handler {
	server := &httpServer{service: service, settings: settings}
	mux := http.NewServeMux()

	mux.Handle(quotesPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet:  server.listOpenQuotes,
		http.MethodPost: server.createQuote,
	}))
	mux.Handle(quoteDetailPrefix, http.HandlerFunc(server.handleQuote))

	mux.Handle(feesPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.getFees,
	}))
	mux.Handle(healthPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.getHealth,
	}))

	return withCORS(mux)
}

func (s *httpServer) methodHandlers(handlers map[string]handlerFunc) http.Handler {
	allowed := allowedMethods(handlers)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler(w, r)
			return
		}
		methodNotAllowed(w, allowed...)
	})
}

func allowedMethods(handlers map[string]handlerFunc) []string {
	if len(handlers) == 0 {
		return nil
	}
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	return allowed
}

type createQuotePayload struct {
	Pair   string `json:"pair"`
	Side   string `json:"side"`
	Volume string `json:"volume"`
}

type quoteResponse struct {
	ID           string `json:"id"`
	Pair         string `json:"pair"`
	Side         string `json:"side"`
	Volume       string `json:"volume"`
	Price        string `json:"price"`
	State        string `json:"state"`
	CreatedAt    string `json:"createdAt"`
	ExpiresAt    string `json:"expiresAt"`
	ExecutedAt   string `json:"executedAt,omitempty"`
	ExecutionRef string `json:"executionRef,omitempty"`
}

// quoteResponseFrom renders a quote for transport. The raw provider price is
// internal and never leaves the service.
func quoteResponseFrom(q quote.Quote) quoteResponse {
	resp := quoteResponse{
		ID:        q.ID,
		Pair:      q.Pair,
		Side:      string(q.Side),
		Volume:    q.RequestedVolume.String(),
		Price:     q.OfferedPrice.String(),
		State:     string(q.State),
		CreatedAt: q.CreatedAt.UTC().Format(time.RFC3339Nano),
		ExpiresAt: q.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	if q.ExecutedAt != nil {
		resp.ExecutedAt = q.ExecutedAt.UTC().Format(time.RFC3339Nano)
	}
	if q.ExecutionRef != "" {
		resp.ExecutionRef = q.ExecutionRef
	}
	return resp
}

func (s *httpServer) createQuote(w http.ResponseWriter, r *http.Request) {
	limitRequestBody(w, r)
	payload, err := decodeCreatePayload(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	side, err := book.ParseSide(payload.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	volume, ok := numeric.Parse(payload.Volume)
	if !ok {
		writeError(w, http.StatusBadRequest, "volume must be a decimal string")
		return
	}

	q, err := s.service.CreateQuote(r.Context(), payload.Pair, side, volume)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quoteResponseFrom(q))
}

func (s *httpServer) listOpenQuotes(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	quotes, err := s.service.ListOpenQuotes(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]quoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, quoteResponseFrom(q))
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": out})
}

func (s *httpServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, quoteDetailPrefix), "/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "quote id required")
		return
	}

	id, action, hasAction := strings.Cut(rest, "/")
	id = strings.TrimSpace(id)
	if id == "" {
		writeError(w, http.StatusNotFound, "quote id required")
		return
	}

	if !hasAction {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		s.getQuote(w, r, id)
		return
	}

	switch strings.TrimSpace(action) {
	case confirmAction:
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		s.confirmQuote(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "unsupported action")
	}
}

func (s *httpServer) getQuote(w http.ResponseWriter, r *http.Request, id string) {
	q, err := s.service.GetQuote(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponseFrom(q))
}

func (s *httpServer) confirmQuote(w http.ResponseWriter, r *http.Request, id string) {
	q, err := s.service.ConfirmQuote(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, quoteResponseFrom(q))
		return
	}
	writeJSON(w, http.StatusOK, quoteResponseFrom(q))
}

func (s *httpServer) getFees(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"buyFeePercent":  s.settings.Fee(book.SideBuy).String(),
		"sellFeePercent": s.settings.Fee(book.SideSell).String(),
		"validityWindow": s.settings.ValidityWindow.String(),
	})
}

func (s *httpServer) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeCreatePayload(r *http.Request) (createQuotePayload, error) {
	defer func() {
		_ = r.Body.Close()
	}()
	var payload createQuotePayload
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&payload); err != nil {
		return payload, err
	}
	payload.Pair = strings.TrimSpace(payload.Pair)
	payload.Side = strings.TrimSpace(payload.Side)
	payload.Volume = strings.TrimSpace(payload.Volume)
	return payload, nil
}

// writeServiceError maps error codes onto HTTP statuses. An optional quote
// body is included so confirmation failures report the resulting state.
func writeServiceError(w http.ResponseWriter, err error, bodies ...quoteResponse) {
	status := statusForError(err)
	payload := map[string]any{
		"status": "error",
		"error":  err.Error(),
		"code":   string(errs.CodeOf(err)),
	}
	var envelope *errs.E
	if errors.As(err, &envelope) {
		if envelope.Reason != "" {
			payload["reason"] = string(envelope.Reason)
		}
		if envelope.RawMsg != "" {
			payload["providerMessage"] = envelope.RawMsg
		}
	}
	if len(bodies) > 0 && bodies[0].ID != "" {
		payload["quote"] = bodies[0]
	}
	writeJSON(w, status, payload)
}

func statusForError(err error) int {
	switch errs.CodeOf(err) {
	case errs.CodeInvalid:
		return http.StatusBadRequest
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeNotConfirmable:
		return http.StatusConflict
	case errs.CodeUnderLiquidity:
		return http.StatusUnprocessableEntity
	case errs.CodeProviderExecution, errs.CodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if isRequestTooLarge(err) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func isRequestTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}

func withCORS(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
