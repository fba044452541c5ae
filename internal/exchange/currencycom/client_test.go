package currencycom

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/swapgate/errs"
	"github.com/coachpo/swapgate/internal/book"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return New(Options{
		BaseURL:       baseURL,
		APIKey:        "test-key",
		APISecret:     "test-secret",
		FetchAttempts: 1,
	}, WithClock(func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}))
}

func TestFetchOrderBookParsesDepth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != depthPath {
			t.Errorf("path = %s, want %s", r.URL.Path, depthPath)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTC/USD" {
			t.Errorf("symbol = %s, want BTC/USD", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"lastUpdateId": 42,
			"asks": [["36713.5","15169"],["36714.0","3.5","1.5","2"]],
			"bids": [["36710.0","8"]]
		}`))
	}))
	defer srv.Close()

	snap, err := newTestClient(t, srv.URL).FetchOrderBook(context.Background(), "BTC/USD")
	if err != nil {
		t.Fatalf("FetchOrderBook: %v", err)
	}
	if snap.Pair != "BTC/USD" {
		t.Fatalf("pair = %s, want BTC/USD", snap.Pair)
	}
	if len(snap.Asks) != 2 || len(snap.Bids) != 1 {
		t.Fatalf("levels = %d asks / %d bids, want 2 / 1", len(snap.Asks), len(snap.Bids))
	}
	if !snap.Asks[0].Price.Equal(decimal.RequireFromString("36713.5")) {
		t.Fatalf("first ask price = %s, want 36713.5", snap.Asks[0].Price)
	}
	// Two-element rows default to zero liquidated and unit multiplier.
	if !snap.Asks[0].Liquidated.IsZero() || !snap.Asks[0].Multiplier.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("defaults not applied: liquidated=%s multiplier=%s", snap.Asks[0].Liquidated, snap.Asks[0].Multiplier)
	}
	// Four-element rows carry liquidated volume and units per lot.
	if !snap.Asks[1].Available().Equal(decimal.RequireFromString("5.5")) {
		t.Fatalf("second ask available = %s, want 5.5", snap.Asks[1].Available())
	}
	if snap.ObservedAt.IsZero() {
		t.Fatal("ObservedAt not set")
	}
}

func TestFetchOrderBookRejectsMalformedRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"asks":[["36713.5"]],"bids":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchOrderBook(context.Background(), "BTC/USD")
	if err == nil {
		t.Fatal("expected error for one-element depth row")
	}
}

func TestFetchOrderBookVenueRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchOrderBook(context.Background(), "NOPE/USD")
	if !errs.Is(err, errs.CodeNetwork) {
		t.Fatalf("code = %s, want network", errs.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "Invalid symbol.") {
		t.Fatalf("error does not carry venue message verbatim: %v", err)
	}
}

func TestFetchOrderBookRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"asks":[["100","1"]],"bids":[]}`))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, FetchAttempts: 3})
	snap, err := client.FetchOrderBook(context.Background(), "BTC/USD")
	if err != nil {
		t.Fatalf("FetchOrderBook: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if len(snap.Asks) != 1 {
		t.Fatalf("asks = %d, want 1", len(snap.Asks))
	}
}

func TestFetchOrderBookDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, FetchAttempts: 3})
	_, err := client.FetchOrderBook(context.Background(), "NOPE/USD")
	if err == nil {
		t.Fatal("expected rejection")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestExecuteSignsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("X-MBX-APIKEY"); got != "test-key" {
			t.Errorf("api key header = %s, want test-key", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		form := r.PostForm
		if form.Get("type") != "LIMIT" || form.Get("timeInForce") != "FOK" {
			t.Errorf("order shape = %s/%s, want LIMIT/FOK", form.Get("type"), form.Get("timeInForce"))
		}
		if form.Get("side") != "BUY" {
			t.Errorf("side = %s, want BUY", form.Get("side"))
		}

		sig := form.Get("signature")
		form.Del("signature")
		mac := hmac.New(sha256.New, []byte("test-secret"))
		mac.Write([]byte(form.Encode()))
		if want := hex.EncodeToString(mac.Sum(nil)); sig != want {
			t.Errorf("signature = %s, want %s", sig, want)
		}

		_, _ = w.Write([]byte(`{"orderId":9876543,"status":"FILLED","executedQty":"1000"}`))
	}))
	defer srv.Close()

	ref, err := newTestClient(t, srv.URL).Execute(
		context.Background(), "BTC/USD", book.SideBuy,
		decimal.RequireFromString("1000"), decimal.RequireFromString("37447.77"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ref != "9876543" {
		t.Fatalf("ref = %s, want 9876543", ref)
	}
}

func TestExecuteVenueRejectionCarriesRawMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Execute(
		context.Background(), "BTC/USD", book.SideSell,
		decimal.RequireFromString("5"), decimal.RequireFromString("100"))
	if !errs.Is(err, errs.CodeProviderExecution) {
		t.Fatalf("code = %s, want provider_execution", errs.CodeOf(err))
	}
	var envelope *errs.E
	if !errors.As(err, &envelope) {
		t.Fatalf("error is not an envelope: %v", err)
	}
	if envelope.RawMsg != "Account has insufficient balance for requested action." {
		t.Fatalf("raw message = %q, not verbatim", envelope.RawMsg)
	}
	if envelope.HTTP != http.StatusBadRequest {
		t.Fatalf("http = %d, want 400", envelope.HTTP)
	}
}

func TestExecuteRejectsMissingOrderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"FILLED"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Execute(
		context.Background(), "BTC/USD", book.SideBuy,
		decimal.RequireFromString("1"), decimal.RequireFromString("100"))
	if !errs.Is(err, errs.CodeProviderExecution) {
		t.Fatalf("code = %s, want provider_execution", errs.CodeOf(err))
	}
}
