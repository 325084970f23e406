package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/auth"
)

func testCreds(t *testing.T) auth.Credentials {
	t.Helper()
	creds, err := auth.New("PKTEST", "secret")
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	return creds
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetClock(t *testing.T) {
	var gotKey, gotSecret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/clock" {
			t.Errorf("path = %q, want /v2/clock", r.URL.Path)
		}
		gotKey = r.Header.Get("APCA-API-KEY-ID")
		gotSecret = r.Header.Get("APCA-API-SECRET-KEY")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"timestamp": "2026-03-02T14:32:01.123456789-05:00",
			"is_open": true,
			"next_open": "2026-03-03T09:30:00-05:00",
			"next_close": "2026-03-02T16:00:00-05:00"
		}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testCreds(t), WithLogger(testLogger()))

	clock, err := client.GetClock(context.Background())
	if err != nil {
		t.Fatalf("GetClock: %v", err)
	}

	if !clock.IsOpen {
		t.Error("IsOpen = false, want true")
	}
	if clock.NextClose.IsZero() {
		t.Error("NextClose is zero")
	}
	if gotKey != "PKTEST" || gotSecret != "secret" {
		t.Errorf("auth headers = (%q, %q), want (PKTEST, secret)", gotKey, gotSecret)
	}
}

func TestListActiveAssets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/assets" {
			t.Errorf("path = %q, want /v2/assets", r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "active" {
			t.Errorf("status query = %q, want active", got)
		}
		if got := r.URL.Query().Get("asset_class"); got != "us_equity" {
			t.Errorf("asset_class query = %q, want us_equity", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"symbol": "AAPL", "exchange": "NASDAQ", "status": "active", "tradable": true},
			{"symbol": "MSFT", "exchange": "NASDAQ", "status": "active", "tradable": true},
			{"symbol": "HALTD", "exchange": "NYSE", "status": "active", "tradable": false}
		]`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testCreds(t), WithLogger(testLogger()))

	assets, err := client.ListActiveAssets(context.Background())
	if err != nil {
		t.Fatalf("ListActiveAssets: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("len(assets) = %d, want 3", len(assets))
	}

	tradable := TradableSymbols(assets)
	if !tradable["AAPL"] || !tradable["MSFT"] {
		t.Errorf("tradable = %v, want AAPL and MSFT present", tradable)
	}
	if tradable["HALTD"] {
		t.Error("HALTD marked tradable, want excluded")
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"is_open": false}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testCreds(t),
		WithLogger(testLogger()),
		WithRetries(3, time.Millisecond),
	)

	clock, err := client.GetClock(context.Background())
	if err != nil {
		t.Fatalf("GetClock after retries: %v", err)
	}
	if clock.IsOpen {
		t.Error("IsOpen = true, want false")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testCreds(t),
		WithLogger(testLogger()),
		WithRetries(3, time.Millisecond),
	)

	_, err := client.GetClock(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
	if apiErr.IsRetryable() {
		t.Error("403 reported as retryable")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}
