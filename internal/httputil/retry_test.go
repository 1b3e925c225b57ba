package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func noSleep(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestBackoffDoubles(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for attempt, expected := range want {
		if got := Backoff(attempt); got != expected {
			t.Fatalf("Backoff(%d) = %s, want %s", attempt, got, expected)
		}
	}
	if Backoff(100) != time.Second<<16 {
		t.Fatal("large attempts should be capped")
	}
	if Backoff(-3) != time.Second {
		t.Fatal("negative attempts should clamp to the first delay")
	}
}

func TestGetRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var delays []time.Duration
	cfg := RetryConfig{MaxRetries: 3, Sleep: noSleep(&delays)}

	resp, err := Get(context.Background(), srv.Client(), srv.URL, cfg)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Fatalf("unexpected backoff delays %v", delays)
	}
}

func TestGetReturnsNonRetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var delays []time.Duration
	cfg := DefaultRetryConfig()
	cfg.Sleep = noSleep(&delays)

	resp, err := Get(context.Background(), srv.Client(), srv.URL, cfg)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if len(delays) != 0 {
		t.Fatalf("404 should not be retried, slept %v", delays)
	}
}

func TestGetExhaustionReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var delays []time.Duration
	cfg := RetryConfig{MaxRetries: 1, Sleep: noSleep(&delays)}

	_, err := Get(context.Background(), srv.Client(), srv.URL, cfg)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d", statusErr.StatusCode)
	}
	if len(delays) != 1 {
		t.Fatalf("expected one delay before the single retry, got %v", delays)
	}
}

func TestClientStampsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, "Mozilla/5.0 test")
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got != "Mozilla/5.0 test" {
		t.Fatalf("User-Agent = %q", got)
	}
}

func TestCheckConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	client := srv.Client()
	if err := CheckConnectivity(context.Background(), client, srv.URL); err != nil {
		t.Fatalf("any HTTP response should count as reachable: %v", err)
	}

	url := srv.URL
	srv.Close()
	if err := CheckConnectivity(context.Background(), client, url); err == nil {
		t.Fatal("closed server should fail the connectivity check")
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
