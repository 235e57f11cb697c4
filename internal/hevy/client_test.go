// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/hevysync/internal/props"
)

func newTestClient(transport Transport) (*Client, *props.MemoryStore) {
	store := props.NewMemoryStore(nil)
	exec := NewExecutor("https://api.example.test/v1", "0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9",
		transport, 30*time.Second, 15*time.Second)
	breaker := NewBreaker(5, time.Minute, nil)
	cache := NewResponseCache(store, 100, 10*time.Minute)
	rates := NewRateLimitTracker(store, 10*time.Minute, nil)
	cfg := ClientConfig{
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		MaxRetries: 3,
	}
	return NewClient(exec, breaker, cache, rates, cfg, nil), store
}

func TestClient_SuccessCachesGET(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{{status: 200, body: `{"workouts":[]}`}}}
	client, _ := newTestClient(transport)

	got, err := client.Get(context.Background(), "workouts", url.Values{"page": {"1"}})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if string(got) != `{"workouts":[]}` {
		t.Errorf("Unexpected payload %q", got)
	}

	// Second identical GET must be served from cache without transport.
	got2, err := client.Get(context.Background(), "workouts", url.Values{"page": {"1"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(got2) != string(got) {
		t.Errorf("Cache returned different payload %q", got2)
	}
	if transport.calls() != 1 {
		t.Errorf("Expected 1 transport call, got %d", transport.calls())
	}
}

func TestClient_NonGETBypassesCache(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{{status: 200, body: `{"ok":1}`}}}
	client, store := newTestClient(transport)

	_, err := client.Request(context.Background(), http.MethodPost, "routines", nil, map[string]string{"title": "Legs"})
	if err != nil {
		t.Fatal(err)
	}

	// Nothing may land in either cache tier for a POST.
	if store.Len() != 0 {
		t.Errorf("POST wrote %d durable entries", store.Len())
	}

	// A repeat POST must hit the transport again.
	_, err = client.Request(context.Background(), http.MethodPost, "routines", nil, map[string]string{"title": "Legs"})
	if err != nil {
		t.Fatal(err)
	}
	if transport.calls() != 2 {
		t.Errorf("Expected 2 transport calls, got %d", transport.calls())
	}
}

func TestClient_RetriesTransientThenSucceeds(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{
		{status: 503, body: "unavailable"},
		{status: 503, body: "unavailable"},
		{status: 200, body: `{"ok":1}`},
	}}
	client, _ := newTestClient(transport)

	got, err := client.Get(context.Background(), "workouts", nil)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if string(got) != `{"ok":1}` {
		t.Errorf("Unexpected payload %q", got)
	}
	if transport.calls() != 3 {
		t.Errorf("Expected 3 attempts, got %d", transport.calls())
	}
}

func TestClient_RateLimitHeadersObservedOnFailure(t *testing.T) {
	// An exhausted budget arrives on the 429 itself; the snapshot must be
	// recorded even though the request fails.
	headers := http.Header{
		"X-Ratelimit-Remaining": {"0"},
		"X-Ratelimit-Limit":     {"100"},
	}
	transport := &fakeTransport{responses: []fakeResponse{
		{status: 429, body: "slow down", headers: headers},
	}}
	client, _ := newTestClient(transport)

	_, err := client.Get(context.Background(), "workouts", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 429 {
		t.Fatalf("Expected APIError 429, got %v", err)
	}

	info := client.RateLimitInfo()
	if info == nil {
		t.Fatal("Rate-limit snapshot not recorded from 429 response headers")
	}
	if info.Remaining == nil || *info.Remaining != 0 {
		t.Errorf("Expected remaining 0, got %v", info.Remaining)
	}
	if info.Limit == nil || *info.Limit != 100 {
		t.Errorf("Expected limit 100, got %v", info.Limit)
	}
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{{status: 400, body: "nope"}}}
	client, _ := newTestClient(transport)

	_, err := client.Get(context.Background(), "workouts", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 400 {
		t.Fatalf("Expected APIError 400, got %v", err)
	}
	if transport.calls() != 1 {
		t.Errorf("400 must not be retried, got %d attempts", transport.calls())
	}
}

func TestClient_RetriesExhaustedSurfacesLastError(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{{status: 503, body: "down"}}}
	client, _ := newTestClient(transport)

	_, err := client.Get(context.Background(), "workouts", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 503 {
		t.Fatalf("Expected APIError 503, got %v", err)
	}
	if transport.calls() != 3 {
		t.Errorf("Expected MaxRetries=3 attempts, got %d", transport.calls())
	}
}

func TestClient_BreakerTripsOnPersistentFailures(t *testing.T) {
	// Each terminal 500 records one hard failure; the fifth trips the
	// breaker. 500 is retryable, so allow all attempts to fail.
	transport := &fakeTransport{responses: []fakeResponse{{status: 500, body: "boom"}}}
	client, _ := newTestClient(transport)

	for i := 0; i < 5; i++ {
		_, err := client.Get(context.Background(), "workouts", url.Values{"try": {string(rune('a' + i))}})
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("call %d: expected APIError, got %v", i, err)
		}
	}

	callsBefore := transport.calls()
	_, err := client.Get(context.Background(), "workouts", url.Values{"try": {"z"}})
	var open *CircuitOpenError
	if !errors.As(err, &open) {
		t.Fatalf("Expected CircuitOpenError after 5 failures, got %v", err)
	}
	if transport.calls() != callsBefore {
		t.Error("Open breaker must fail fast without issuing HTTP")
	}
}

func TestClient_CacheHitShortCircuitsOpenBreaker(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{
		{status: 200, body: `{"p":1}`},
		{status: 500, body: "boom"},
	}}
	client, _ := newTestClient(transport)

	// Prime the cache.
	got, err := client.Get(context.Background(), "x", url.Values{"p": {"1"}})
	if err != nil || string(got) != `{"p":1}` {
		t.Fatalf("prime failed: %v %q", err, got)
	}

	// Trip the breaker via unrelated failures.
	for i := 0; i < 5; i++ {
		_, _ = client.Get(context.Background(), "y", url.Values{"i": {string(rune('a' + i))}})
	}
	if _, err := client.Get(context.Background(), "y", nil); err == nil {
		t.Fatal("breaker should be open")
	}

	callsBefore := transport.calls()
	got, err = client.Get(context.Background(), "x", url.Values{"p": {"1"}})
	if err != nil {
		t.Fatalf("Cached GET must succeed while breaker open, got %v", err)
	}
	if string(got) != `{"p":1}` {
		t.Errorf("Unexpected cached payload %q", got)
	}
	if transport.calls() != callsBefore {
		t.Error("Cache hit must not contact the transport")
	}
}

func TestClient_BackoffMonotoneUpToCap(t *testing.T) {
	client, _ := newTestClient(&fakeTransport{})
	client.cfg.BaseDelay = time.Second
	client.cfg.MaxDelay = 10 * time.Second
	client.jitter = func() float64 { return 0.5 } // fixed factor 0.75

	prev := time.Duration(0)
	for attempt := 0; attempt < 4; attempt++ {
		delay := client.backoff(attempt)
		if delay < prev {
			t.Errorf("Backoff not monotone: attempt %d gave %v after %v", attempt, delay, prev)
		}
		prev = delay
	}

	// Beyond the cap the delay stays at cap*factor.
	capped := client.backoff(10)
	if capped != time.Duration(float64(10*time.Second)*0.75) {
		t.Errorf("Expected capped delay, got %v", capped)
	}
}

func TestClient_BackoffJitterRange(t *testing.T) {
	client, _ := newTestClient(&fakeTransport{})
	client.cfg.BaseDelay = time.Second
	client.cfg.MaxDelay = 10 * time.Second

	client.jitter = func() float64 { return 0 }
	if got := client.backoff(0); got != 500*time.Millisecond {
		t.Errorf("Jitter floor: expected 500ms, got %v", got)
	}

	client.jitter = func() float64 { return 0.999999 }
	got := client.backoff(0)
	if got < 999*time.Millisecond || got > time.Second {
		t.Errorf("Jitter ceiling: expected just under 1s, got %v", got)
	}
}

func TestClient_ValidateKey(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		transport := &fakeTransport{responses: []fakeResponse{{status: 200, body: `{"workout_count":12}`}}}
		client, _ := newTestClient(transport)
		if err := client.ValidateKey(context.Background()); err != nil {
			t.Errorf("Expected valid key, got %v", err)
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		transport := &fakeTransport{responses: []fakeResponse{{status: 401, body: "no"}}}
		client, _ := newTestClient(transport)
		if err := client.ValidateKey(context.Background()); !errors.Is(err, ErrInvalidAPIKey) {
			t.Errorf("Expected ErrInvalidAPIKey, got %v", err)
		}
	})

	t.Run("network", func(t *testing.T) {
		transport := &fakeTransport{responses: []fakeResponse{{err: errors.New("dial tcp: lookup api.example.test: no such host")}}}
		client, _ := newTestClient(transport)
		err := client.ValidateKey(context.Background())
		if err == nil || errors.Is(err, ErrInvalidAPIKey) {
			t.Fatalf("Expected connectivity error, got %v", err)
		}
		if want := "check your connection"; !strings.Contains(err.Error(), want) {
			t.Errorf("Expected user-facing message containing %q, got %q", want, err.Error())
		}
	})
}
