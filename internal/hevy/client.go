// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

// Package hevy implements the resilient Hevy API client: a layered HTTP
// executor with circuit breaking, retry-with-backoff, rate-limit awareness,
// a two-tier response cache, and a bounded cooperative paginator.
package hevy

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"k8s.io/utils/clock"

	"github.com/tomtom215/hevysync/internal/logging"
	"github.com/tomtom215/hevysync/internal/metrics"
)

// ClientConfig carries the client tunables.
type ClientConfig struct {
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	MaxRetries        int
	RequestTimeout    time.Duration
	ValidationTimeout time.Duration
}

// Client is the resilient Hevy API client. All request issuance flows
// through Request; it is the exclusive retry point in the agent.
//
// Thread safety: safe for concurrent use. The breaker and cache guard
// their own state.
type Client struct {
	exec    *Executor
	breaker *Breaker
	cache   *ResponseCache
	rates   *RateLimitTracker
	cfg     ClientConfig
	clk     clock.Clock

	// jitter returns a value in [0,1); injectable for deterministic tests.
	jitter func() float64
}

// NewClient composes the resilient client from its layers.
func NewClient(exec *Executor, breaker *Breaker, cache *ResponseCache, rates *RateLimitTracker, cfg ClientConfig, clk clock.Clock) *Client {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Client{
		exec:    exec,
		breaker: breaker,
		cache:   cache,
		rates:   rates,
		cfg:     cfg,
		clk:     clk,
		jitter:  rand.Float64,
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, path, query, nil)
}

// Request performs one API operation with the full resilience pipeline:
// circuit check, cache lookup (GET only), execution, retry with jittered
// exponential backoff, breaker and rate-limit bookkeeping, cache store.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, payload any) (json.RawMessage, error) {
	if err := c.breaker.Check(path); err != nil {
		metrics.APIRequests.WithLabelValues("rejected").Inc()
		return nil, err
	}

	isGet := method == http.MethodGet
	fp := Fingerprint(path, query)
	if isGet {
		if cached := c.cache.Get(fp); cached != nil {
			// A cache hit records neither breaker success nor rate-limit
			// state; the transport was never consulted.
			metrics.APIRequests.WithLabelValues("cache_hit").Inc()
			logging.Trace().Str("fingerprint", fp).Msg("Response cache hit")
			return cached, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		start := c.clk.Now()
		view, result, err := c.exec.Execute(ctx, method, path, query, payload, false)
		metrics.APIRequestDuration.Observe(c.clk.Since(start).Seconds())

		// Classified failures carry their response too; a 429's headers
		// are exactly when the remaining budget matters.
		if view != nil {
			c.rates.Observe(view.Headers)
		}

		if err == nil {
			c.breaker.RecordSuccess()
			metrics.APIRequests.WithLabelValues("success").Inc()
			if isGet && len(result) > 0 {
				c.cache.Put(fp, result)
			}
			return result, nil
		}

		lastErr = err

		if IsRetryable(err) && attempt < c.cfg.MaxRetries-1 {
			delay := c.backoff(attempt)
			logging.Warn().
				Err(err).
				Str("path", path).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("Retrying API request")
			metrics.APIRetries.Inc()
			// Retried failures are not recorded on the breaker; only the
			// terminal outcome counts.
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				c.breaker.RecordFailure(err)
				metrics.APIRequests.WithLabelValues("failure").Inc()
				return nil, sleepErr
			}
			continue
		}

		c.breaker.RecordFailure(err)
		metrics.APIRequests.WithLabelValues("failure").Inc()
		return nil, err
	}

	return nil, lastErr
}

// backoff computes the delay before retry attempt+1: exponential growth
// capped at MaxDelay, scaled by a jitter factor in [0.5, 1.0).
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.BaseDelay << uint(attempt)
	if delay <= 0 || delay > c.cfg.MaxDelay {
		delay = c.cfg.MaxDelay
	}
	factor := 0.5 + c.jitter()*0.5
	return time.Duration(float64(delay) * factor)
}

// sleep waits for d or until ctx is done.
func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-c.clk.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetAPIKey swaps the key used for subsequent requests.
func (c *Client) SetAPIKey(key string) {
	c.exec.SetAPIKey(key)
}

// RateLimitInfo returns the latest observed rate-limit snapshot, if any.
func (c *Client) RateLimitInfo() *RateLimitSnapshot {
	return c.rates.Info()
}

// ClearCache drops both cache tiers.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// ValidateKey checks connectivity and key validity with a short-timeout GET
// against the lightweight workouts-count endpoint. HTTP 401 maps to
// ErrInvalidAPIKey; network-class failures are rewritten to a user-facing
// connectivity error.
func (c *Client) ValidateKey(ctx context.Context) error {
	_, _, err := c.exec.Execute(ctx, http.MethodGet, "workouts/count", nil, nil, true)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidAPIKey) {
		return ErrInvalidAPIKey
	}
	if isNetworkError(err) {
		return fmt.Errorf("could not reach the Hevy API, please check your connection: %w", err)
	}
	return err
}

// isNetworkError reports whether the error message looks like a transport
// failure rather than an API response.
func isNetworkError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "deadline exceeded", "dns error", "no such host", "network", "connection refused"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
