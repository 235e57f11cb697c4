// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"k8s.io/utils/clock"

	"github.com/tomtom215/hevysync/internal/logging"
	"github.com/tomtom215/hevysync/internal/metrics"
	"github.com/tomtom215/hevysync/internal/props"
)

// lowBudgetRatio is the remaining/limit ratio below which a warning is
// emitted.
const lowBudgetRatio = 0.10

// RateLimitSnapshot is the most recently observed rate-limit state. All
// fields are optional; absent headers leave the pointer nil.
type RateLimitSnapshot struct {
	Remaining  *int      `json:"remaining,omitempty"`
	Limit      *int      `json:"limit,omitempty"`
	ResetEpoch *int64    `json:"reset_epoch,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// RateLimitTracker parses X-RateLimit-* response headers and persists the
// latest snapshot to the durable store with the cache TTL.
type RateLimitTracker struct {
	store props.Store
	clk   clock.PassiveClock
	ttl   time.Duration
}

// NewRateLimitTracker creates a tracker over the durable store.
func NewRateLimitTracker(store props.Store, ttl time.Duration, clk clock.PassiveClock) *RateLimitTracker {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &RateLimitTracker{store: store, clk: clk, ttl: ttl}
}

// Observe extracts rate-limit headers from a response. If at least one is
// present the snapshot is persisted; a budget below 10% logs a warning.
// Header lookup is case-insensitive per http.Header semantics.
func (t *RateLimitTracker) Observe(headers http.Header) {
	snapshot := RateLimitSnapshot{ObservedAt: t.clk.Now().UTC()}
	present := false

	if v := headers.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			snapshot.Remaining = &n
			present = true
		}
	}
	if v := headers.Get("X-RateLimit-Limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			snapshot.Limit = &n
			present = true
		}
	}
	if v := headers.Get("X-RateLimit-Reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			snapshot.ResetEpoch = &n
			present = true
		}
	}

	if !present {
		return
	}

	if snapshot.Remaining != nil {
		metrics.RateLimitRemaining.Set(float64(*snapshot.Remaining))
	}
	if snapshot.Remaining != nil && snapshot.Limit != nil && *snapshot.Limit > 0 {
		ratio := float64(*snapshot.Remaining) / float64(*snapshot.Limit)
		if ratio < lowBudgetRatio {
			logging.Warn().
				Int("remaining", *snapshot.Remaining).
				Int("limit", *snapshot.Limit).
				Msg("API rate-limit budget low")
		}
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to serialize rate-limit snapshot")
		return
	}
	if err := t.store.Set(props.KeyRateLimitInfo, raw, t.ttl); err != nil {
		logging.Warn().Err(err).Msg("Failed to persist rate-limit snapshot")
	}
}

// Info returns the latest durable snapshot, or nil when none was observed
// (or the stored one aged out).
func (t *RateLimitTracker) Info() *RateLimitSnapshot {
	raw, ok, err := t.store.Get(props.KeyRateLimitInfo)
	if err != nil || !ok {
		return nil
	}
	var snapshot RateLimitSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil
	}
	return &snapshot
}
