// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

import (
	"errors"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/tomtom215/hevysync/internal/logging"
	"github.com/tomtom215/hevysync/internal/metrics"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	// BreakerClosed admits all calls.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the reset timeout elapses.
	BreakerOpen
	// BreakerHalfOpen admits probes; the next outcome decides the state.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a weighted-failure circuit breaker.
//
// Failures accumulate fractional weight: transient upstream statuses
// (429, 502, 503, 504) count 0.5, everything else 1.0, and a rejection by
// the breaker itself counts 0 so the breaker never trips itself. The
// circuit opens when the running weight reaches the threshold (>=) and
// half-opens after the reset timeout elapses on the next Check.
type Breaker struct {
	mu sync.Mutex

	clk       clock.PassiveClock
	threshold float64
	reset     time.Duration

	state       BreakerState
	weight      float64
	lastFailure time.Time // zero until the first recorded failure
}

// NewBreaker creates a closed breaker. The threshold is the failure weight
// at which the circuit opens; reset is how long the circuit stays open
// before probing.
func NewBreaker(threshold float64, reset time.Duration, clk clock.PassiveClock) *Breaker {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Breaker{
		clk:       clk,
		threshold: threshold,
		reset:     reset,
		state:     BreakerClosed,
	}
}

// Check admits or rejects a call against endpoint. While OPEN and past the
// reset timeout it transitions to HALF_OPEN (zeroing the weight) and admits
// the probe. While OPEN otherwise it returns a CircuitOpenError carrying
// the remaining wait.
func (b *Breaker) Check(endpoint string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return nil
	}

	elapsed := b.clk.Now().Sub(b.lastFailure)
	if elapsed > b.reset {
		b.transition(BreakerHalfOpen)
		b.weight = 0
		return nil
	}

	return &CircuitOpenError{
		Endpoint:   endpoint,
		RetryAfter: b.reset - elapsed,
	}
}

// RecordSuccess clears failure bookkeeping. HALF_OPEN closes the circuit
// and zeroes the weight in the same critical section.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.transition(BreakerClosed)
		b.weight = 0
		b.lastFailure = time.Time{}
	case BreakerClosed:
		b.weight = 0
	case BreakerOpen:
		// Success cannot be observed while open; Check rejects first.
	}
}

// RecordFailure adds the error's weight and opens the circuit once the
// threshold is reached.
func (b *Breaker) RecordFailure(err error) {
	w := failureWeight(err)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.weight += w
	b.lastFailure = b.clk.Now()

	if b.weight >= b.threshold && b.state != BreakerOpen {
		logging.Warn().
			Float64("weight", b.weight).
			Float64("threshold", b.threshold).
			Msg("Circuit breaker opening")
		b.transition(BreakerOpen)
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Weight returns the accumulated failure weight. Test helper.
func (b *Breaker) Weight() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.weight
}

// transition changes state and updates the gauge (must hold mu).
func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	logging.Info().
		Str("from", b.state.String()).
		Str("to", to.String()).
		Msg("Circuit breaker state transition")
	b.state = to
	metrics.BreakerState.Set(float64(to))
}

// failureWeight maps an error to its breaker weight. First matching rule
// wins: breaker rejections weigh nothing, transient upstream statuses weigh
// half, everything else weighs one.
func failureWeight(err error) float64 {
	var open *CircuitOpenError
	if errors.As(err, &open) {
		return 0
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case 429, 502, 503, 504:
			return 0.5
		}
	}
	return 1.0
}
