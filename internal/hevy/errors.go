// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidAPIKey is returned whenever the API answers HTTP 401. The caller
// is expected to clear the stored key and re-prompt the user.
var ErrInvalidAPIKey = errors.New("invalid API key (HTTP 401)")

// APIError is a classified non-success HTTP response. Status decides
// retryability; Body carries the raw response for diagnostics.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// stockMessages are the fixed messages for well-known client errors.
var stockMessages = map[int]string{
	400: "bad request",
	403: "access forbidden",
	404: "resource not found",
	429: "rate limit exceeded",
}

// newAPIError builds an APIError for the given status, using a stock
// message when one exists.
func newAPIError(status int, body []byte) *APIError {
	msg, ok := stockMessages[status]
	if !ok {
		msg = fmt.Sprintf("API request failed with status %d", status)
	}
	return &APIError{Status: status, Message: msg, Body: body}
}

// CircuitOpenError is returned by the breaker while OPEN. It is final:
// never retried and never recorded as a breaker failure.
type CircuitOpenError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s, retry in %ds",
		e.Endpoint, int(e.RetryAfter.Seconds()))
}

// BadJSONError is a 2xx response whose body failed to decode.
type BadJSONError struct {
	Status int
	Body   []byte
}

func (e *BadJSONError) Error() string {
	return fmt.Sprintf("invalid JSON in response (HTTP %d)", e.Status)
}

// CancelledError reports a cooperative cancellation: the deadline closure
// fired between page fetches or upsert batches.
type CancelledError struct {
	Path string
	Page int
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("import cancelled by timeout at %s page %d", e.Path, e.Page)
}

// ValidationError reports bad input with a field-specific message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// IsRetryable reports whether err is an APIError whose status is in the
// retryable set. Only the resilient client consults this; higher layers
// never retry.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
