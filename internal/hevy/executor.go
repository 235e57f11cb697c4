// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// maxErrorBodySize limits how much of a response body is retained for
// error diagnostics.
const maxErrorBodySize = 64 * 1024 // 64KB

// EmptyPayload is the result of an HTTP 204: success with no body. It is
// non-nil and zero-length, distinguishable from a nil (absent) payload.
var EmptyPayload = json.RawMessage{}

// Transport abstracts the HTTP round trip so tests can substitute a fake.
// *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResponseView carries the raw outcome of an executed request.
type ResponseView struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Executor builds, performs, and classifies Hevy API requests.
type Executor struct {
	baseURL           string
	transport         Transport
	requestTimeout    time.Duration
	validationTimeout time.Duration

	mu     sync.RWMutex
	apiKey string
}

// SetAPIKey replaces the key attached to subsequent requests, after the
// operator re-enters a rejected key.
func (e *Executor) SetAPIKey(key string) {
	e.mu.Lock()
	e.apiKey = key
	e.mu.Unlock()
}

func (e *Executor) currentKey() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.apiKey
}

// NewExecutor creates an executor for the given base URL and key.
func NewExecutor(baseURL, apiKey string, transport Transport, requestTimeout, validationTimeout time.Duration) *Executor {
	if transport == nil {
		transport = &http.Client{}
	}
	return &Executor{
		baseURL:           strings.TrimRight(baseURL, "/"),
		apiKey:            apiKey,
		transport:         transport,
		requestTimeout:    requestTimeout,
		validationTimeout: validationTimeout,
	}
}

// serializePayload applies the payload rules in order: byte slices and
// raw JSON pass through, anything else is JSON-encoded.
func serializePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	case string:
		return []byte(p), nil
	default:
		encoded, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode request payload: %w", err)
		}
		return encoded, nil
	}
}

// Execute performs one request and classifies the response. On a
// classified failure the view is still returned (when a response was
// received) so callers can inspect headers.
//
// The forValidation flag selects the shorter key-validation timeout.
func (e *Executor) Execute(ctx context.Context, method, path string, query url.Values, payload any, forValidation bool) (*ResponseView, json.RawMessage, error) {
	reqURL := e.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	body, err := serializePayload(payload)
	if err != nil {
		return nil, nil, err
	}

	timeout := e.requestTimeout
	if forValidation {
		timeout = e.validationTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, reqURL, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", e.currentKey())

	resp, err := e.transport.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read response body: %w", err)
	}
	if len(respBody) > maxErrorBodySize {
		respBody = append(respBody[:maxErrorBodySize], []byte("\n... (truncated)")...)
	}

	view := &ResponseView{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    respBody,
	}

	payloadOut, err := classify(view)
	return view, payloadOut, err
}

// classify maps an HTTP response to a payload or a tagged error.
func classify(view *ResponseView) (json.RawMessage, error) {
	switch {
	case view.Status == http.StatusNoContent:
		return EmptyPayload, nil

	case view.Status >= 200 && view.Status <= 299:
		trimmed := bytes.TrimSpace(view.Body)
		if len(trimmed) == 0 {
			return EmptyPayload, nil
		}
		if !json.Valid(trimmed) {
			return nil, &BadJSONError{Status: view.Status, Body: view.Body}
		}
		return json.RawMessage(trimmed), nil

	case view.Status == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAPIKey, string(view.Body))

	default:
		return nil, newAPIError(view.Status, view.Body)
	}
}
