// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeTransport replays scripted responses and records the requests it saw.
type fakeTransport struct {
	mu        sync.Mutex
	responses []fakeResponse
	requests  []*http.Request
	bodies    []string
}

type fakeResponse struct {
	status  int
	body    string
	headers http.Header
	err     error
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	body := ""
	if req.Body != nil && req.Body != http.NoBody {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}
	f.bodies = append(f.bodies, body)

	if len(f.responses) == 0 {
		return nil, errors.New("fakeTransport: no scripted response")
	}
	next := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	if next.err != nil {
		return nil, next.err
	}
	headers := next.headers
	if headers == nil {
		headers = http.Header{}
	}
	return &http.Response{
		StatusCode: next.status,
		Header:     headers,
		Body:       io.NopCloser(strings.NewReader(next.body)),
	}, nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestExecutor(transport Transport) *Executor {
	return NewExecutor("https://api.example.test/v1", "0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9",
		transport, 30*time.Second, 15*time.Second)
}

func TestExecutor_AttachesHeadersAndURL(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{{status: 200, body: `{}`}}}
	exec := newTestExecutor(transport)

	_, _, err := exec.Execute(context.Background(), http.MethodGet, "workouts", nil, nil, false)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	req := transport.requests[0]
	if req.URL.String() != "https://api.example.test/v1/workouts" {
		t.Errorf("Unexpected URL %s", req.URL)
	}
	if got := req.Header.Get("api-key"); got != "0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9" {
		t.Errorf("Missing api-key header, got %q", got)
	}
	if got := req.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Expected JSON accept header, got %q", got)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Expected JSON content type, got %q", got)
	}
}

func TestExecutor_204YieldsEmptyPayload(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{{status: 204}}}
	exec := newTestExecutor(transport)

	_, payload, err := exec.Execute(context.Background(), http.MethodGet, "workouts", nil, nil, false)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if payload == nil {
		t.Fatal("204 payload must be non-nil (distinguished from absent)")
	}
	if len(payload) != 0 {
		t.Errorf("204 payload must be empty, got %q", payload)
	}
}

func TestExecutor_BadJSONOn2xx(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{{status: 200, body: "{broken"}}}
	exec := newTestExecutor(transport)

	_, _, err := exec.Execute(context.Background(), http.MethodGet, "workouts", nil, nil, false)
	var badJSON *BadJSONError
	if !errors.As(err, &badJSON) {
		t.Fatalf("Expected BadJSONError, got %v", err)
	}
	if badJSON.Status != 200 || string(badJSON.Body) != "{broken" {
		t.Errorf("BadJSONError missing diagnostics: %+v", badJSON)
	}
}

func TestExecutor_401MapsToInvalidKey(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{{status: 401, body: `{"error":"unauthorized"}`}}}
	exec := newTestExecutor(transport)

	_, _, err := exec.Execute(context.Background(), http.MethodGet, "workouts", nil, nil, false)
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("Expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestExecutor_Classification(t *testing.T) {
	cases := []struct {
		status  int
		message string
	}{
		{400, "bad request"},
		{403, "access forbidden"},
		{404, "resource not found"},
		{429, "rate limit exceeded"},
		{500, "API request failed with status 500"},
		{503, "API request failed with status 503"},
	}

	for _, tc := range cases {
		transport := &fakeTransport{responses: []fakeResponse{{status: tc.status, body: "detail"}}}
		exec := newTestExecutor(transport)

		_, _, err := exec.Execute(context.Background(), http.MethodGet, "workouts", nil, nil, false)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: expected APIError, got %v", tc.status, err)
		}
		if apiErr.Status != tc.status {
			t.Errorf("status %d: got %d", tc.status, apiErr.Status)
		}
		if apiErr.Message != tc.message {
			t.Errorf("status %d: expected %q, got %q", tc.status, tc.message, apiErr.Message)
		}
		if string(apiErr.Body) != "detail" {
			t.Errorf("status %d: body not carried: %q", tc.status, apiErr.Body)
		}
	}
}

func TestExecutor_PayloadSerialization(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{
		{status: 200, body: `{}`},
		{status: 200, body: `{}`},
	}}
	exec := newTestExecutor(transport)

	// Byte payloads pass through untouched.
	_, _, err := exec.Execute(context.Background(), http.MethodPost, "routines", nil, []byte(`{"raw":true}`), false)
	if err != nil {
		t.Fatal(err)
	}
	if transport.bodies[0] != `{"raw":true}` {
		t.Errorf("Byte payload altered: %q", transport.bodies[0])
	}

	// Structs are JSON-encoded.
	_, _, err = exec.Execute(context.Background(), http.MethodPost, "routines", nil,
		map[string]int{"reps": 5}, false)
	if err != nil {
		t.Fatal(err)
	}
	if transport.bodies[1] != `{"reps":5}` {
		t.Errorf("Struct payload encoding: %q", transport.bodies[1])
	}
}

func TestExecutor_JSONRoundTrip(t *testing.T) {
	body := `{"id":"w1","sets":[{"reps":5,"weight_kg":100.5}]}`
	transport := &fakeTransport{responses: []fakeResponse{{status: 200, body: body}}}
	exec := newTestExecutor(transport)

	_, payload, err := exec.Execute(context.Background(), http.MethodGet, "workouts/w1", nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != body {
		t.Errorf("Round trip altered payload: %q", payload)
	}
}
