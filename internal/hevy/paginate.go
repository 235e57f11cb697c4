// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/hevysync/internal/logging"
	"github.com/tomtom215/hevysync/internal/metrics"
)

// PageFunc consumes one page of items. Returning an error aborts the walk.
type PageFunc func(items []json.RawMessage) error

// CancelFunc is a cooperative cancellation probe, checked only between
// page fetches.
type CancelFunc func() bool

// Paginator walks paginated endpoints through the resilient client,
// streaming each page to a consumer callback.
type Paginator struct {
	client *Client

	// maxPages is the hard ceiling protecting against a misbehaving
	// server that never signals exhaustion.
	maxPages int

	// interPageDelay paces successive page fetches.
	interPageDelay time.Duration
}

// NewPaginator creates a paginator over the client.
func NewPaginator(client *Client, maxPages int, interPageDelay time.Duration) *Paginator {
	return &Paginator{
		client:         client,
		maxPages:       maxPages,
		interPageDelay: interPageDelay,
	}
}

// pageEnvelope is the common shape of paginated responses: the items live
// under a per-endpoint key, with an optional total page count.
type pageEnvelope struct {
	PageCount *int `json:"page_count"`
}

// FetchPaginated walks path starting at page 1, invoking onPage per page,
// and returns the total number of items delivered.
//
// The walk stops on an empty page, a short page (fewer than pageSize
// items), reaching the advertised page_count, or a 404 (some endpoints
// signal exhaustion this way). Exceeding the page ceiling is fatal.
// cancel, when non-nil, is checked before each fetch; a true result fails
// the walk with a CancelledError.
func (p *Paginator) FetchPaginated(ctx context.Context, path string, pageSize int, dataKey string, extra url.Values, onPage PageFunc, cancel CancelFunc) (int, error) {
	limiter := rate.NewLimiter(rate.Every(p.interPageDelay), 1)
	// Drain the initial token so the very first inter-page wait pays the
	// full delay; the limiter otherwise starts with a free pass.
	limiter.Allow()
	total := 0

	for page := 1; ; page++ {
		if page > p.maxPages {
			return total, fmt.Errorf("page ceiling exceeded walking %s: page %d, %d items processed", path, page, total)
		}
		if cancel != nil && cancel() {
			return total, &CancelledError{Path: path, Page: page}
		}
		if page > 1 {
			if err := limiter.Wait(ctx); err != nil {
				return total, err
			}
		}

		query := url.Values{}
		for key, values := range extra {
			query[key] = values
		}
		query.Set("page", strconv.Itoa(page))
		query.Set("page_size", strconv.Itoa(pageSize))

		payload, err := p.client.Get(ctx, path, query)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == 404 {
				// End-of-stream: the endpoint 404s past its last page.
				logging.Debug().Str("path", path).Int("page", page).Msg("Pagination ended by 404")
				return total, nil
			}
			return total, err
		}

		items, envelope, err := decodePage(payload, dataKey)
		if err != nil {
			return total, fmt.Errorf("decode page %d of %s: %w", page, path, err)
		}
		metrics.PagesFetched.WithLabelValues(path).Inc()

		if len(items) == 0 {
			return total, nil
		}

		if err := onPage(items); err != nil {
			return total, err
		}
		total += len(items)

		if len(items) < pageSize {
			return total, nil
		}
		if envelope.PageCount != nil && page >= *envelope.PageCount {
			return total, nil
		}
	}
}

// decodePage extracts the item array under dataKey plus the envelope
// metadata.
func decodePage(payload json.RawMessage, dataKey string) ([]json.RawMessage, pageEnvelope, error) {
	var envelope pageEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, envelope, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, envelope, err
	}

	raw, ok := fields[dataKey]
	if !ok {
		return nil, envelope, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, envelope, fmt.Errorf("field %q is not an array: %w", dataKey, err)
	}
	return items, envelope, nil
}
