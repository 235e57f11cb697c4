// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

import (
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hevysync/internal/logging"
	"github.com/tomtom215/hevysync/internal/metrics"
	"github.com/tomtom215/hevysync/internal/props"
)

// Fingerprint canonically identifies a cacheable GET: path plus sorted
// query parameters.
func Fingerprint(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	// url.Values.Encode sorts by key.
	return path + "?" + query.Encode()
}

// durableEntry is the serialized form written to the durable tier.
type durableEntry struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
}

// memoryCacheEntry tracks a payload with its first-insertion order.
type memoryCacheEntry struct {
	payload json.RawMessage
	seq     uint64
}

// ResponseCache is the two-tier GET response cache: a bounded in-memory
// mapping (FIFO eviction by first-insertion order) over the durable
// property store (per-entry TTL).
//
// Invariants: the memory tier never exceeds maxEntries; every memory entry
// was written through to the durable tier; a durable hit repopulates the
// memory tier.
type ResponseCache struct {
	mu sync.Mutex

	store      props.Store
	maxEntries int
	ttl        time.Duration

	entries map[string]memoryCacheEntry
	nextSeq uint64
}

// NewResponseCache creates a response cache over the given durable store.
func NewResponseCache(store props.Store, maxEntries int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		store:      store,
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]memoryCacheEntry, maxEntries),
	}
}

// Get returns the cached payload for fp, or nil on miss. A memory miss
// falls through to the durable tier; a durable hit repopulates memory.
// Corrupt durable entries are removed and read as a miss.
func (c *ResponseCache) Get(fp string) json.RawMessage {
	c.mu.Lock()
	if entry, ok := c.entries[fp]; ok {
		c.mu.Unlock()
		metrics.CacheHits.WithLabelValues("memory").Inc()
		return entry.payload
	}
	c.mu.Unlock()

	raw, ok, err := c.store.Get(props.CacheKeyPrefix + fp)
	if err != nil {
		logging.Warn().Err(err).Str("fingerprint", fp).Msg("Durable cache read failed")
		metrics.CacheMisses.Inc()
		return nil
	}
	if !ok {
		metrics.CacheMisses.Inc()
		return nil
	}

	var entry durableEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		logging.Warn().Err(err).Str("fingerprint", fp).Msg("Removing corrupt durable cache entry")
		if delErr := c.store.Delete(props.CacheKeyPrefix + fp); delErr != nil {
			logging.Warn().Err(delErr).Str("fingerprint", fp).Msg("Failed to remove corrupt entry")
		}
		metrics.CacheMisses.Inc()
		return nil
	}

	c.mu.Lock()
	c.insertLocked(fp, entry.Payload)
	c.mu.Unlock()

	metrics.CacheHits.WithLabelValues("durable").Inc()
	return entry.Payload
}

// Put stores a successful GET payload in both tiers. A durable-tier write
// failure is logged but not fatal.
func (c *ResponseCache) Put(fp string, payload json.RawMessage) {
	c.mu.Lock()
	c.insertLocked(fp, payload)
	c.mu.Unlock()

	entry := durableEntry{Payload: payload, StoredAt: time.Now().UTC()}
	raw, err := json.Marshal(entry)
	if err != nil {
		logging.Warn().Err(err).Str("fingerprint", fp).Msg("Failed to serialize cache entry")
		return
	}
	if err := c.store.Set(props.CacheKeyPrefix+fp, raw, c.ttl); err != nil {
		logging.Warn().Err(err).Str("fingerprint", fp).Msg("Durable cache write failed")
	}
}

// insertLocked adds fp to the memory tier, evicting the earliest-inserted
// entry when a new fingerprint would exceed capacity (must hold mu).
func (c *ResponseCache) insertLocked(fp string, payload json.RawMessage) {
	if existing, ok := c.entries[fp]; ok {
		// Overwrite keeps the original insertion order.
		existing.payload = payload
		c.entries[fp] = existing
		return
	}

	for len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	c.entries[fp] = memoryCacheEntry{payload: payload, seq: c.nextSeq}
	c.nextSeq++
}

// evictOldestLocked removes the entry with the lowest insertion sequence
// (must hold mu).
func (c *ResponseCache) evictOldestLocked() {
	var (
		oldestKey string
		oldestSeq uint64
		found     bool
	)
	for key, entry := range c.entries {
		if !found || entry.seq < oldestSeq {
			oldestKey = key
			oldestSeq = entry.seq
			found = true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		metrics.CacheEvictions.Inc()
	}
}

// Clear drops all memory entries and best-effort removes every durable key
// currently tracked in memory, plus the rate-limit snapshot. Orphan durable
// entries age out by TTL; the durable tier is not globally enumerable
// through this interface.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	tracked := make([]string, 0, len(c.entries))
	for fp := range c.entries {
		tracked = append(tracked, fp)
	}
	c.entries = make(map[string]memoryCacheEntry, c.maxEntries)
	c.mu.Unlock()

	for _, fp := range tracked {
		if err := c.store.Delete(props.CacheKeyPrefix + fp); err != nil {
			logging.Warn().Err(err).Str("fingerprint", fp).Msg("Failed to remove durable cache entry")
		}
	}
	if err := c.store.Delete(props.KeyRateLimitInfo); err != nil {
		logging.Warn().Err(err).Msg("Failed to remove rate-limit snapshot")
	}
}

// Len reports the memory-tier cardinality. Test helper.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
