// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

import (
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hevysync/internal/props"
)

func newTestCache(maxEntries int) (*ResponseCache, *props.MemoryStore) {
	store := props.NewMemoryStore(nil)
	return NewResponseCache(store, maxEntries, 10*time.Minute), store
}

func TestFingerprint_SortsQuery(t *testing.T) {
	a := Fingerprint("workouts", url.Values{"b": {"2"}, "a": {"1"}})
	b := Fingerprint("workouts", url.Values{"a": {"1"}, "b": {"2"}})
	if a != b {
		t.Errorf("Fingerprints differ for equal queries: %q vs %q", a, b)
	}
	if a != "workouts?a=1&b=2" {
		t.Errorf("Unexpected fingerprint %q", a)
	}
}

func TestResponseCache_MissForUnseen(t *testing.T) {
	cache, _ := newTestCache(10)
	if got := cache.Get("workouts?page=1"); got != nil {
		t.Errorf("Expected miss, got %q", got)
	}
}

func TestResponseCache_PutGet(t *testing.T) {
	cache, _ := newTestCache(10)
	payload := json.RawMessage(`{"workouts":[]}`)

	cache.Put("workouts?page=1", payload)

	got := cache.Get("workouts?page=1")
	if string(got) != string(payload) {
		t.Errorf("Expected %s, got %s", payload, got)
	}
}

func TestResponseCache_FIFOEviction(t *testing.T) {
	cache, _ := newTestCache(3)

	for i := 1; i <= 3; i++ {
		cache.Put(fmt.Sprintf("p%d", i), json.RawMessage(`1`))
	}

	// Re-inserting p1 must not refresh its insertion order (FIFO, not LRU).
	cache.Put("p1", json.RawMessage(`2`))

	cache.Put("p4", json.RawMessage(`1`))

	if cache.Len() != 3 {
		t.Fatalf("Expected memory cardinality 3, got %d", cache.Len())
	}
	// p1 was the earliest-inserted entry; it must be gone from memory.
	// It is still in the durable tier, so bypass Get and inspect Len only
	// after another insertion cycle.
	cache.Put("p5", json.RawMessage(`1`))
	if cache.Len() != 3 {
		t.Errorf("Memory cardinality exceeded bound: %d", cache.Len())
	}
}

func TestResponseCache_BoundNeverExceeded(t *testing.T) {
	cache, _ := newTestCache(5)
	for i := 0; i < 50; i++ {
		cache.Put(fmt.Sprintf("p%d", i), json.RawMessage(`1`))
		if cache.Len() > 5 {
			t.Fatalf("Memory cardinality %d exceeds bound 5", cache.Len())
		}
	}
}

func TestResponseCache_DurableRepopulatesMemory(t *testing.T) {
	store := props.NewMemoryStore(nil)
	first := NewResponseCache(store, 10, 10*time.Minute)
	first.Put("workouts?page=1", json.RawMessage(`{"a":1}`))

	// A fresh cache over the same durable store simulates a new process.
	second := NewResponseCache(store, 10, 10*time.Minute)
	if second.Len() != 0 {
		t.Fatalf("Expected empty memory tier, got %d", second.Len())
	}

	got := second.Get("workouts?page=1")
	if string(got) != `{"a":1}` {
		t.Fatalf("Expected durable hit, got %q", got)
	}
	if second.Len() != 1 {
		t.Errorf("Durable hit must repopulate memory, got len %d", second.Len())
	}
}

func TestResponseCache_CorruptDurableEntryRemoved(t *testing.T) {
	store := props.NewMemoryStore(nil)
	cache := NewResponseCache(store, 10, 10*time.Minute)

	if err := store.Set(props.CacheKeyPrefix+"bad", []byte("{not json"), 0); err != nil {
		t.Fatal(err)
	}

	if got := cache.Get("bad"); got != nil {
		t.Errorf("Expected miss for corrupt entry, got %q", got)
	}
	if _, ok, _ := store.Get(props.CacheKeyPrefix + "bad"); ok {
		t.Error("Corrupt durable entry should have been removed")
	}
}

func TestResponseCache_ClearRemovesTrackedDurableKeys(t *testing.T) {
	store := props.NewMemoryStore(nil)
	cache := NewResponseCache(store, 10, 10*time.Minute)

	cache.Put("p1", json.RawMessage(`1`))
	cache.Put("p2", json.RawMessage(`2`))
	if err := store.Set(props.KeyRateLimitInfo, []byte(`{}`), 0); err != nil {
		t.Fatal(err)
	}

	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("Expected empty memory tier after Clear, got %d", cache.Len())
	}
	for _, fp := range []string{"p1", "p2"} {
		if _, ok, _ := store.Get(props.CacheKeyPrefix + fp); ok {
			t.Errorf("Durable entry %s should be removed by Clear", fp)
		}
	}
	if _, ok, _ := store.Get(props.KeyRateLimitInfo); ok {
		t.Error("Rate-limit snapshot should be removed by Clear")
	}
}
