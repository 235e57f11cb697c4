// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

// Package timer schedules one-shot deferred triggers, so saving an API
// key can return promptly while the first import fires shortly after.
package timer

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/hevysync/internal/logging"
)

// Registry tracks pending one-shot triggers by id.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*entry
}

type entry struct {
	tag   string
	timer *time.Timer
	at    time.Time
}

// Trigger describes one pending trigger.
type Trigger struct {
	ID  string
	Tag string
	At  time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]*entry)}
}

// Schedule arms fn to run once after delay and returns the trigger id.
// The trigger removes itself from the registry when it fires.
func (r *Registry) Schedule(tag string, delay time.Duration, fn func()) string {
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[id] = &entry{
		tag: tag,
		at:  time.Now().Add(delay),
		timer: time.AfterFunc(delay, func() {
			r.mu.Lock()
			delete(r.pending, id)
			r.mu.Unlock()
			logging.Debug().Str("tag", tag).Msg("Deferred trigger fired")
			fn()
		}),
	}
	return id
}

// Pending lists triggers that have not fired, optionally filtered by tag
// ("" matches all).
func (r *Registry) Pending(tag string) []Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Trigger
	for id, e := range r.pending {
		if tag != "" && e.tag != tag {
			continue
		}
		out = append(out, Trigger{ID: id, Tag: e.tag, At: e.at})
	}
	return out
}

// Cancel stops a pending trigger. Returns false when the id is unknown
// or the trigger already fired.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[id]
	if !ok {
		return false
	}
	delete(r.pending, id)
	return e.timer.Stop()
}

// CancelAll stops every pending trigger with the tag ("" matches all)
// and returns how many were stopped.
func (r *Registry) CancelAll(tag string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	stopped := 0
	for id, e := range r.pending {
		if tag != "" && e.tag != tag {
			continue
		}
		delete(r.pending, id)
		if e.timer.Stop() {
			stopped++
		}
	}
	return stopped
}
