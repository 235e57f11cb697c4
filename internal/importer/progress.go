// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

// Package importer drives the import pipeline: the orchestrated step
// sequence, the per-resource import steps, and the event-driven delta
// path for workouts.
package importer

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/tomtom215/hevysync/internal/logging"
	"github.com/tomtom215/hevysync/internal/props"
)

// ProgressRecord is the durable checkpoint of a run: which steps have
// completed and which operations were deferred to a later run.
type ProgressRecord struct {
	Completed []string `json:"completed"`
	Deferred  []string `json:"deferred,omitempty"`
}

// Has reports whether step is in the completed set.
func (r ProgressRecord) Has(step string) bool {
	for _, s := range r.Completed {
		if s == step {
			return true
		}
	}
	return false
}

// Union adds step to the completed set if absent.
func (r *ProgressRecord) Union(step string) {
	if !r.Has(step) {
		r.Completed = append(r.Completed, step)
	}
}

// activeMarker is the durable liveness record of a running import.
type activeMarker struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Tracker persists import progress and the active-import marker.
type Tracker struct {
	store      props.Store
	staleAfter time.Duration
	clk        clock.PassiveClock

	runID string
}

// NewTracker creates a tracker over store. A marker whose heartbeat is
// older than staleAfter counts as abandoned. clk defaults to the real
// clock.
func NewTracker(store props.Store, staleAfter time.Duration, clk clock.PassiveClock) *Tracker {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Tracker{store: store, staleAfter: staleAfter, clk: clk}
}

// Progress reads the durable progress record; missing means empty.
func (t *Tracker) Progress() (ProgressRecord, error) {
	var record ProgressRecord
	raw, ok, err := t.store.Get(props.KeyImportProgress)
	if err != nil {
		return record, fmt.Errorf("failed to read progress record: %w", err)
	}
	if !ok {
		return record, nil
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		// A corrupt record is unrecoverable state; start over.
		logging.Warn().Err(err).Msg("Discarding corrupt progress record")
		return ProgressRecord{}, nil
	}
	return record, nil
}

// SaveProgress persists the record.
func (t *Tracker) SaveProgress(record ProgressRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode progress record: %w", err)
	}
	if err := t.store.Set(props.KeyImportProgress, raw, 0); err != nil {
		return fmt.Errorf("failed to persist progress record: %w", err)
	}
	return nil
}

// ClearProgress removes the record.
func (t *Tracker) ClearProgress() error {
	if err := t.store.Delete(props.KeyImportProgress); err != nil {
		return fmt.Errorf("failed to clear progress record: %w", err)
	}
	return nil
}

// MarkActive writes a fresh active marker for this run.
func (t *Tracker) MarkActive() error {
	now := t.clk.Now()
	t.runID = uuid.NewString()
	return t.writeMarker(activeMarker{RunID: t.runID, StartedAt: now, LastHeartbeat: now})
}

// Heartbeat refreshes the marker's liveness instant.
func (t *Tracker) Heartbeat() error {
	marker, ok, err := t.readMarker()
	if err != nil {
		return err
	}
	if !ok {
		marker = activeMarker{RunID: t.runID, StartedAt: t.clk.Now()}
	}
	marker.LastHeartbeat = t.clk.Now()
	return t.writeMarker(marker)
}

// IsActive reports whether a fresh marker exists. Stale markers count
// as absent.
func (t *Tracker) IsActive() bool {
	marker, ok, err := t.readMarker()
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read active marker")
		return false
	}
	if !ok {
		return false
	}
	return t.clk.Now().Sub(marker.LastHeartbeat) < t.staleAfter
}

// ClearActive removes the marker.
func (t *Tracker) ClearActive() {
	if err := t.store.Delete(props.KeyImportActive); err != nil {
		logging.Warn().Err(err).Msg("Failed to clear active marker")
	}
}

func (t *Tracker) readMarker() (activeMarker, bool, error) {
	var marker activeMarker
	raw, ok, err := t.store.Get(props.KeyImportActive)
	if err != nil {
		return marker, false, fmt.Errorf("failed to read active marker: %w", err)
	}
	if !ok {
		return marker, false, nil
	}
	if err := json.Unmarshal(raw, &marker); err != nil {
		return marker, false, nil
	}
	return marker, true, nil
}

func (t *Tracker) writeMarker(marker activeMarker) error {
	raw, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("failed to encode active marker: %w", err)
	}
	if err := t.store.Set(props.KeyImportActive, raw, 0); err != nil {
		return fmt.Errorf("failed to persist active marker: %w", err)
	}
	return nil
}
