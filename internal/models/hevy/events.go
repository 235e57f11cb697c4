// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

// Event type discriminators on the workouts/events stream.
const (
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// WorkoutEvent is one entry from workouts/events. Updated events carry
// the full workout; deleted events carry only an id, which some API
// versions place at the top level and others inside a stub workout
// object.
type WorkoutEvent struct {
	Type    string   `json:"type"`
	ID      string   `json:"id,omitempty"`
	Workout *Workout `json:"workout,omitempty"`
}

// WorkoutID resolves the workout id regardless of where the event put it.
// Returns "" when neither location is populated.
func (e WorkoutEvent) WorkoutID() string {
	if e.ID != "" {
		return e.ID
	}
	if e.Workout != nil {
		return e.Workout.ID
	}
	return ""
}
