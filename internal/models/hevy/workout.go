// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

// Workout represents a logged training session from the workouts endpoints.
type Workout struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	UpdatedAt   string `json:"updated_at"`
	CreatedAt   string `json:"created_at"`

	Exercises []WorkoutExercise `json:"exercises"`
}

// WorkoutExercise is one exercise performed within a workout, in logged
// order.
type WorkoutExercise struct {
	Index              int    `json:"index"`
	Title              string `json:"title"`
	Notes              string `json:"notes"`
	ExerciseTemplateID string `json:"exercise_template_id"`
	SupersetID         *int   `json:"superset_id"`

	Sets []WorkoutSet `json:"sets"`
}

// WorkoutSet is a single set. Only the measurements relevant to the
// exercise type are populated; the rest come back null.
type WorkoutSet struct {
	Index           int      `json:"index"`
	Type            string   `json:"type"` // normal, warmup, dropset, failure
	WeightKg        *float64 `json:"weight_kg"`
	Reps            *int     `json:"reps"`
	DistanceMeters  *float64 `json:"distance_meters"`
	DurationSeconds *int     `json:"duration_seconds"`
	RPE             *float64 `json:"rpe"`
}

// WorkoutCount is the response of the workouts/count endpoint, used as a
// cheap credential probe.
type WorkoutCount struct {
	WorkoutCount int `json:"workout_count"`
}
