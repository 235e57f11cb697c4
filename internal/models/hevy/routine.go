// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

// Routine is a saved workout plan from the routines endpoint.
type Routine struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	FolderID  *int   `json:"folder_id"` // nil when the routine lives outside any folder
	UpdatedAt string `json:"updated_at"`
	CreatedAt string `json:"created_at"`

	Exercises []RoutineExercise `json:"exercises"`
}

// RoutineExercise is a planned exercise within a routine.
type RoutineExercise struct {
	Index              int    `json:"index"`
	Title              string `json:"title"`
	Notes              string `json:"notes"`
	ExerciseTemplateID string `json:"exercise_template_id"`
	SupersetID         *int   `json:"superset_id"`

	Sets []RoutineSet `json:"sets"`
}

// RoutineSet is a planned set with target measurements.
type RoutineSet struct {
	Index           int      `json:"index"`
	Type            string   `json:"type"`
	WeightKg        *float64 `json:"weight_kg"`
	Reps            *int     `json:"reps"`
	DistanceMeters  *float64 `json:"distance_meters"`
	DurationSeconds *int     `json:"duration_seconds"`
}
