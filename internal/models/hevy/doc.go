// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

// Package hevy defines the wire models for the Hevy public API v1.
//
// Each file maps one resource family: workouts, exercise templates,
// routines, routine folders, and the workout event stream. Field names
// follow the API's snake_case JSON exactly; optional fields are pointers
// so absent and zero values stay distinguishable.
package hevy
