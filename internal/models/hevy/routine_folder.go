// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package hevy

import "strconv"

// RoutineFolder groups routines. The API keys folders by a numeric id,
// unlike every other resource.
type RoutineFolder struct {
	ID        int    `json:"id"`
	Index     int    `json:"index"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updated_at"`
	CreatedAt string `json:"created_at"`
}

// IDString renders the numeric id the way it is stored in the id column.
func (f RoutineFolder) IDString() string {
	return strconv.Itoa(f.ID)
}
