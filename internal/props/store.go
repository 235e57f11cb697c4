// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

// Package props provides the durable string-keyed property store backing
// the API key, import progress, the active-import marker, the workout
// cursor, and the durable tier of the response cache.
package props

import "time"

// Well-known property keys.
const (
	KeyAPIKey            = "HEVY_API_KEY"
	KeyLastWorkoutUpdate = "LAST_WORKOUT_UPDATE"
	KeyImportProgress    = "IMPORT_PROGRESS"
	KeyImportActive      = "IMPORT_ACTIVE"
	KeyRateLimitInfo     = "RATE_LIMIT_INFO"

	// CacheKeyPrefix namespaces durable response-cache entries so they
	// cannot collide with the control keys above.
	CacheKeyPrefix = "cache:"
)

// Store is a durable string-keyed mapping with optional per-entry TTL.
//
// Get returns (nil, false, nil) for a missing or expired key. A ttl of zero
// means the entry never expires.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}
