// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package config

import (
	"fmt"

	"github.com/google/uuid"
)

// hyphenPositions are the fixed hyphen offsets of the canonical 8-4-4-4-12
// UUID rendering.
var hyphenPositions = [4]int{8, 13, 18, 23}

// ValidateAPIKey checks that key is a canonically formatted UUID: exactly
// 36 characters in 8-4-4-4-12 grouping. Variants uuid.Parse tolerates
// (braces, urn prefix, bare hex) are rejected, matching what the Hevy
// API issues.
func ValidateAPIKey(key string) error {
	if len(key) != 36 {
		return fmt.Errorf("API key must be 36 characters, got %d", len(key))
	}
	for _, pos := range hyphenPositions {
		if key[pos] != '-' {
			return fmt.Errorf("API key is not in canonical 8-4-4-4-12 form")
		}
	}
	if _, err := uuid.Parse(key); err != nil {
		return fmt.Errorf("API key is not a valid UUID: %w", err)
	}
	return nil
}
