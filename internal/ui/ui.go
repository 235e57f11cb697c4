// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

// Package ui abstracts the operator-facing surface: notices and the few
// decisions an import cannot make on its own.
package ui

// ResumeChoice is the answer to the interrupted-import prompt.
type ResumeChoice int

const (
	// Resume continues from the persisted checkpoint.
	Resume ResumeChoice = iota
	// Restart discards the checkpoint and imports from scratch.
	Restart
	// Cancel leaves the checkpoint untouched and aborts the run.
	Cancel
)

func (c ResumeChoice) String() string {
	switch c {
	case Resume:
		return "resume"
	case Restart:
		return "restart"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// UI is the operator interaction surface.
type UI interface {
	// Notify shows a non-blocking notice.
	Notify(title, message string)

	// PromptResume asks what to do about an interrupted import.
	PromptResume(completedSteps []string) ResumeChoice

	// PromptInitialSetup asks for an API key on first run. ok is false
	// when the operator declines.
	PromptInitialSetup() (key string, ok bool)

	// PromptReenterKey asks for a replacement key after the stored one
	// was rejected. ok is false when the operator declines.
	PromptReenterKey() (key string, ok bool)
}
