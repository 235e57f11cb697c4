// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package ui

import "sync"

// Fake is a scripted UI for tests. Zero value: no notices recorded yet,
// prompts answer Resume and decline key entry.
type Fake struct {
	mu sync.Mutex

	ResumeAnswer ResumeChoice
	SetupKey     string
	SetupOK      bool
	ReenterKey   string
	ReenterOK    bool

	Notices        []string
	ResumePrompts  [][]string
	SetupPrompts   int
	ReenterPrompts int
}

func (f *Fake) Notify(title, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notices = append(f.Notices, title+": "+message)
}

func (f *Fake) PromptResume(completedSteps []string) ResumeChoice {
	f.mu.Lock()
	defer f.mu.Unlock()
	steps := make([]string, len(completedSteps))
	copy(steps, completedSteps)
	f.ResumePrompts = append(f.ResumePrompts, steps)
	return f.ResumeAnswer
}

func (f *Fake) PromptInitialSetup() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetupPrompts++
	return f.SetupKey, f.SetupOK
}

func (f *Fake) PromptReenterKey() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReenterPrompts++
	return f.ReenterKey, f.ReenterOK
}
