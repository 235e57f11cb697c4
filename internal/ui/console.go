// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/tomtom215/hevysync/internal/logging"
)

// Console is a line-oriented UI over stdio.
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole creates a console UI reading from in and writing to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

func (c *Console) Notify(title, message string) {
	fmt.Fprintf(c.out, "[%s] %s\n", title, message)
}

func (c *Console) PromptResume(completedSteps []string) ResumeChoice {
	if len(completedSteps) > 0 {
		fmt.Fprintf(c.out, "A previous import was interrupted after: %s\n", strings.Join(completedSteps, ", "))
	} else {
		fmt.Fprintln(c.out, "A previous import was interrupted before completing any step.")
	}
	fmt.Fprint(c.out, "Resume, restart, or cancel? [R/s/c]: ")

	switch strings.ToLower(c.readLine()) {
	case "s", "restart":
		return Restart
	case "c", "cancel":
		return Cancel
	default:
		return Resume
	}
}

func (c *Console) PromptInitialSetup() (string, bool) {
	fmt.Fprintln(c.out, "Hevysync needs a Hevy API key (Settings > Developer in the Hevy app).")
	fmt.Fprint(c.out, "API key (blank to skip): ")
	key := c.readLine()
	return key, key != ""
}

func (c *Console) PromptReenterKey() (string, bool) {
	fmt.Fprintln(c.out, "The stored Hevy API key was rejected.")
	fmt.Fprint(c.out, "New API key (blank to skip): ")
	key := c.readLine()
	return key, key != ""
}

func (c *Console) readLine() string {
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		logging.Debug().Err(err).Msg("Console input closed")
		return ""
	}
	return strings.TrimSpace(line)
}
