// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

// Package lock provides a cross-process import lock backed by an
// advisory file lock, so concurrent agent invocations cannot interleave
// sheet writes.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/tomtom215/hevysync/internal/logging"
)

// retryDelay is how often an Acquire re-probes a held lock.
const retryDelay = 250 * time.Millisecond

// ContentionError reports a lock held by another process. Wait is how
// long Acquire probed before giving up; zero means a single try.
type ContentionError struct {
	Path string
	Wait time.Duration
}

func (e *ContentionError) Error() string {
	if e.Wait > 0 {
		return fmt.Sprintf("import lock %s still held after %s", e.Path, e.Wait)
	}
	return fmt.Sprintf("import lock %s is held by another process", e.Path)
}

// FileLock guards the import pipeline across processes.
type FileLock struct {
	fl *flock.Flock
}

// New creates a lock on path. The parent directory is created if needed.
func New(path string) (*FileLock, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create lock directory %s: %w", dir, err)
		}
	}
	return &FileLock{fl: flock.New(path)}, nil
}

// Acquire blocks until the lock is held or wait elapses. A zero wait
// tries exactly once.
func (l *FileLock) Acquire(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		ok, err := l.fl.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire import lock %s: %w", l.fl.Path(), err)
		}
		if !ok {
			return &ContentionError{Path: l.fl.Path()}
		}
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ok, err := l.fl.TryLockContext(waitCtx, retryDelay)
	if err != nil {
		if waitCtx.Err() != nil {
			return &ContentionError{Path: l.fl.Path(), Wait: wait}
		}
		return fmt.Errorf("failed to acquire import lock %s: %w", l.fl.Path(), err)
	}
	if !ok {
		return &ContentionError{Path: l.fl.Path()}
	}
	logging.Debug().Str("path", l.fl.Path()).Msg("Import lock acquired")
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *FileLock) Release() {
	if err := l.fl.Unlock(); err != nil {
		logging.Warn().Err(err).Str("path", l.fl.Path()).Msg("Failed to release import lock")
	}
}
