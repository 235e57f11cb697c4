// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package table

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store with the same cell semantics as the
// DuckDB implementation, intended for tests.
type MemoryStore struct {
	mu     sync.Mutex
	sheets map[string]*memoryTable
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[string]*memoryTable)}
}

func (s *MemoryStore) Sheet(_ context.Context, name string) (Table, error) {
	if name == "" {
		return nil, fmt.Errorf("sheet name must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet, ok := s.sheets[name]
	if !ok {
		sheet = &memoryTable{name: name, cells: make(map[cellKey]string)}
		s.sheets[name] = sheet
	}
	return sheet, nil
}

func (s *MemoryStore) Close() error { return nil }

type cellKey struct {
	row, col int
}

type memoryTable struct {
	mu    sync.Mutex
	name  string
	cells map[cellKey]string
}

func (t *memoryTable) Name() string { return t.name }

func (t *memoryTable) ReadRange(_ context.Context, startRow, startCol, endRow, endCol int) ([][]string, error) {
	if err := checkRect(startRow, startCol, endRow, endCol); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([][]string, endRow-startRow+1)
	for i := range out {
		row := make([]string, endCol-startCol+1)
		for j := range row {
			row[j] = t.cells[cellKey{startRow + i, startCol + j}]
		}
		out[i] = row
	}
	return out, nil
}

func (t *memoryTable) WriteRange(_ context.Context, startRow, startCol int, values [][]string) error {
	if startRow < 1 || startCol < 1 {
		return fmt.Errorf("range origin (%d,%d) must be 1-based", startRow, startCol)
	}
	if len(values) == 0 {
		return nil
	}
	width := 0
	for _, row := range values {
		if len(row) > width {
			width = len(row)
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := 0; i < len(values); i++ {
		for j := 0; j < width; j++ {
			key := cellKey{startRow + i, startCol + j}
			value := ""
			if j < len(values[i]) {
				value = values[i][j]
			}
			if value == "" {
				delete(t.cells, key)
			} else {
				t.cells[key] = value
			}
		}
	}
	return nil
}

func (t *memoryTable) ClearRange(_ context.Context, startRow, startCol, endRow, endCol int) error {
	if err := checkRect(startRow, startCol, endRow, endCol); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.cells {
		if key.row >= startRow && key.row <= endRow && key.col >= startCol && key.col <= endCol {
			delete(t.cells, key)
		}
	}
	return nil
}

func (t *memoryTable) InsertRowsAt(_ context.Context, row, count int) error {
	if row < 1 {
		return fmt.Errorf("row %d must be 1-based", row)
	}
	if count <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	shifted := make(map[cellKey]string, len(t.cells))
	for key, value := range t.cells {
		if key.row >= row {
			key.row += count
		}
		shifted[key] = value
	}
	t.cells = shifted
	return nil
}

func (t *memoryTable) LastRow(_ context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	last := 0
	for key := range t.cells {
		if key.row > last {
			last = key.row
		}
	}
	return last, nil
}

func (t *memoryTable) LastColumn(_ context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	last := 0
	for key := range t.cells {
		if key.col > last {
			last = key.col
		}
	}
	return last, nil
}
