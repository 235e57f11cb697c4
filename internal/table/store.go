// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

// Package table abstracts the tabular destination store as named sheets
// of string cells. Rows and columns are 1-based; a range is addressed by
// its top-left corner plus either explicit extents or the shape of the
// values being written. Empty string and absent cell are equivalent.
package table

import "context"

// Table is one named sheet.
type Table interface {
	// Name returns the sheet name.
	Name() string

	// ReadRange returns the rectangle [startRow..endRow] x [startCol..endCol]
	// as dense rows, padding absent cells with "".
	ReadRange(ctx context.Context, startRow, startCol, endRow, endCol int) ([][]string, error)

	// WriteRange writes values with its top-left cell at (startRow, startCol),
	// replacing every cell the rectangle covers. Ragged rows are padded to
	// the widest row.
	WriteRange(ctx context.Context, startRow, startCol int, values [][]string) error

	// ClearRange deletes every cell in the rectangle.
	ClearRange(ctx context.Context, startRow, startCol, endRow, endCol int) error

	// InsertRowsAt shifts rows at and below row down by count, opening a
	// gap of empty rows.
	InsertRowsAt(ctx context.Context, row, count int) error

	// LastRow returns the highest populated row index, 0 when empty.
	LastRow(ctx context.Context) (int, error)

	// LastColumn returns the highest populated column index, 0 when empty.
	LastColumn(ctx context.Context) (int, error)
}

// Store hands out sheets by name, creating them on first use.
type Store interface {
	Sheet(ctx context.Context, name string) (Table, error)
	Close() error
}
