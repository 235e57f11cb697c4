// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package table

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/hevysync/internal/logging"
)

// DuckStore persists sheets in a single DuckDB cell table. One row per
// populated cell keeps range rewrites cheap and sheet width unbounded.
type DuckStore struct {
	conn *sql.DB
}

const cellSchema = `
CREATE TABLE IF NOT EXISTS sheet_cells (
	sheet   VARCHAR NOT NULL,
	row_idx INTEGER NOT NULL,
	col_idx INTEGER NOT NULL,
	value   VARCHAR NOT NULL,
	PRIMARY KEY (sheet, row_idx, col_idx)
)`

// OpenDuckStore opens (or creates) the database file and initializes the
// cell schema. Path ":memory:" yields an ephemeral store.
func OpenDuckStore(path string) (*DuckStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	// Auto-install/auto-load stays off so opening never touches the network.
	connStr := path + "?autoinstall_known_extensions=false&autoload_known_extensions=false"
	if path != ":memory:" {
		connStr = path + "?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false"
	}
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := conn.Exec(cellSchema); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize cell schema: %w", err)
	}

	logging.Debug().Str("path", path).Msg("Sheet store opened")
	return &DuckStore{conn: conn}, nil
}

// Sheet returns a handle for name. Sheets exist implicitly; a sheet with
// no cells reads as empty.
func (s *DuckStore) Sheet(_ context.Context, name string) (Table, error) {
	if name == "" {
		return nil, fmt.Errorf("sheet name must not be empty")
	}
	return &duckTable{conn: s.conn, name: name}, nil
}

// Close releases the underlying connection.
func (s *DuckStore) Close() error {
	return s.conn.Close()
}

func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database connection")
	}
}

type duckTable struct {
	conn *sql.DB
	name string
}

func (t *duckTable) Name() string { return t.name }

func (t *duckTable) ReadRange(ctx context.Context, startRow, startCol, endRow, endCol int) ([][]string, error) {
	if err := checkRect(startRow, startCol, endRow, endCol); err != nil {
		return nil, err
	}

	rows, err := t.conn.QueryContext(ctx,
		`SELECT row_idx, col_idx, value FROM sheet_cells
		 WHERE sheet = ? AND row_idx BETWEEN ? AND ? AND col_idx BETWEEN ? AND ?`,
		t.name, startRow, endRow, startCol, endCol)
	if err != nil {
		return nil, fmt.Errorf("failed to read range on %s: %w", t.name, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close rows")
		}
	}()

	out := make([][]string, endRow-startRow+1)
	for i := range out {
		out[i] = make([]string, endCol-startCol+1)
	}
	for rows.Next() {
		var rowIdx, colIdx int
		var value string
		if err := rows.Scan(&rowIdx, &colIdx, &value); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		out[rowIdx-startRow][colIdx-startCol] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cells: %w", err)
	}
	return out, nil
}

func (t *duckTable) WriteRange(ctx context.Context, startRow, startCol int, values [][]string) error {
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
	if width == 0 {
		return nil
	}

	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin write on %s: %w", t.name, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	endRow := startRow + len(values) - 1
	endCol := startCol + width - 1
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sheet_cells
		 WHERE sheet = ? AND row_idx BETWEEN ? AND ? AND col_idx BETWEEN ? AND ?`,
		t.name, startRow, endRow, startCol, endCol); err != nil {
		return fmt.Errorf("failed to clear target range on %s: %w", t.name, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sheet_cells (sheet, row_idx, col_idx, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cell insert: %w", err)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close statement")
		}
	}()

	for i, row := range values {
		for j, value := range row {
			if value == "" {
				continue // absence and "" are the same cell state
			}
			if _, err := stmt.ExecContext(ctx, t.name, startRow+i, startCol+j, value); err != nil {
				return fmt.Errorf("failed to write cell (%d,%d) on %s: %w", startRow+i, startCol+j, t.name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit write on %s: %w", t.name, err)
	}
	return nil
}

func (t *duckTable) ClearRange(ctx context.Context, startRow, startCol, endRow, endCol int) error {
	if err := checkRect(startRow, startCol, endRow, endCol); err != nil {
		return err
	}
	_, err := t.conn.ExecContext(ctx,
		`DELETE FROM sheet_cells
		 WHERE sheet = ? AND row_idx BETWEEN ? AND ? AND col_idx BETWEEN ? AND ?`,
		t.name, startRow, endRow, startCol, endCol)
	if err != nil {
		return fmt.Errorf("failed to clear range on %s: %w", t.name, err)
	}
	return nil
}

func (t *duckTable) InsertRowsAt(ctx context.Context, row, count int) error {
	if row < 1 {
		return fmt.Errorf("row %d must be 1-based", row)
	}
	if count <= 0 {
		return nil
	}
	_, err := t.conn.ExecContext(ctx,
		`UPDATE sheet_cells SET row_idx = row_idx + ? WHERE sheet = ? AND row_idx >= ?`,
		count, t.name, row)
	if err != nil {
		return fmt.Errorf("failed to insert %d rows at %d on %s: %w", count, row, t.name, err)
	}
	return nil
}

func (t *duckTable) LastRow(ctx context.Context) (int, error) {
	var last int
	err := t.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(row_idx), 0) FROM sheet_cells WHERE sheet = ?`, t.name).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to query last row on %s: %w", t.name, err)
	}
	return last, nil
}

func (t *duckTable) LastColumn(ctx context.Context) (int, error) {
	var last int
	err := t.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(col_idx), 0) FROM sheet_cells WHERE sheet = ?`, t.name).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to query last column on %s: %w", t.name, err)
	}
	return last, nil
}

func checkRect(startRow, startCol, endRow, endCol int) error {
	if startRow < 1 || startCol < 1 {
		return fmt.Errorf("range origin (%d,%d) must be 1-based", startRow, startCol)
	}
	if endRow < startRow || endCol < startCol {
		return fmt.Errorf("range end (%d,%d) precedes origin (%d,%d)", endRow, endCol, startRow, startCol)
	}
	return nil
}
