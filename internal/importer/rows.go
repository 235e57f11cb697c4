// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tomtom215/hevysync/internal/hevy"
	models "github.com/tomtom215/hevysync/internal/models/hevy"
	"github.com/tomtom215/hevysync/internal/table"
)

// Sheet names.
const (
	SheetWorkouts       = "Workouts"
	SheetExercises      = "Exercises"
	SheetRoutines       = "Routines"
	SheetRoutineFolders = "Routine Folders"
)

// Header row is row 1; data starts at row 2; the id lives in column 1.
const (
	headerRow    = 1
	firstDataRow = 2
	idColumn     = 1
)

var (
	workoutHeaders  = []string{"ID", "Title", "Start", "End", "Exercise", "Set #", "Set Type", "Weight kg", "Reps", "Distance m", "Duration s", "RPE"}
	exerciseHeaders = []string{"ID", "Title", "Type", "Primary Muscle", "Secondary Muscles", "Custom"}
	routineHeaders  = []string{"ID", "Title", "Folder", "Updated", "Created"}
	folderHeaders   = []string{"ID", "Title", "Index", "Updated", "Created"}
)

// SheetStructureError reports a sheet whose layout no longer matches
// what the importer writes, typically after manual edits.
type SheetStructureError struct {
	Sheet  string
	Reason string
}

func (e *SheetStructureError) Error() string {
	return fmt.Sprintf("sheet %q has an unexpected structure (%s); restore it from a template sheet", e.Sheet, e.Reason)
}

// ensureHeaders verifies the sheet's id column, writing the header row
// when the sheet is empty.
func ensureHeaders(ctx context.Context, sheet table.Table, headers []string) error {
	last, err := sheet.LastRow(ctx)
	if err != nil {
		return err
	}
	if last == 0 {
		return sheet.WriteRange(ctx, headerRow, 1, [][]string{headers})
	}

	row, err := sheet.ReadRange(ctx, headerRow, idColumn, headerRow, idColumn)
	if err != nil {
		return err
	}
	if row[0][0] != headers[0] {
		return &SheetStructureError{Sheet: sheet.Name(), Reason: fmt.Sprintf("id column header is %q, want %q", row[0][0], headers[0])}
	}
	return nil
}

// workoutRows projects one workout into sheet rows, one per set. A
// workout with no exercises still yields a single placeholder row so
// its id stays present in the sheet.
func workoutRows(w models.Workout, exerciseTitles map[string]string) [][]string {
	var rows [][]string
	for _, exercise := range w.Exercises {
		title := exercise.Title
		if title == "" {
			title = exerciseTitles[exercise.ExerciseTemplateID]
		}
		for _, set := range exercise.Sets {
			rows = append(rows, []string{
				w.ID, w.Title, w.StartTime, w.EndTime,
				title,
				strconv.Itoa(set.Index + 1),
				set.Type,
				fmtFloat(set.WeightKg),
				fmtInt(set.Reps),
				fmtFloat(set.DistanceMeters),
				fmtInt(set.DurationSeconds),
				fmtFloat(set.RPE),
			})
		}
		if len(exercise.Sets) == 0 {
			rows = append(rows, []string{w.ID, w.Title, w.StartTime, w.EndTime, title, "", "", "", "", "", "", ""})
		}
	}
	if len(rows) == 0 {
		rows = append(rows, []string{w.ID, w.Title, w.StartTime, w.EndTime, "", "", "", "", "", "", "", ""})
	}
	return rows
}

func exerciseRow(t models.ExerciseTemplate) []string {
	return []string{
		t.ID, t.Title, t.Type, t.PrimaryMuscleGroup,
		strings.Join(t.SecondaryMuscleGroups, ", "),
		strconv.FormatBool(t.IsCustom),
	}
}

func routineRow(r models.Routine) []string {
	folder := ""
	if r.FolderID != nil {
		folder = strconv.Itoa(*r.FolderID)
	}
	return []string{r.ID, r.Title, folder, r.UpdatedAt, r.CreatedAt}
}

func folderRow(f models.RoutineFolder) []string {
	return []string{f.IDString(), f.Title, strconv.Itoa(f.Index), f.UpdatedAt, f.CreatedAt}
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func fmtInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// readDataRows returns every data row of the sheet, padded to the header
// width. cancel is probed every checkInterval rows.
func readDataRows(ctx context.Context, sheet table.Table, width int, cancel hevy.CancelFunc, checkInterval int) ([][]string, error) {
	last, err := sheet.LastRow(ctx)
	if err != nil {
		return nil, err
	}
	if last < firstDataRow {
		return nil, nil
	}
	rows, err := sheet.ReadRange(ctx, firstDataRow, 1, last, width)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if cancel != nil && checkInterval > 0 && i%checkInterval == 0 && cancel() {
			return nil, &hevy.CancelledError{Path: sheet.Name(), Page: 0}
		}
	}
	return rows, nil
}

// rewriteDataRows replaces the sheet's data region with rows.
func rewriteDataRows(ctx context.Context, sheet table.Table, width int, rows [][]string) error {
	last, err := sheet.LastRow(ctx)
	if err != nil {
		return err
	}
	if last >= firstDataRow {
		if err := sheet.ClearRange(ctx, firstDataRow, 1, last, width); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return sheet.WriteRange(ctx, firstDataRow, 1, rows)
}

// rowUpdate pairs a new row with the absolute sheet row it replaces.
type rowUpdate struct {
	rowIdx int
	values []string
}

// segment is a run of consecutive row updates.
type segment struct {
	startRow int
	rows     [][]string
}

// mergeSegments groups updates (pre-sorted by rowIdx, no duplicates)
// into contiguous segments so each becomes one range write.
func mergeSegments(updates []rowUpdate) []segment {
	var segments []segment
	for _, u := range updates {
		if n := len(segments); n > 0 && segments[n-1].startRow+len(segments[n-1].rows) == u.rowIdx {
			segments[n-1].rows = append(segments[n-1].rows, u.values)
			continue
		}
		segments = append(segments, segment{startRow: u.rowIdx, rows: [][]string{u.values}})
	}
	return segments
}
