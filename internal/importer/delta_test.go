// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package importer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/tomtom215/hevysync/internal/hevy"
	"github.com/tomtom215/hevysync/internal/props"
	"github.com/tomtom215/hevysync/internal/table"
)

const seedCursor = "2026-01-01T00:00:00Z"

// seedWorkoutSheet writes the header plus one single-set row per id.
func seedWorkoutSheet(t *testing.T, tables table.Store, ids ...string) {
	t.Helper()
	ctx := context.Background()
	sheet, err := tables.Sheet(ctx, SheetWorkouts)
	if err != nil {
		t.Fatal(err)
	}
	rows := [][]string{workoutHeaders}
	for _, id := range ids {
		rows = append(rows, []string{id, "Workout " + id, "2026-01-01T10:00:00Z", "2026-01-01T11:00:00Z", "Bench Press", "1", "normal", "100", "5", "", "", ""})
	}
	if err := sheet.WriteRange(ctx, 1, 1, rows); err != nil {
		t.Fatal(err)
	}
}

func workoutJSON(id, title string) string {
	return fmt.Sprintf(`{"id":%q,"title":%q,"start_time":"2026-01-10T10:00:00Z","end_time":"2026-01-10T11:00:00Z",
		"exercises":[{"index":0,"title":"Bench Press","exercise_template_id":"t1",
		  "sets":[{"index":0,"type":"normal","weight_kg":102.5,"reps":5}]}]}`, id, title)
}

func TestDelta_Reconciliation(t *testing.T) {
	transport := newRouteTransport()
	transport.route("workouts/events",
		`{"events":[
			{"type":"deleted","id":"A"},
			{"type":"updated","workout":{"id":"B"}},
			{"type":"updated","workout":{"id":"D"}}
		],"page_count":1}`)
	transport.route("workouts/B", workoutJSON("B", "Pull Day v2"))
	transport.route("workouts/D", workoutJSON("D", "New Leg Day"))

	steps, tables, store := newTestSteps(transport)
	seedWorkoutSheet(t, tables, "A", "B", "C")
	if err := store.Set(props.KeyLastWorkoutUpdate, []byte(seedCursor), 0); err != nil {
		t.Fatal(err)
	}

	if err := steps.ImportWorkouts(context.Background(), nil); err != nil {
		t.Fatalf("Delta failed: %v", err)
	}

	// A deleted, B updated in place, D inserted above the first data row.
	ids := sheetIDs(t, tables, SheetWorkouts)
	want := []string{"D", "B", "C"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Expected rows %v, got %v", want, ids)
	}

	ctx := context.Background()
	sheet, _ := tables.Sheet(ctx, SheetWorkouts)
	rows, err := sheet.ReadRange(ctx, 2, 1, 4, len(workoutHeaders))
	if err != nil {
		t.Fatal(err)
	}
	if rows[1][1] != "Pull Day v2" {
		t.Errorf("B not updated in place: title %q", rows[1][1])
	}
	if rows[2][1] != "Workout C" {
		t.Errorf("C should be untouched, got title %q", rows[2][1])
	}

	raw, ok, _ := store.Get(props.KeyLastWorkoutUpdate)
	if !ok || string(raw) == seedCursor {
		t.Errorf("Cursor must advance, got %q", raw)
	}
}

func TestDelta_NoUpsertsStillAdvancesCursor(t *testing.T) {
	transport := newRouteTransport()
	transport.route("workouts/events", `{"events":[{"type":"deleted","id":"A"}],"page_count":1}`)

	steps, tables, store := newTestSteps(transport)
	seedWorkoutSheet(t, tables, "A", "B")
	if err := store.Set(props.KeyLastWorkoutUpdate, []byte(seedCursor), 0); err != nil {
		t.Fatal(err)
	}

	if err := steps.ImportWorkouts(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	if ids := sheetIDs(t, tables, SheetWorkouts); !reflect.DeepEqual(ids, []string{"B"}) {
		t.Errorf("Expected only B to survive, got %v", ids)
	}
	raw, _, _ := store.Get(props.KeyLastWorkoutUpdate)
	if string(raw) == seedCursor {
		t.Error("Cursor must advance even without upserts")
	}
	if transport.callCount("workouts/B") != 0 {
		t.Error("No per-id fetches expected without upserts")
	}
}

func TestDelta_FailureGateAborts(t *testing.T) {
	transport := newRouteTransport()
	// Four upserts; only two have routes, the other two 404.
	transport.route("workouts/events",
		`{"events":[
			{"type":"updated","workout":{"id":"B"}},
			{"type":"updated","workout":{"id":"C"}},
			{"type":"updated","workout":{"id":"X"}},
			{"type":"updated","workout":{"id":"Y"}}
		],"page_count":1}`)
	transport.route("workouts/B", workoutJSON("B", "B2"))
	transport.route("workouts/C", workoutJSON("C", "C2"))

	steps, tables, store := newTestSteps(transport)
	seedWorkoutSheet(t, tables, "B", "C")
	if err := store.Set(props.KeyLastWorkoutUpdate, []byte(seedCursor), 0); err != nil {
		t.Fatal(err)
	}

	err := steps.ImportWorkouts(context.Background(), nil)
	var validation *hevy.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("Expected validation-shaped gate error, got %v", err)
	}
	for _, id := range []string{"X", "Y"} {
		if !strings.Contains(validation.Message, id) {
			t.Errorf("Gate error should name failed id %s: %s", id, validation.Message)
		}
	}

	// Cursor untouched; the sheet keeps its pre-apply content.
	raw, _, _ := store.Get(props.KeyLastWorkoutUpdate)
	if string(raw) != seedCursor {
		t.Errorf("Cursor must not advance on gate failure, got %q", raw)
	}
	ids := sheetIDs(t, tables, SheetWorkouts)
	if !reflect.DeepEqual(ids, []string{"B", "C"}) {
		t.Errorf("Sheet must be unchanged, got %v", ids)
	}
}

func TestDelta_Idempotent(t *testing.T) {
	buildTransport := func() *routeTransport {
		transport := newRouteTransport()
		transport.route("workouts/events",
			`{"events":[
				{"type":"deleted","id":"A"},
				{"type":"updated","workout":{"id":"B"}},
				{"type":"updated","workout":{"id":"D"}}
			],"page_count":1}`)
		transport.route("workouts/B", workoutJSON("B", "B2"))
		transport.route("workouts/D", workoutJSON("D", "D1"))
		return transport
	}

	transport := buildTransport()
	steps, tables, store := newTestSteps(transport)
	seedWorkoutSheet(t, tables, "A", "B", "C")
	ctx := context.Background()

	snapshot := func() [][]string {
		sheet, _ := tables.Sheet(ctx, SheetWorkouts)
		last, _ := sheet.LastRow(ctx)
		rows, err := sheet.ReadRange(ctx, 1, 1, last, len(workoutHeaders))
		if err != nil {
			t.Fatal(err)
		}
		return rows
	}

	if err := store.Set(props.KeyLastWorkoutUpdate, []byte(seedCursor), 0); err != nil {
		t.Fatal(err)
	}
	if err := steps.ImportWorkouts(ctx, nil); err != nil {
		t.Fatal(err)
	}
	first := snapshot()

	// Same event batch again.
	if err := steps.ImportWorkouts(ctx, nil); err != nil {
		t.Fatal(err)
	}
	second := snapshot()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Delta is not idempotent:\nfirst  %v\nsecond %v", first, second)
	}
}

func TestDelta_MissingIDColumn(t *testing.T) {
	transport := newRouteTransport()
	transport.route("workouts/events", `{"events":[{"type":"deleted","id":"A"}],"page_count":1}`)

	steps, tables, store := newTestSteps(transport)
	ctx := context.Background()
	sheet, err := tables.Sheet(ctx, SheetWorkouts)
	if err != nil {
		t.Fatal(err)
	}
	// A sheet whose first header is not the id column.
	if err := sheet.WriteRange(ctx, 1, 1, [][]string{{"Name", "Notes"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(props.KeyLastWorkoutUpdate, []byte(seedCursor), 0); err != nil {
		t.Fatal(err)
	}

	err = steps.ImportWorkouts(ctx, nil)
	var structural *SheetStructureError
	if !errors.As(err, &structural) {
		t.Fatalf("Expected SheetStructureError, got %v", err)
	}
	if structural.Sheet != SheetWorkouts {
		t.Errorf("Error should name the sheet, got %q", structural.Sheet)
	}
}

func TestGateFailures(t *testing.T) {
	steps, _, _ := newTestSteps(newRouteTransport())

	manyIDs := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("w%03d", i)
		}
		return out
	}

	t.Run("thirty percent fails", func(t *testing.T) {
		err := steps.gateFailures(100, 70, manyIDs(30))
		var validation *hevy.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("Expected gate rejection, got %v", err)
		}
		// At most ten ids are named, the rest summarized.
		if !strings.Contains(validation.Message, "and 20 more") {
			t.Errorf("Expected truncated id list, got %s", validation.Message)
		}
		if strings.Count(validation.Message, "w0") > 10 {
			t.Errorf("Too many ids named: %s", validation.Message)
		}
	})

	t.Run("exact threshold passes", func(t *testing.T) {
		// 25 failures of 100 is exactly the threshold; comparison is strict.
		if err := steps.gateFailures(100, 75, manyIDs(25)); err != nil {
			t.Errorf("Exact threshold rate must pass, got %v", err)
		}
	})

	t.Run("single failure passes at any rate", func(t *testing.T) {
		if err := steps.gateFailures(2, 1, []string{"w1"}); err != nil {
			t.Errorf("A lone failure must pass, got %v", err)
		}
	})

	t.Run("below minimum successes fails", func(t *testing.T) {
		if err := steps.gateFailures(3, 0, manyIDs(3)); err == nil {
			t.Error("Zero successes must fail the gate")
		}
	})
}

func TestMergeSegments(t *testing.T) {
	row := func(i int) rowUpdate { return rowUpdate{rowIdx: i, values: []string{fmt.Sprint(i)}} }

	segments := mergeSegments([]rowUpdate{row(2), row(3), row(4), row(7), row(9), row(10)})
	if len(segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segments))
	}
	if segments[0].startRow != 2 || len(segments[0].rows) != 3 {
		t.Errorf("Segment 0: %+v", segments[0])
	}
	if segments[1].startRow != 7 || len(segments[1].rows) != 1 {
		t.Errorf("Segment 1: %+v", segments[1])
	}
	if segments[2].startRow != 9 || len(segments[2].rows) != 2 {
		t.Errorf("Segment 2: %+v", segments[2])
	}

	if got := mergeSegments(nil); got != nil {
		t.Errorf("Expected no segments for no updates, got %v", got)
	}
}
