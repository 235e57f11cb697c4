// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hevysync/internal/config"
	"github.com/tomtom215/hevysync/internal/hevy"
	"github.com/tomtom215/hevysync/internal/logging"
	"github.com/tomtom215/hevysync/internal/metrics"
	models "github.com/tomtom215/hevysync/internal/models/hevy"
	"github.com/tomtom215/hevysync/internal/props"
	"github.com/tomtom215/hevysync/internal/table"
)

// Step names as recorded in the progress record.
const (
	StepExercises      = "exercises"
	StepRoutineFolders = "routineFolders"
	StepRoutines       = "routines"
	StepWorkouts       = "workouts"
)

// Steps holds the import step bodies and their shared dependencies.
type Steps struct {
	client    *hevy.Client
	paginator *hevy.Paginator
	tables    table.Store
	store     props.Store
	paging    config.PagingConfig
	imp       config.ImportConfig

	mu             sync.Mutex
	exerciseTitles map[string]string // exercise template id -> title
}

// NewSteps wires the step bodies.
func NewSteps(client *hevy.Client, paginator *hevy.Paginator, tables table.Store, store props.Store, paging config.PagingConfig, imp config.ImportConfig) *Steps {
	return &Steps{
		client:    client,
		paginator: paginator,
		tables:    tables,
		store:     store,
		paging:    paging,
		imp:       imp,
	}
}

// Step is one named unit of orchestrated work.
type Step struct {
	Name string
	Run  func(ctx context.Context, cancel hevy.CancelFunc) error
}

// Plan is the orchestrated sequence: groups run in order, the steps
// within a group may run concurrently.
type Plan [][]Step

// BuildPlan returns the standard step sequence. Template mode imports
// only the exercise catalog. Workouts run after exercises because their
// projection consumes the exercise title map.
func (s *Steps) BuildPlan(template bool) Plan {
	exercises := Step{Name: StepExercises, Run: s.ImportExercises}
	if template {
		return Plan{{exercises}}
	}
	return Plan{
		{
			exercises,
			{Name: StepRoutineFolders, Run: s.ImportRoutineFolders},
			{Name: StepRoutines, Run: s.ImportRoutines},
		},
		{
			{Name: StepWorkouts, Run: s.ImportWorkouts},
		},
	}
}

// ExerciseTitles returns the template-id to title map built by the
// exercises step, loading it from the sheet when the step was skipped
// on resume.
func (s *Steps) ExerciseTitles(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	titles := s.exerciseTitles
	s.mu.Unlock()
	if titles != nil {
		return titles, nil
	}

	sheet, err := s.tables.Sheet(ctx, SheetExercises)
	if err != nil {
		return nil, err
	}
	rows, err := readDataRows(ctx, sheet, len(exerciseHeaders), nil, 0)
	if err != nil {
		return nil, err
	}
	titles = make(map[string]string, len(rows))
	for _, row := range rows {
		if row[0] != "" {
			titles[row[0]] = row[1]
		}
	}

	s.mu.Lock()
	s.exerciseTitles = titles
	s.mu.Unlock()
	return titles, nil
}

// ImportExercises replaces the exercise catalog sheet and rebuilds the
// id to title map.
func (s *Steps) ImportExercises(ctx context.Context, cancel hevy.CancelFunc) error {
	start := time.Now()
	sheet, err := s.tables.Sheet(ctx, SheetExercises)
	if err != nil {
		return err
	}
	if err := ensureHeaders(ctx, sheet, exerciseHeaders); err != nil {
		return err
	}

	titles := make(map[string]string)
	var rows [][]string
	total, err := s.paginator.FetchPaginated(ctx, "exercise_templates", s.paging.PageSize, "exercise_templates", nil,
		func(items []json.RawMessage) error {
			for _, item := range items {
				var template models.ExerciseTemplate
				if err := json.Unmarshal(item, &template); err != nil {
					return fmt.Errorf("decode exercise template: %w", err)
				}
				titles[template.ID] = template.Title
				rows = append(rows, exerciseRow(template))
			}
			return nil
		}, cancel)
	if err != nil {
		return err
	}

	if err := rewriteDataRows(ctx, sheet, len(exerciseHeaders), rows); err != nil {
		return err
	}

	s.mu.Lock()
	s.exerciseTitles = titles
	s.mu.Unlock()

	metrics.ImportStepDuration.WithLabelValues(StepExercises).Observe(time.Since(start).Seconds())
	logging.Info().Int("exercises", total).Msg("Exercise catalog imported")
	return nil
}

// ImportRoutineFolders replaces the routine folder sheet.
func (s *Steps) ImportRoutineFolders(ctx context.Context, cancel hevy.CancelFunc) error {
	start := time.Now()
	sheet, err := s.tables.Sheet(ctx, SheetRoutineFolders)
	if err != nil {
		return err
	}
	if err := ensureHeaders(ctx, sheet, folderHeaders); err != nil {
		return err
	}

	var rows [][]string
	total, err := s.paginator.FetchPaginated(ctx, "routine_folders", s.paging.PageSize, "routine_folders", nil,
		func(items []json.RawMessage) error {
			for _, item := range items {
				var folder models.RoutineFolder
				if err := json.Unmarshal(item, &folder); err != nil {
					return fmt.Errorf("decode routine folder: %w", err)
				}
				rows = append(rows, folderRow(folder))
			}
			return nil
		}, cancel)
	if err != nil {
		return err
	}

	if err := rewriteDataRows(ctx, sheet, len(folderHeaders), rows); err != nil {
		return err
	}
	metrics.ImportStepDuration.WithLabelValues(StepRoutineFolders).Observe(time.Since(start).Seconds())
	logging.Info().Int("folders", total).Msg("Routine folders imported")
	return nil
}

// ImportRoutines replaces the routines sheet.
func (s *Steps) ImportRoutines(ctx context.Context, cancel hevy.CancelFunc) error {
	start := time.Now()
	sheet, err := s.tables.Sheet(ctx, SheetRoutines)
	if err != nil {
		return err
	}
	if err := ensureHeaders(ctx, sheet, routineHeaders); err != nil {
		return err
	}

	var rows [][]string
	total, err := s.paginator.FetchPaginated(ctx, "routines", s.paging.PageSize, "routines", nil,
		func(items []json.RawMessage) error {
			for _, item := range items {
				var routine models.Routine
				if err := json.Unmarshal(item, &routine); err != nil {
					return fmt.Errorf("decode routine: %w", err)
				}
				rows = append(rows, routineRow(routine))
			}
			return nil
		}, cancel)
	if err != nil {
		return err
	}

	if err := rewriteDataRows(ctx, sheet, len(routineHeaders), rows); err != nil {
		return err
	}
	metrics.ImportStepDuration.WithLabelValues(StepRoutines).Observe(time.Since(start).Seconds())
	logging.Info().Int("routines", total).Msg("Routines imported")
	return nil
}

// ImportWorkouts imports workouts: the event-driven delta path when a
// cursor exists, the full page walk otherwise.
func (s *Steps) ImportWorkouts(ctx context.Context, cancel hevy.CancelFunc) error {
	start := time.Now()
	defer func() {
		metrics.ImportStepDuration.WithLabelValues(StepWorkouts).Observe(time.Since(start).Seconds())
	}()

	cursor, ok, err := s.cursor()
	if err != nil {
		return err
	}
	if ok {
		return s.runDelta(ctx, cancel, cursor)
	}
	return s.importWorkoutsFull(ctx, cancel)
}

// importWorkoutsFull bootstraps the workouts sheet with a complete walk.
func (s *Steps) importWorkoutsFull(ctx context.Context, cancel hevy.CancelFunc) error {
	sheet, err := s.tables.Sheet(ctx, SheetWorkouts)
	if err != nil {
		return err
	}
	if err := ensureHeaders(ctx, sheet, workoutHeaders); err != nil {
		return err
	}
	titles, err := s.ExerciseTitles(ctx)
	if err != nil {
		return err
	}

	var rows [][]string
	total, err := s.paginator.FetchPaginated(ctx, "workouts", s.paging.PageSize, "workouts", nil,
		func(items []json.RawMessage) error {
			for _, item := range items {
				var workout models.Workout
				if err := json.Unmarshal(item, &workout); err != nil {
					return fmt.Errorf("decode workout: %w", err)
				}
				rows = append(rows, workoutRows(workout, titles)...)
			}
			return nil
		}, cancel)
	if err != nil {
		return err
	}

	if err := rewriteDataRows(ctx, sheet, len(workoutHeaders), rows); err != nil {
		return err
	}
	if err := s.persistCursor(); err != nil {
		return err
	}
	logging.Info().Int("workouts", total).Int("rows", len(rows)).Msg("Workouts imported")
	return nil
}

func (s *Steps) cursor() (string, bool, error) {
	raw, ok, err := s.store.Get(props.KeyLastWorkoutUpdate)
	if err != nil {
		return "", false, fmt.Errorf("failed to read workout cursor: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return string(raw), true, nil
}

// persistCursor stores now as the workout cursor in ISO-8601 UTC.
func (s *Steps) persistCursor() error {
	cursor := time.Now().UTC().Format(time.RFC3339)
	if err := s.store.Set(props.KeyLastWorkoutUpdate, []byte(cursor), 0); err != nil {
		return fmt.Errorf("failed to persist workout cursor: %w", err)
	}
	return nil
}
