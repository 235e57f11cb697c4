// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package importer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/hevysync/internal/hevy"
	"github.com/tomtom215/hevysync/internal/logging"
	"github.com/tomtom215/hevysync/internal/metrics"
	models "github.com/tomtom215/hevysync/internal/models/hevy"
	"github.com/tomtom215/hevysync/internal/table"
)

// maxNamedFailures bounds how many failed workout ids a diagnostic names.
const maxNamedFailures = 10

// runDelta reconciles the workouts sheet against the event stream since
// cursor: deletions first as one bulk rewrite, then upserts fetched in
// bounded concurrent batches behind a failure gate, applied with
// contiguous block writes.
func (s *Steps) runDelta(ctx context.Context, cancel hevy.CancelFunc, cursor string) error {
	deleted, upserts, err := s.fetchEvents(ctx, cancel, cursor)
	if err != nil {
		return err
	}
	logging.Info().
		Str("since", cursor).
		Int("deleted", len(deleted)).
		Int("upserts", len(upserts)).
		Msg("Workout events partitioned")

	sheet, err := s.tables.Sheet(ctx, SheetWorkouts)
	if err != nil {
		return err
	}
	if err := ensureHeaders(ctx, sheet, workoutHeaders); err != nil {
		return err
	}

	survivors, err := s.applyDeletes(ctx, sheet, cancel, deleted)
	if err != nil {
		return err
	}

	if len(upserts) == 0 {
		return s.persistCursor()
	}

	fetched, failures, err := s.fetchUpserts(ctx, cancel, upserts)
	if err != nil {
		return err
	}
	if err := s.gateFailures(len(upserts), len(fetched), failures); err != nil {
		return err
	}

	titles, err := s.ExerciseTitles(ctx)
	if err != nil {
		return err
	}
	if err := s.applyUpserts(ctx, sheet, survivors, upserts, fetched, titles); err != nil {
		return err
	}
	return s.persistCursor()
}

// fetchEvents walks workouts/events and partitions the stream into
// deduplicated deleted ids and order-preserving upsert ids.
func (s *Steps) fetchEvents(ctx context.Context, cancel hevy.CancelFunc, cursor string) (map[string]bool, []string, error) {
	deleted := make(map[string]bool)
	seen := make(map[string]bool)
	var upserts []string

	extra := url.Values{"since": {cursor}}
	_, err := s.paginator.FetchPaginated(ctx, "workouts/events", s.paging.PageSize, "events", extra,
		func(items []json.RawMessage) error {
			for _, item := range items {
				var event models.WorkoutEvent
				if err := json.Unmarshal(item, &event); err != nil {
					return fmt.Errorf("decode workout event: %w", err)
				}
				id := event.WorkoutID()
				if id == "" {
					logging.Warn().Str("type", event.Type).Msg("Workout event without id skipped")
					continue
				}
				if event.Type == models.EventDeleted {
					deleted[id] = true
					metrics.DeltaEvents.WithLabelValues(models.EventDeleted).Inc()
					continue
				}
				if !seen[id] {
					seen[id] = true
					upserts = append(upserts, id)
				}
				metrics.DeltaEvents.WithLabelValues(event.Type).Inc()
			}
			return nil
		}, cancel)
	if err != nil {
		return nil, nil, err
	}
	return deleted, upserts, nil
}

// applyDeletes rewrites the data region without the deleted ids and
// returns the surviving rows in sheet order.
func (s *Steps) applyDeletes(ctx context.Context, sheet table.Table, cancel hevy.CancelFunc, deleted map[string]bool) ([][]string, error) {
	rows, err := readDataRows(ctx, sheet, len(workoutHeaders), cancel, s.imp.RowCheckInterval)
	if err != nil {
		return nil, err
	}

	if len(deleted) == 0 {
		return rows, nil
	}

	survivors := make([][]string, 0, len(rows))
	for _, row := range rows {
		if !deleted[row[idColumn-1]] {
			survivors = append(survivors, row)
		}
	}
	if len(survivors) == len(rows) {
		return rows, nil
	}

	if err := rewriteDataRows(ctx, sheet, len(workoutHeaders), survivors); err != nil {
		return nil, err
	}
	logging.Info().Int("removed", len(rows)-len(survivors)).Msg("Deleted workout rows removed")
	return survivors, nil
}

// fetchUpserts retrieves each workout by id in concurrent batches of
// WorkoutBatchSize, pausing InterPageDelay between batches.
func (s *Steps) fetchUpserts(ctx context.Context, cancel hevy.CancelFunc, ids []string) (map[string]models.Workout, []string, error) {
	fetched := make(map[string]models.Workout, len(ids))
	var failures []string
	var mu sync.Mutex

	for start := 0; start < len(ids); start += s.imp.WorkoutBatchSize {
		end := start + s.imp.WorkoutBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		if start > 0 {
			select {
			case <-time.After(s.paging.InterPageDelay):
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, id := range ids[start:end] {
			g.Go(func() error {
				if cancel != nil && cancel() {
					return &hevy.CancelledError{Path: "workouts/" + id}
				}
				workout, err := s.fetchWorkout(gctx, id)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					var cancelled *hevy.CancelledError
					if errors.As(err, &cancelled) {
						return err
					}
					logging.Warn().Err(err).Str("workout_id", id).Msg("Workout fetch failed")
					metrics.DeltaFetchFailures.Inc()
					failures = append(failures, id)
					return nil
				}
				fetched[id] = workout
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	}
	return fetched, failures, nil
}

func (s *Steps) fetchWorkout(ctx context.Context, id string) (models.Workout, error) {
	payload, err := s.client.Get(ctx, "workouts/"+id, nil)
	if err != nil {
		return models.Workout{}, err
	}

	var workout models.Workout
	if err := json.Unmarshal(payload, &workout); err != nil {
		return models.Workout{}, fmt.Errorf("decode workout %s: %w", id, err)
	}
	if workout.ID == "" {
		// Some endpoints envelope the object.
		var envelope struct {
			Workout models.Workout `json:"workout"`
		}
		if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Workout.ID != "" {
			return envelope.Workout, nil
		}
		return models.Workout{}, fmt.Errorf("workout %s response carried no id", id)
	}
	return workout, nil
}

// gateFailures decides whether the partial fetch result is trustworthy
// enough to apply. The rate comparison is strict: exactly the threshold
// passes.
func (s *Steps) gateFailures(total, successes int, failures []string) error {
	if successes < s.imp.MinSuccessCount {
		return &hevy.ValidationError{
			Field:   "workouts",
			Message: fmt.Sprintf("only %d of %d workouts fetched (minimum %d): %s", successes, total, s.imp.MinSuccessCount, nameFailures(failures)),
		}
	}
	rate := float64(len(failures)) / float64(total)
	if len(failures) > 1 && rate > s.imp.FailureRateThreshold {
		return &hevy.ValidationError{
			Field:   "workouts",
			Message: fmt.Sprintf("%d of %d workout fetches failed (%.0f%%): %s", len(failures), total, rate*100, nameFailures(failures)),
		}
	}
	if len(failures) > 0 {
		logging.Warn().
			Int("failures", len(failures)).
			Int("total", total).
			Msg("Proceeding without workouts that failed to fetch: " + nameFailures(failures))
	}
	return nil
}

func nameFailures(failures []string) string {
	if len(failures) == 0 {
		return "none"
	}
	named := failures
	if len(named) > maxNamedFailures {
		named = named[:maxNamedFailures]
	}
	out := strings.Join(named, ", ")
	if extra := len(failures) - len(named); extra > 0 {
		out += fmt.Sprintf(" and %d more", extra)
	}
	return out
}

// applyUpserts writes fetched workouts into the sheet. Existing workouts
// whose row count is unchanged are updated in place with one range write
// per contiguous segment; new workouts are inserted as a block above the
// first data row. When any workout's row count changed, the whole data
// region is rewritten instead, since in-place splicing cannot keep the
// remaining rows stable.
func (s *Steps) applyUpserts(ctx context.Context, sheet table.Table, survivors [][]string, order []string, fetched map[string]models.Workout, titles map[string]string) error {
	// Row indices per id; rows of one workout are contiguous in practice
	// but nothing below relies on it.
	index := make(map[string][]int)
	for i, row := range survivors {
		id := row[idColumn-1]
		index[id] = append(index[id], firstDataRow+i)
	}

	var updates []rowUpdate
	var inserts [][]string
	rewrite := false

	for _, id := range order {
		workout, ok := fetched[id]
		if !ok {
			continue
		}
		rows := workoutRows(workout, titles)
		existing := index[id]
		switch {
		case len(existing) == 0:
			inserts = append(inserts, rows...)
		case len(existing) == len(rows):
			for k, row := range rows {
				updates = append(updates, rowUpdate{rowIdx: existing[k], values: row})
			}
		default:
			rewrite = true
		}
	}

	if rewrite {
		return s.rewriteDelta(ctx, sheet, survivors, order, fetched, titles)
	}

	sort.Slice(updates, func(i, j int) bool { return updates[i].rowIdx < updates[j].rowIdx })
	for _, seg := range mergeSegments(updates) {
		if err := sheet.WriteRange(ctx, seg.startRow, 1, seg.rows); err != nil {
			return err
		}
	}

	if len(inserts) > 0 {
		if err := sheet.InsertRowsAt(ctx, firstDataRow, len(inserts)); err != nil {
			return err
		}
		if err := sheet.WriteRange(ctx, firstDataRow, 1, inserts); err != nil {
			return err
		}
	}
	logging.Info().Int("updates", len(updates)).Int("inserted_rows", len(inserts)).Msg("Workout delta applied")
	return nil
}

// rewriteDelta assembles the final table in memory and replaces the data
// region in one write.
func (s *Steps) rewriteDelta(ctx context.Context, sheet table.Table, survivors [][]string, order []string, fetched map[string]models.Workout, titles map[string]string) error {
	replaced := make(map[string]bool, len(fetched))
	for id := range fetched {
		replaced[id] = true
	}

	var final [][]string
	// New and updated workouts go first, newest block on top.
	for _, id := range order {
		if workout, ok := fetched[id]; ok {
			final = append(final, workoutRows(workout, titles)...)
		}
	}
	for _, row := range survivors {
		if !replaced[row[idColumn-1]] {
			final = append(final, row)
		}
	}
	logging.Info().Int("rows", len(final)).Msg("Workout delta applied with full rewrite")
	return rewriteDataRows(ctx, sheet, len(workoutHeaders), final)
}
