package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

const overrideColumns = `id, series_id, original_date, override_type, new_date, new_hour, new_minute, status, created_at, updated_at`

// LessonOverrideRepository persists per-occurrence deviations keyed by (series_id, original_date).
type LessonOverrideRepository struct {
	db *sqlx.DB
}

// NewLessonOverrideRepository constructs the repository.
func NewLessonOverrideRepository(db *sqlx.DB) *LessonOverrideRepository {
	return &LessonOverrideRepository{db: db}
}

func (r *LessonOverrideRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Get returns the override for one occurrence or sql.ErrNoRows.
func (r *LessonOverrideRepository) Get(ctx context.Context, exec sqlx.ExtContext, seriesID string, date models.Date) (*models.LessonOverride, error) {
	const query = `SELECT ` + overrideColumns + ` FROM lesson_overrides WHERE series_id = $1 AND original_date = $2`
	var override models.LessonOverride
	if err := sqlx.GetContext(ctx, r.exec(exec), &override, query, seriesID, date); err != nil {
		return nil, err
	}
	return &override, nil
}

// Upsert creates or replaces the override for (series_id, original_date). Replacing drops any
// previous target so a cancellation never inherits a stale postponement.
func (r *LessonOverrideRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, override *models.LessonOverride) error {
	if override == nil {
		return fmt.Errorf("override payload is nil")
	}
	if err := override.Validate(); err != nil {
		return err
	}
	if override.ID == "" {
		override.ID = uuid.NewString()
	}
	override.Status = string(override.Type)
	now := time.Now().UTC()

	const query = `
INSERT INTO lesson_overrides (id, series_id, original_date, override_type, new_date, new_hour, new_minute, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
ON CONFLICT (series_id, original_date) DO UPDATE SET
    override_type = EXCLUDED.override_type,
    new_date = EXCLUDED.new_date,
    new_hour = EXCLUDED.new_hour,
    new_minute = EXCLUDED.new_minute,
    status = EXCLUDED.status,
    updated_at = EXCLUDED.updated_at
RETURNING ` + overrideColumns

	if err := sqlx.GetContext(ctx, r.exec(exec), override, query,
		override.ID,
		override.SeriesID,
		override.OriginalDate,
		override.Type,
		override.NewDate,
		override.NewHour,
		override.NewMinute,
		override.Status,
		now,
	); err != nil {
		return fmt.Errorf("upsert lesson override: %w", err)
	}
	return nil
}

// Delete restores the occurrence to its recurring default and reports whether a row existed.
func (r *LessonOverrideRepository) Delete(ctx context.Context, exec sqlx.ExtContext, seriesID string, date models.Date) (bool, error) {
	const query = `DELETE FROM lesson_overrides WHERE series_id = $1 AND original_date = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, seriesID, date)
	if err != nil {
		return false, fmt.Errorf("delete lesson override: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("lesson override rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListInRange loads every override that either originates in or lands in [start, end] with a
// single query and partitions the rows by the role the date plays.
func (r *LessonOverrideRepository) ListInRange(ctx context.Context, start, end models.Date) (*models.OverrideRange, error) {
	const query = `SELECT ` + overrideColumns + ` FROM lesson_overrides
WHERE original_date BETWEEN $1 AND $2
   OR (override_type = 'postponed' AND new_date BETWEEN $1 AND $2)
ORDER BY original_date, series_id`

	var rows []models.LessonOverride
	if err := r.db.SelectContext(ctx, &rows, query, start, end); err != nil {
		return nil, fmt.Errorf("list lesson overrides in range: %w", err)
	}

	result := &models.OverrideRange{
		ByOriginalDate: make(map[models.Date]map[string]models.LessonOverride),
		ByNewDate:      make(map[models.Date][]models.LessonOverride),
	}
	for _, row := range rows {
		if inWindow(row.OriginalDate, start, end) {
			bucket, ok := result.ByOriginalDate[row.OriginalDate]
			if !ok {
				bucket = make(map[string]models.LessonOverride)
				result.ByOriginalDate[row.OriginalDate] = bucket
			}
			bucket[row.SeriesID] = row
		}
		if target, ok := row.Target(); ok && inWindow(target.Date, start, end) {
			result.ByNewDate[target.Date] = append(result.ByNewDate[target.Date], row)
		}
	}
	for date := range result.ByNewDate {
		sortByTarget(result.ByNewDate[date])
	}
	return result, nil
}

// ListPostponedTo returns postponements whose target falls on date.
func (r *LessonOverrideRepository) ListPostponedTo(ctx context.Context, date models.Date) ([]models.LessonOverride, error) {
	return r.ListPostponedBetween(ctx, date, date)
}

// ListPostponedBetween returns postponements whose target falls in [start, end], ordered by target.
func (r *LessonOverrideRepository) ListPostponedBetween(ctx context.Context, start, end models.Date) ([]models.LessonOverride, error) {
	const query = `SELECT ` + overrideColumns + ` FROM lesson_overrides
WHERE override_type = 'postponed' AND new_date BETWEEN $1 AND $2
ORDER BY new_date, new_hour, new_minute`
	var rows []models.LessonOverride
	if err := r.db.SelectContext(ctx, &rows, query, start, end); err != nil {
		return nil, fmt.Errorf("list postponed lesson overrides: %w", err)
	}
	return rows, nil
}

// Find is Get without the sentinel: a missing override yields nil, nil.
func (r *LessonOverrideRepository) Find(ctx context.Context, seriesID string, date models.Date) (*models.LessonOverride, error) {
	override, err := r.Get(ctx, nil, seriesID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson override: %w", err)
	}
	return override, nil
}

func inWindow(d, start, end models.Date) bool {
	return !d.Before(start) && !d.After(end)
}

func sortByTarget(rows []models.LessonOverride) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, _ := rows[i].Target()
		b, _ := rows[j].Target()
		return a.Less(b)
	})
}
