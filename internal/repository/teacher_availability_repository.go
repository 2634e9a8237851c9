package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

const availabilityColumns = `id, teacher_id, available_date, start_hour, end_hour, created_at, updated_at`

// TeacherAvailabilityRepository stores per-date reschedule windows.
type TeacherAvailabilityRepository struct {
	db *sqlx.DB
}

// NewTeacherAvailabilityRepository constructs the repository.
func NewTeacherAvailabilityRepository(db *sqlx.DB) *TeacherAvailabilityRepository {
	return &TeacherAvailabilityRepository{db: db}
}

// Upsert replaces the window for (teacher_id, date).
func (r *TeacherAvailabilityRepository) Upsert(ctx context.Context, availability *models.TeacherAvailability) error {
	if availability == nil {
		return fmt.Errorf("availability payload is nil")
	}
	if availability.ID == "" {
		availability.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	const query = `
INSERT INTO teacher_availability (id, teacher_id, available_date, start_hour, end_hour, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (teacher_id, available_date) DO UPDATE SET
    start_hour = EXCLUDED.start_hour,
    end_hour = EXCLUDED.end_hour,
    updated_at = EXCLUDED.updated_at
RETURNING ` + availabilityColumns
	if err := r.db.GetContext(ctx, availability, query,
		availability.ID,
		availability.TeacherID,
		availability.Date,
		availability.StartHour,
		availability.EndHour,
		now,
	); err != nil {
		return fmt.Errorf("upsert teacher availability: %w", err)
	}
	return nil
}

// Delete removes the window on date and reports whether one existed.
func (r *TeacherAvailabilityRepository) Delete(ctx context.Context, teacherID string, date models.Date) (bool, error) {
	const query = `DELETE FROM teacher_availability WHERE teacher_id = $1 AND available_date = $2`
	result, err := r.db.ExecContext(ctx, query, teacherID, date)
	if err != nil {
		return false, fmt.Errorf("delete teacher availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("teacher availability rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListBetween returns the teacher's windows in [start, end] ordered by date.
func (r *TeacherAvailabilityRepository) ListBetween(ctx context.Context, teacherID string, start, end models.Date) ([]models.TeacherAvailability, error) {
	const query = `SELECT ` + availabilityColumns + ` FROM teacher_availability
WHERE teacher_id = $1 AND available_date BETWEEN $2 AND $3
ORDER BY available_date`
	var windows []models.TeacherAvailability
	if err := r.db.SelectContext(ctx, &windows, query, teacherID, start, end); err != nil {
		return nil, fmt.Errorf("list teacher availability: %w", err)
	}
	return windows, nil
}

// ListFrom returns the teacher's windows on or after from.
func (r *TeacherAvailabilityRepository) ListFrom(ctx context.Context, teacherID string, from models.Date) ([]models.TeacherAvailability, error) {
	const query = `SELECT ` + availabilityColumns + ` FROM teacher_availability
WHERE teacher_id = $1 AND available_date >= $2
ORDER BY available_date`
	var windows []models.TeacherAvailability
	if err := r.db.SelectContext(ctx, &windows, query, teacherID, from); err != nil {
		return nil, fmt.Errorf("list upcoming teacher availability: %w", err)
	}
	return windows, nil
}

// PurgeBefore deletes every window dated before date.
func (r *TeacherAvailabilityRepository) PurgeBefore(ctx context.Context, date models.Date) (int64, error) {
	const query = `DELETE FROM teacher_availability WHERE available_date < $1`
	result, err := r.db.ExecContext(ctx, query, date)
	if err != nil {
		return 0, fmt.Errorf("purge teacher availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purged teacher availability rows affected: %w", err)
	}
	return affected, nil
}
