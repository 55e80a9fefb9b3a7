package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clefbook/clefbook-api/internal/models"
)

// AvailabilityRepository persists weekly windows and one-off blocks.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListWindows returns a teacher's active weekly windows ordered by weekday
// then start time.
func (r *AvailabilityRepository) ListWindows(ctx context.Context, teacherID string) ([]models.WeeklyAvailability, error) {
	const query = `SELECT id, teacher_id, weekday, start_minute, end_minute, active, created_at
		FROM weekly_availability
		WHERE teacher_id = $1 AND active = TRUE
		ORDER BY weekday, start_minute`
	var windows []models.WeeklyAvailability
	if err := r.db.SelectContext(ctx, &windows, query, teacherID); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return windows, nil
}

// ReplaceWindows swaps a teacher's whole weekly schedule in one transaction:
// delete everything, insert the new set. The caller has already validated
// the windows.
func (r *AvailabilityRepository) ReplaceWindows(ctx context.Context, teacherID string, windows []models.WeeklyAvailability) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin availability replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM weekly_availability WHERE teacher_id = $1", teacherID); err != nil {
		return fmt.Errorf("clear availability windows: %w", err)
	}

	const insert = `INSERT INTO weekly_availability (id, teacher_id, weekday, start_minute, end_minute, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	now := time.Now().UTC()
	for i := range windows {
		w := &windows[i]
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		w.TeacherID = teacherID
		w.Active = true
		w.CreatedAt = now
		if _, err := tx.ExecContext(ctx, insert, w.ID, w.TeacherID, w.Weekday, w.StartTime, w.EndTime, w.Active, w.CreatedAt); err != nil {
			return fmt.Errorf("insert availability window: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit availability replace: %w", err)
	}
	return nil
}

// ListBlockedOverlapping returns a teacher's blocked intervals intersecting
// [from, to).
func (r *AvailabilityRepository) ListBlockedOverlapping(ctx context.Context, teacherID string, from, to time.Time) ([]models.BlockedInterval, error) {
	const query = `SELECT id, teacher_id, start_at, end_at, reason, created_at
		FROM blocked_intervals
		WHERE teacher_id = $1 AND start_at < $3 AND end_at > $2
		ORDER BY start_at`
	var blocked []models.BlockedInterval
	if err := r.db.SelectContext(ctx, &blocked, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list blocked intervals: %w", err)
	}
	return blocked, nil
}

// CreateBlocked inserts a one-off blocked interval.
func (r *AvailabilityRepository) CreateBlocked(ctx context.Context, blocked *models.BlockedInterval) error {
	if blocked.ID == "" {
		blocked.ID = uuid.NewString()
	}
	blocked.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO blocked_intervals (id, teacher_id, start_at, end_at, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query,
		blocked.ID, blocked.TeacherID, blocked.StartAt, blocked.EndAt, blocked.Reason, blocked.CreatedAt,
	); err != nil {
		return fmt.Errorf("create blocked interval: %w", err)
	}
	return nil
}

// DeleteBlocked removes a blocked interval owned by the teacher.
func (r *AvailabilityRepository) DeleteBlocked(ctx context.Context, id, teacherID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM blocked_intervals WHERE id = $1 AND teacher_id = $2", id, teacherID)
	if err != nil {
		return false, fmt.Errorf("delete blocked interval: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete blocked interval result: %w", err)
	}
	return rows > 0, nil
}

// PruneExpiredBlocked deletes intervals whose end has passed and reports how
// many were removed.
func (r *AvailabilityRepository) PruneExpiredBlocked(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM blocked_intervals WHERE end_at < $1", now)
	if err != nil {
		return 0, fmt.Errorf("prune blocked intervals: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune blocked intervals result: %w", err)
	}
	return int(rows), nil
}
