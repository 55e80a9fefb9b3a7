package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clefbook/clefbook-api/internal/models"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
)

const lessonColumns = "id, teacher_id, student_id, recurring_slot_id, start_at, duration_min, status, notes, homework, created_at, updated_at"

// pgUniqueViolation is the PostgreSQL error code for unique constraint hits.
const pgUniqueViolation = "23505"

// LessonRepository provides persistence for lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new lesson repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// FindByID loads a lesson by id.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE id = $1", lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ListOverlapping returns a teacher's lessons in the given statuses whose
// interval intersects [from, to).
func (r *LessonRepository) ListOverlapping(ctx context.Context, teacherID string, from, to time.Time, statuses []models.LessonStatus) ([]models.Lesson, error) {
	raw := make([]string, len(statuses))
	for i, s := range statuses {
		raw[i] = string(s)
	}
	query := fmt.Sprintf(`SELECT %s FROM lessons
		WHERE teacher_id = $1
		  AND status = ANY($2)
		  AND start_at < $4
		  AND start_at + (duration_min * INTERVAL '1 minute') > $3
		ORDER BY start_at`, lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, teacherID, pq.Array(raw), from, to); err != nil {
		return nil, fmt.Errorf("list overlapping lessons: %w", err)
	}
	return lessons, nil
}

// ListByTeacher returns a teacher's lessons within [from, to) in any status.
func (r *LessonRepository) ListByTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE teacher_id = $1 AND start_at >= $2 AND start_at < $3 ORDER BY start_at", lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list teacher lessons: %w", err)
	}
	return lessons, nil
}

// Create inserts a lesson. The partial unique index on (teacher_id, start_at)
// for SCHEDULED rows is the double-booking backstop; a violation surfaces as
// the slot-taken conflict rather than an internal error.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now

	const query = `INSERT INTO lessons (id, teacher_id, student_id, recurring_slot_id, start_at, duration_min, status, notes, homework, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query,
		lesson.ID, lesson.TeacherID, lesson.StudentID, lesson.RecurringSlotID,
		lesson.StartAt, lesson.DurationMin, lesson.Status, lesson.Notes, lesson.Homework,
		lesson.CreatedAt, lesson.UpdatedAt,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return appErrors.Clone(appErrors.ErrSlotTaken, "")
		}
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// ExistsForSlotDate reports whether the recurring slot already materialized a
// lesson on the given calendar date (duplicate-suppression key).
func (r *LessonRepository) ExistsForSlotDate(ctx context.Context, recurringSlotID string, date time.Time) (bool, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	const query = `SELECT 1 FROM lessons WHERE recurring_slot_id = $1 AND start_at >= $2 AND start_at < $3 LIMIT 1`
	var one int
	err := r.db.GetContext(ctx, &one, query, recurringSlotID, dayStart, dayEnd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check lesson existence: %w", err)
	}
	return true, nil
}

// UpdateStatus transitions a lesson's status.
func (r *LessonRepository) UpdateStatus(ctx context.Context, id string, status models.LessonStatus) error {
	const query = `UPDATE lessons SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update lesson status: %w", err)
	}
	return nil
}

// MarkPastScheduledMissed repairs derived state: lessons whose start has
// passed and are still SCHEDULED become MISSED. Returns the number repaired.
func (r *LessonRepository) MarkPastScheduledMissed(ctx context.Context, now time.Time) (int, error) {
	const query = `UPDATE lessons SET status = $1, updated_at = $2 WHERE status = $3 AND start_at < $2`
	res, err := r.db.ExecContext(ctx, query, models.LessonMissed, now, models.LessonScheduled)
	if err != nil {
		return 0, fmt.Errorf("mark missed lessons: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark missed lessons result: %w", err)
	}
	return int(rows), nil
}

// CountCompletedInMonth counts a teacher's completed lessons within the month
// window [monthStart, nextMonthStart).
func (r *LessonRepository) CountCompletedInMonth(ctx context.Context, teacherID string, monthStart, nextMonthStart time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM lessons WHERE teacher_id = $1 AND status = $2 AND start_at >= $3 AND start_at < $4`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacherID, models.LessonCompleted, monthStart, nextMonthStart); err != nil {
		return 0, fmt.Errorf("count completed lessons: %w", err)
	}
	return count, nil
}
