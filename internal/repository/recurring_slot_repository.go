package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clefbook/clefbook-api/internal/models"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
)

const recurringSlotColumns = "id, teacher_id, student_id, weekday, start_minute, duration_min, rate_per_lesson_cents, monthly_rate_cents, status, cancelled_at, created_at, updated_at"

// RecurringSlotRepository persists standing weekly bookings and their
// billing subscriptions.
type RecurringSlotRepository struct {
	db *sqlx.DB
}

// NewRecurringSlotRepository creates a new recurring slot repository.
func NewRecurringSlotRepository(db *sqlx.DB) *RecurringSlotRepository {
	return &RecurringSlotRepository{db: db}
}

// FindByID loads a recurring slot by id.
func (r *RecurringSlotRepository) FindByID(ctx context.Context, id string) (*models.RecurringSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM recurring_slots WHERE id = $1", recurringSlotColumns)
	var slot models.RecurringSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListActive returns every ACTIVE recurring slot ordered by teacher so the
// materializer can process teachers as independent batches.
func (r *RecurringSlotRepository) ListActive(ctx context.Context) ([]models.RecurringSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM recurring_slots WHERE status = $1 ORDER BY teacher_id, start_minute", recurringSlotColumns)
	var slots []models.RecurringSlot
	if err := r.db.SelectContext(ctx, &slots, query, models.RecurringActive); err != nil {
		return nil, fmt.Errorf("list active recurring slots: %w", err)
	}
	return slots, nil
}

// ListByTeacher returns all of a teacher's recurring slots.
func (r *RecurringSlotRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.RecurringSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM recurring_slots WHERE teacher_id = $1 ORDER BY weekday, start_minute", recurringSlotColumns)
	var slots []models.RecurringSlot
	if err := r.db.SelectContext(ctx, &slots, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher recurring slots: %w", err)
	}
	return slots, nil
}

// Create inserts the slot and its initial subscription in one transaction.
// A hit on the active-slot unique index surfaces as the slot-taken conflict.
func (r *RecurringSlotRepository) Create(ctx context.Context, slot *models.RecurringSlot, sub *models.Subscription) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recurring slot create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.CreatedAt = now
	slot.UpdatedAt = now

	const insertSlot = `INSERT INTO recurring_slots (id, teacher_id, student_id, weekday, start_minute, duration_min, rate_per_lesson_cents, monthly_rate_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := tx.ExecContext(ctx, insertSlot,
		slot.ID, slot.TeacherID, slot.StudentID, slot.Weekday, slot.StartTime, slot.DurationMin,
		slot.RatePerLessonCents, slot.MonthlyRateCents, slot.Status, slot.CreatedAt, slot.UpdatedAt,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return appErrors.Clone(appErrors.ErrSlotTaken, "an active recurring slot already holds this time")
		}
		return fmt.Errorf("create recurring slot: %w", err)
	}

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.RecurringSlotID = slot.ID
	sub.TeacherID = slot.TeacherID
	sub.StudentID = slot.StudentID
	sub.CreatedAt = now

	const insertSub = `INSERT INTO subscriptions (id, recurring_slot_id, teacher_id, student_id, monthly_rate_cents, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, insertSub,
		sub.ID, sub.RecurringSlotID, sub.TeacherID, sub.StudentID, sub.MonthlyRateCents, sub.Active, sub.CreatedAt,
	); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recurring slot create: %w", err)
	}
	return nil
}

// Cancel soft-cancels the slot and its active subscriptions in one
// transaction. Historical lessons stay untouched.
func (r *RecurringSlotRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recurring slot cancel: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const cancelSlot = `UPDATE recurring_slots SET status = $2, cancelled_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, cancelSlot, id, models.RecurringCancelled, at); err != nil {
		return fmt.Errorf("cancel recurring slot: %w", err)
	}

	const cancelSubs = `UPDATE subscriptions SET active = FALSE, cancelled_at = $2 WHERE recurring_slot_id = $1 AND active = TRUE`
	if _, err := tx.ExecContext(ctx, cancelSubs, id, at); err != nil {
		return fmt.Errorf("cancel subscriptions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recurring slot cancel: %w", err)
	}
	return nil
}

// CancelFutureLessons cancels SCHEDULED lessons generated from the slot that
// start after the cutoff. Past and completed lessons are preserved.
func (r *RecurringSlotRepository) CancelFutureLessons(ctx context.Context, slotID string, after time.Time) (int, error) {
	const query = `UPDATE lessons SET status = $1, updated_at = $2 WHERE recurring_slot_id = $3 AND status = $4 AND start_at > $2`
	res, err := r.db.ExecContext(ctx, query, models.LessonCancelled, after, slotID, models.LessonScheduled)
	if err != nil {
		return 0, fmt.Errorf("cancel future lessons: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel future lessons result: %w", err)
	}
	return int(rows), nil
}

// ListActiveSubscriptions returns subscriptions whose recurring slot is
// still ACTIVE (the invoice generator's input set).
func (r *RecurringSlotRepository) ListActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	const query = `SELECT s.id, s.recurring_slot_id, s.teacher_id, s.student_id, s.monthly_rate_cents, s.active, s.cancelled_at, s.created_at
		FROM subscriptions s
		JOIN recurring_slots rs ON rs.id = s.recurring_slot_id
		WHERE s.active = TRUE AND rs.status = $1
		ORDER BY s.teacher_id, s.id`
	var subs []models.Subscription
	if err := r.db.SelectContext(ctx, &subs, query, models.RecurringActive); err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}
	return subs, nil
}

// FindActiveSubscription returns the slot's currently active subscription.
func (r *RecurringSlotRepository) FindActiveSubscription(ctx context.Context, slotID string) (*models.Subscription, error) {
	const query = `SELECT id, recurring_slot_id, teacher_id, student_id, monthly_rate_cents, active, cancelled_at, created_at
		FROM subscriptions WHERE recurring_slot_id = $1 AND active = TRUE LIMIT 1`
	var sub models.Subscription
	if err := r.db.GetContext(ctx, &sub, query, slotID); err != nil {
		return nil, err
	}
	return &sub, nil
}
