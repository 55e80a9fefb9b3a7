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

const billingColumns = "id, subscription_id, teacher_id, student_id, month, expected_lessons, rate_per_lesson_cents, total_amount_cents, refund_cents, currency, status, created_at, updated_at"

// BillingRepository persists monthly billing records.
type BillingRepository struct {
	db *sqlx.DB
}

// NewBillingRepository creates a new billing repository.
func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// ExistsForMonth reports whether the subscription was already invoiced for
// the month (the invoice generator's idempotence check).
func (r *BillingRepository) ExistsForMonth(ctx context.Context, subscriptionID, month string) (bool, error) {
	const query = `SELECT COUNT(*) FROM billing_records WHERE subscription_id = $1 AND month = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, subscriptionID, month); err != nil {
		return false, fmt.Errorf("check billing record existence: %w", err)
	}
	return count > 0, nil
}

// Create inserts a billing record. The (subscription_id, month) unique
// constraint makes concurrent invoice runs safe; a violation maps to the
// already-invoiced conflict.
func (r *BillingRepository) Create(ctx context.Context, record *models.BillingRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	const query = `INSERT INTO billing_records (id, subscription_id, teacher_id, student_id, month, expected_lessons, rate_per_lesson_cents, total_amount_cents, refund_cents, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := r.db.ExecContext(ctx, query,
		record.ID, record.SubscriptionID, record.TeacherID, record.StudentID, record.Month,
		record.ExpectedLessons, record.RatePerLessonCents, record.TotalAmountCents, record.RefundCents,
		record.Currency, record.Status, record.CreatedAt, record.UpdatedAt,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return appErrors.Clone(appErrors.ErrAlreadyInvoiced, "")
		}
		return fmt.Errorf("create billing record: %w", err)
	}
	return nil
}

// ListByMonth returns every billing record for the month.
func (r *BillingRepository) ListByMonth(ctx context.Context, month string) ([]models.BillingRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM billing_records WHERE month = $1 ORDER BY teacher_id, student_id", billingColumns)
	var records []models.BillingRecord
	if err := r.db.SelectContext(ctx, &records, query, month); err != nil {
		return nil, fmt.Errorf("list billing records: %w", err)
	}
	return records, nil
}

// ListBySubscription returns a subscription's billing history, newest first.
func (r *BillingRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]models.BillingRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM billing_records WHERE subscription_id = $1 ORDER BY month DESC", billingColumns)
	var records []models.BillingRecord
	if err := r.db.SelectContext(ctx, &records, query, subscriptionID); err != nil {
		return nil, fmt.Errorf("list subscription billing records: %w", err)
	}
	return records, nil
}

// RecordRefund stores the refund amount computed at cancellation against the
// current month's record, when one exists.
func (r *BillingRepository) RecordRefund(ctx context.Context, subscriptionID, month string, refundCents int64) error {
	const query = `UPDATE billing_records SET refund_cents = $3, updated_at = $4 WHERE subscription_id = $1 AND month = $2`
	if _, err := r.db.ExecContext(ctx, query, subscriptionID, month, refundCents, time.Now().UTC()); err != nil {
		return fmt.Errorf("record refund: %w", err)
	}
	return nil
}
