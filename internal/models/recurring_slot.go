package models

import (
	"time"

	"github.com/clefbook/clefbook-api/pkg/timeutil"
)

// RecurringSlotStatus enumerates standing-booking states.
type RecurringSlotStatus string

const (
	RecurringActive    RecurringSlotStatus = "ACTIVE"
	RecurringCancelled RecurringSlotStatus = "CANCELLED"
	RecurringPaused    RecurringSlotStatus = "PAUSED"
)

// RecurringSlot is a standing weekly booking between one teacher and one
// student, billed monthly. Cancellation is soft; generated lessons remain.
type RecurringSlot struct {
	ID                 string              `db:"id" json:"id"`
	TeacherID          string              `db:"teacher_id" json:"teacher_id"`
	StudentID          string              `db:"student_id" json:"student_id"`
	Weekday            int                 `db:"weekday" json:"weekday"`
	StartTime          timeutil.TimeOfDay  `db:"start_minute" json:"start_time"`
	DurationMin        int                 `db:"duration_min" json:"duration_min"`
	RatePerLessonCents int64               `db:"rate_per_lesson_cents" json:"rate_per_lesson_cents"`
	MonthlyRateCents   int64               `db:"monthly_rate_cents" json:"monthly_rate_cents"`
	Status             RecurringSlotStatus `db:"status" json:"status"`
	CancelledAt        *time.Time          `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

// Subscription ties a recurring slot to the monthly billing cycle. A slot
// can accumulate several over its life (e.g. after a pause and resume).
type Subscription struct {
	ID               string     `db:"id" json:"id"`
	RecurringSlotID  string     `db:"recurring_slot_id" json:"recurring_slot_id"`
	TeacherID        string     `db:"teacher_id" json:"teacher_id"`
	StudentID        string     `db:"student_id" json:"student_id"`
	MonthlyRateCents int64      `db:"monthly_rate_cents" json:"monthly_rate_cents"`
	Active           bool       `db:"active" json:"active"`
	CancelledAt      *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}
