package models

import (
	"time"

	"github.com/clefbook/clefbook-api/pkg/timeutil"
)

// WeeklyAvailability is one recurring weekly window in which a teacher
// accepts bookings. Windows for the same weekday must not overlap.
type WeeklyAvailability struct {
	ID        string             `db:"id" json:"id"`
	TeacherID string             `db:"teacher_id" json:"teacher_id"`
	Weekday   int                `db:"weekday" json:"weekday"`
	StartTime timeutil.TimeOfDay `db:"start_minute" json:"start_time"`
	EndTime   timeutil.TimeOfDay `db:"end_minute" json:"end_time"`
	Active    bool               `db:"active" json:"active"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}

// BlockedInterval is a one-off absolute stretch of teacher unavailability.
// Rows are pruned once their end has passed.
type BlockedInterval struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	StartAt   time.Time `db:"start_at" json:"start_at"`
	EndAt     time.Time `db:"end_at" json:"end_at"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Slot is one candidate bookable interval in a generated sequence.
type Slot struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	DurationMin int       `json:"duration_min"`
	PriceCents  int64     `json:"price_cents"`
	Available   bool      `json:"available"`
	// Reason explains an unavailable slot: "past", "booked", "blocked",
	// or "beyond_horizon". Empty for available slots.
	Reason string `json:"reason,omitempty"`
}
