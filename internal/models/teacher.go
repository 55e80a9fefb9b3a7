package models

import "time"

// Teacher is a music teacher offering bookable lessons.
type Teacher struct {
	ID                 string    `db:"id" json:"id"`
	Email              string    `db:"email" json:"email"`
	FullName           string    `db:"full_name" json:"full_name"`
	Instrument         *string   `db:"instrument" json:"instrument,omitempty"`
	Timezone           string    `db:"timezone" json:"timezone"`
	Rate30Cents        int64     `db:"rate_30_cents" json:"rate_30_cents"`
	Rate60Cents        int64     `db:"rate_60_cents" json:"rate_60_cents"`
	AdvanceBookingDays int       `db:"advance_booking_days" json:"advance_booking_days"`
	Active             bool      `db:"active" json:"active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// RateFor returns the price in cents for the given lesson duration, or zero
// when the teacher does not offer that duration.
func (t Teacher) RateFor(durationMin int) int64 {
	switch durationMin {
	case 30:
		return t.Rate30Cents
	case 60:
		return t.Rate60Cents
	default:
		return 0
	}
}

// OfferedDurations lists the lesson lengths the teacher has priced.
func (t Teacher) OfferedDurations() []int {
	var durations []int
	if t.Rate30Cents > 0 {
		durations = append(durations, 30)
	}
	if t.Rate60Cents > 0 {
		durations = append(durations, 60)
	}
	return durations
}

// Student books lessons with teachers.
type Student struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Timezone  string    `db:"timezone" json:"timezone"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
