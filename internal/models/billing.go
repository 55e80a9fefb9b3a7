package models

import "time"

// PaymentStatus enumerates billing record payment states. Transitions beyond
// PENDING are driven by payment-provider webhooks outside this service.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// BillingRecord is one subscription's invoice for one calendar month.
// Uniqueness is (subscription_id, month).
type BillingRecord struct {
	ID                 string        `db:"id" json:"id"`
	SubscriptionID     string        `db:"subscription_id" json:"subscription_id"`
	TeacherID          string        `db:"teacher_id" json:"teacher_id"`
	StudentID          string        `db:"student_id" json:"student_id"`
	Month              string        `db:"month" json:"month"`
	ExpectedLessons    int           `db:"expected_lessons" json:"expected_lessons"`
	RatePerLessonCents int64         `db:"rate_per_lesson_cents" json:"rate_per_lesson_cents"`
	TotalAmountCents   int64         `db:"total_amount_cents" json:"total_amount_cents"`
	RefundCents        int64         `db:"refund_cents" json:"refund_cents"`
	Currency           string        `db:"currency" json:"currency"`
	Status             PaymentStatus `db:"status" json:"status"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// MonthlyBilling is the calculator output for one month of one slot.
type MonthlyBilling struct {
	Month              string `json:"month"`
	ExpectedLessons    int    `json:"expected_lessons"`
	RatePerLessonCents int64  `json:"rate_per_lesson_cents"`
	TotalAmountCents   int64  `json:"total_amount_cents"`
}

// CancellationRefund is the calculator output for a mid-month cancellation.
type CancellationRefund struct {
	Month            string `json:"month"`
	TotalLessons     int    `json:"total_lessons"`
	RemainingLessons int    `json:"remaining_lessons"`
	RefundCents      int64  `json:"refund_cents"`
}
