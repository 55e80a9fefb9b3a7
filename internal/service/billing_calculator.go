package service

import (
	"time"

	"github.com/clefbook/clefbook-api/internal/models"
	"github.com/clefbook/clefbook-api/pkg/timeutil"
)

// BillingCalculator performs the month-granular billing arithmetic for
// recurring slots. All amounts are integer cents; rounding happens exactly
// once, when the monthly rate is split into a per-lesson rate, so invoice
// and refund paths always reconcile.
type BillingCalculator struct{}

// NewBillingCalculator constructs the calculator.
func NewBillingCalculator() *BillingCalculator {
	return &BillingCalculator{}
}

// splitRate divides a monthly rate across n lessons, rounding half up.
// This is the single rounding point in all monetary arithmetic.
func splitRate(monthlyRateCents int64, n int) int64 {
	if n <= 0 {
		return 0
	}
	return (monthlyRateCents + int64(n)/2) / int64(n)
}

// OccurrencesInMonth counts the weekday's dates within the month.
func (c *BillingCalculator) OccurrencesInMonth(weekday time.Weekday, month timeutil.Month) int {
	return timeutil.OccurrencesInMonth(weekday, month)
}

// MonthlyBilling computes what one recurring slot costs for a specific
// month. Months where the weekday never occurs yield a zero bill; that is a
// defined outcome, not an error.
func (c *BillingCalculator) MonthlyBilling(monthlyRateCents int64, weekday time.Weekday, month timeutil.Month) models.MonthlyBilling {
	expected := timeutil.OccurrencesInMonth(weekday, month)
	if expected == 0 {
		return models.MonthlyBilling{Month: month.String()}
	}
	perLesson := splitRate(monthlyRateCents, expected)
	return models.MonthlyBilling{
		Month:              month.String(),
		ExpectedLessons:    expected,
		RatePerLessonCents: perLesson,
		// Always the product, never an independently rounded figure.
		TotalAmountCents: perLesson * int64(expected),
	}
}

// RefundForCancellation computes the partial-month refund when a recurring
// slot is cancelled mid-month: every occurrence on or after the cancel date
// is refunded at the same per-lesson rate the month was billed at.
func (c *BillingCalculator) RefundForCancellation(monthlyRateCents int64, weekday time.Weekday, month timeutil.Month, cancelDate time.Time) models.CancellationRefund {
	total := timeutil.OccurrencesInMonth(weekday, month)
	if total == 0 {
		return models.CancellationRefund{Month: month.String()}
	}
	remaining := timeutil.RemainingOccurrences(weekday, month, cancelDate)
	perLesson := splitRate(monthlyRateCents, total)
	return models.CancellationRefund{
		Month:            month.String(),
		TotalLessons:     total,
		RemainingLessons: remaining,
		RefundCents:      perLesson * int64(remaining),
	}
}
