package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clefbook/clefbook-api/pkg/timeutil"
)

func TestMonthlyBillingFourAndFiveOccurrenceMonths(t *testing.T) {
	calc := NewBillingCalculator()

	// September 2025 has five Mondays and four Thursdays.
	september := timeutil.Month{Year: 2025, Month: time.September}

	five := calc.MonthlyBilling(20000, time.Monday, september)
	assert.Equal(t, 5, five.ExpectedLessons)
	assert.Equal(t, int64(4000), five.RatePerLessonCents)
	assert.Equal(t, int64(20000), five.TotalAmountCents)

	four := calc.MonthlyBilling(20000, time.Thursday, september)
	assert.Equal(t, 4, four.ExpectedLessons)
	assert.Equal(t, int64(5000), four.RatePerLessonCents)
	assert.Equal(t, int64(20000), four.TotalAmountCents)
}

func TestMonthlyBillingRoundsOnce(t *testing.T) {
	calc := NewBillingCalculator()
	september := timeutil.Month{Year: 2025, Month: time.September}

	// 10000 / 4 Thursdays = 2500 exactly; 10000 / 5 Mondays = 2000 exactly.
	// An uneven rate rounds half-up at the per-lesson step and the total is
	// the rounded rate times the count, never the raw monthly rate.
	billing := calc.MonthlyBilling(10000, time.Monday, september)
	assert.Equal(t, int64(2000), billing.RatePerLessonCents)

	uneven := calc.MonthlyBilling(9999, time.Thursday, september)
	// 9999/4 = 2499.75, rounds to 2500; total 4 x 2500 = 10000.
	assert.Equal(t, int64(2500), uneven.RatePerLessonCents)
	assert.Equal(t, int64(10000), uneven.TotalAmountCents)
}

func TestMonthlyBillingZeroRate(t *testing.T) {
	calc := NewBillingCalculator()
	// February 2026 has exactly four of every weekday.
	february := timeutil.Month{Year: 2026, Month: time.February}
	billing := calc.MonthlyBilling(0, time.Monday, february)
	assert.Equal(t, 4, billing.ExpectedLessons)
	assert.Equal(t, int64(0), billing.TotalAmountCents)
}

func TestRefundForCancellation(t *testing.T) {
	calc := NewBillingCalculator()
	september := timeutil.Month{Year: 2025, Month: time.September}

	// Cancelling on Tuesday Sep 16 leaves the Mondays of Sep 22 and 29.
	cancelAt := time.Date(2025, 9, 16, 12, 0, 0, 0, time.UTC)
	refund := calc.RefundForCancellation(20000, time.Monday, september, cancelAt)
	require.Equal(t, 5, refund.TotalLessons)
	assert.Equal(t, 2, refund.RemainingLessons)
	assert.Equal(t, int64(8000), refund.RefundCents)
}

func TestRefundForCancellationNothingRemaining(t *testing.T) {
	calc := NewBillingCalculator()
	september := timeutil.Month{Year: 2025, Month: time.September}

	cancelAt := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	refund := calc.RefundForCancellation(20000, time.Monday, september, cancelAt)
	assert.Equal(t, 0, refund.RemainingLessons)
	assert.Equal(t, int64(0), refund.RefundCents)
}

func TestRefundCancellationDayCountsWhenLessonStillAhead(t *testing.T) {
	calc := NewBillingCalculator()
	september := timeutil.Month{Year: 2025, Month: time.September}

	// Cancelling on a Monday counts that Monday as remaining.
	cancelAt := time.Date(2025, 9, 22, 8, 0, 0, 0, time.UTC)
	refund := calc.RefundForCancellation(20000, time.Monday, september, cancelAt)
	assert.Equal(t, 2, refund.RemainingLessons)
	assert.Equal(t, int64(8000), refund.RefundCents)
}
