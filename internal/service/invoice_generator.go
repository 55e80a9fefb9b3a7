package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/internal/models"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
	"github.com/clefbook/clefbook-api/pkg/retry"
	"github.com/clefbook/clefbook-api/pkg/timeutil"
)

type invoiceSlotRepo interface {
	FindByID(ctx context.Context, id string) (*models.RecurringSlot, error)
	ListActiveSubscriptions(ctx context.Context) ([]models.Subscription, error)
}

type invoiceBillingRepo interface {
	ExistsForMonth(ctx context.Context, subscriptionID, month string) (bool, error)
	Create(ctx context.Context, record *models.BillingRecord) error
}

// InvoiceGenerator creates one billing record per active subscription per
// calendar month. Amounts are recomputed from the month's actual occurrence
// count, so a five-Monday month bills more than a four-Monday month at the
// same per-lesson rate.
type InvoiceGenerator struct {
	slots      invoiceSlotRepo
	billing    invoiceBillingRepo
	records    jobRecorder
	calculator *BillingCalculator
	currency   string
	dbPolicy   retry.Policy
	logger     *zap.Logger
	now        func() time.Time
}

// NewInvoiceGenerator instantiates the invoice job.
func NewInvoiceGenerator(
	slots invoiceSlotRepo,
	billing invoiceBillingRepo,
	records jobRecorder,
	calculator *BillingCalculator,
	currency string,
	logger *zap.Logger,
) *InvoiceGenerator {
	if calculator == nil {
		calculator = NewBillingCalculator()
	}
	if currency == "" {
		currency = "USD"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceGenerator{
		slots:      slots,
		billing:    billing,
		records:    records,
		calculator: calculator,
		currency:   currency,
		dbPolicy:   retry.DatabasePolicy(),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source (tests).
func (g *InvoiceGenerator) WithClock(now func() time.Time) *InvoiceGenerator {
	g.now = now
	return g
}

// Run invoices the current month for every active subscription.
func (g *InvoiceGenerator) Run(ctx context.Context) (*models.JobResult, error) {
	return g.RunForMonth(ctx, timeutil.MonthOf(g.now().UTC()))
}

// RunForMonth invoices a specific month. Already-invoiced subscriptions are
// skipped; a failure on one subscription is recorded and the batch continues.
func (g *InvoiceGenerator) RunForMonth(ctx context.Context, month timeutil.Month) (*models.JobResult, error) {
	started := g.now().UTC()
	result := &models.JobResult{Success: true, Errors: models.JobErrors{}}

	subs, err := g.slots.ListActiveSubscriptions(ctx)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, models.JobError{ItemID: "list_subscriptions", Message: err.Error()})
		g.record(ctx, started, result)
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subscriptions")
	}
	result.Counts.SubscriptionsSeen = len(subs)

	for _, sub := range subs {
		switch err := g.invoiceSubscription(ctx, sub, month); {
		case err == nil:
			result.Counts.InvoicesCreated++
		case errors.Is(err, errAlreadyInvoicedSkip):
			// Idempotence: the month is already covered for this subscription.
		default:
			result.Success = false
			result.Errors = append(result.Errors, models.JobError{ItemID: sub.ID, Message: err.Error()})
		}
	}

	g.record(ctx, started, result)
	g.logger.Sugar().Infow("invoice generator run finished",
		"month", month.String(),
		"subscriptions", result.Counts.SubscriptionsSeen,
		"created", result.Counts.InvoicesCreated,
		"errors", len(result.Errors))
	return result, nil
}

func (g *InvoiceGenerator) record(ctx context.Context, started time.Time, result *models.JobResult) {
	if g.records == nil {
		return
	}
	rec := &models.JobExecutionRecord{
		ID:       uuid.NewString(),
		JobName:  models.JobGenerateInvoices,
		RanAt:    started,
		Success:  result.Success,
		Counts:   result.Counts,
		Errors:   result.Errors,
		Duration: g.now().UTC().Sub(started).Milliseconds(),
	}
	if err := g.records.Insert(ctx, rec); err != nil {
		g.logger.Sugar().Errorw("failed to persist job execution record", "job", rec.JobName, "error", err)
	}
}

func (g *InvoiceGenerator) invoiceSubscription(ctx context.Context, sub models.Subscription, month timeutil.Month) error {
	exists, err := g.billing.ExistsForMonth(ctx, sub.ID, month.String())
	if err != nil {
		return fmt.Errorf("check existing invoice: %w", err)
	}
	if exists {
		return errAlreadyInvoicedSkip
	}

	slot, err := g.slots.FindByID(ctx, sub.RecurringSlotID)
	if err != nil {
		return fmt.Errorf("load recurring slot %s: %w", sub.RecurringSlotID, err)
	}
	billing := g.calculator.MonthlyBilling(sub.MonthlyRateCents, time.Weekday(slot.Weekday), month)
	if billing.ExpectedLessons == 0 {
		// No occurrences fall in this month; nothing to bill.
		return errAlreadyInvoicedSkip
	}

	record := &models.BillingRecord{
		ID:                 uuid.NewString(),
		SubscriptionID:     sub.ID,
		TeacherID:          sub.TeacherID,
		StudentID:          sub.StudentID,
		Month:              billing.Month,
		ExpectedLessons:    billing.ExpectedLessons,
		RatePerLessonCents: billing.RatePerLessonCents,
		TotalAmountCents:   billing.TotalAmountCents,
		Currency:           g.currency,
		Status:             models.PaymentPending,
	}
	err = retry.Do(ctx, g.dbPolicy, g.logger, func(ctx context.Context) error {
		return g.billing.Create(ctx, record)
	})
	if err != nil {
		if fromErr := appErrors.FromError(err); fromErr != nil && fromErr.Code == appErrors.ErrAlreadyInvoiced.Code {
			// Lost a race with a concurrent run; the month is covered.
			return errAlreadyInvoicedSkip
		}
		return fmt.Errorf("create billing record: %w", err)
	}
	return nil
}

// errAlreadyInvoicedSkip marks a subscription that needs no new record this
// run. The caller treats it as a silent skip, not a failure.
var errAlreadyInvoicedSkip = errSkip{}

type errSkip struct{}

func (errSkip) Error() string { return "skip" }
