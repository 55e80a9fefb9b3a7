package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/internal/models"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
	"github.com/clefbook/clefbook-api/pkg/jobs"
	"github.com/clefbook/clefbook-api/pkg/timeutil"
)

// referenceOccurrences is the canonical occurrence count used to derive a
// monthly rate from a per-lesson rate. Actual billing always recounts the
// specific month.
const referenceOccurrences = 4

type recurringSlotRepo interface {
	FindByID(ctx context.Context, id string) (*models.RecurringSlot, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.RecurringSlot, error)
	Create(ctx context.Context, slot *models.RecurringSlot, sub *models.Subscription) error
	Cancel(ctx context.Context, id string, at time.Time) error
	CancelFutureLessons(ctx context.Context, slotID string, after time.Time) (int, error)
	FindActiveSubscription(ctx context.Context, slotID string) (*models.Subscription, error)
}

type refundBillingRepo interface {
	RecordRefund(ctx context.Context, subscriptionID, month string, refundCents int64) error
}

// BookRecurringSlotRequest creates a standing weekly booking.
type BookRecurringSlotRequest struct {
	TeacherID   string `json:"teacher_id" validate:"required"`
	StudentID   string `json:"student_id" validate:"required"`
	Weekday     int    `json:"weekday" validate:"min=0,max=6"`
	StartTime   string `json:"start_time" validate:"required"`
	DurationMin int    `json:"duration_min" validate:"required,oneof=30 60"`
	// MonthlyRateCents overrides the derived monthly rate when set.
	MonthlyRateCents int64 `json:"monthly_rate_cents" validate:"min=0"`
}

// CancellationResult reports what cancelling a recurring slot produced.
type CancellationResult struct {
	Slot             *models.RecurringSlot     `json:"slot"`
	Refund           models.CancellationRefund `json:"refund"`
	LessonsCancelled int                       `json:"lessons_cancelled"`
}

// RecurringSlotService manages standing weekly bookings and the billing
// consequences of ending them.
type RecurringSlotService struct {
	slots      recurringSlotRepo
	teachers   availabilityTeacherRepo
	students   bookingStudentRepo
	billing    refundBillingRepo
	calculator *BillingCalculator
	notify     notifier
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewRecurringSlotService instantiates RecurringSlotService.
func NewRecurringSlotService(
	slots recurringSlotRepo,
	teachers availabilityTeacherRepo,
	students bookingStudentRepo,
	billing refundBillingRepo,
	calculator *BillingCalculator,
	notify notifier,
	validate *validator.Validate,
	logger *zap.Logger,
) *RecurringSlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if calculator == nil {
		calculator = NewBillingCalculator()
	}
	return &RecurringSlotService{
		slots:      slots,
		teachers:   teachers,
		students:   students,
		billing:    billing,
		calculator: calculator,
		notify:     notify,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *RecurringSlotService) WithClock(now func() time.Time) *RecurringSlotService {
	s.now = now
	return s
}

// Book creates the recurring slot and its billing subscription. The monthly
// rate defaults to ratePerLesson × the reference occurrence count unless the
// request overrides it.
func (s *RecurringSlotService) Book(ctx context.Context, req BookRecurringSlotRequest) (*models.RecurringSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recurring slot payload")
	}
	startTime, err := timeutil.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start time")
	}

	teacher, err := s.teachers.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	ratePerLesson := teacher.RateFor(req.DurationMin)
	if ratePerLesson <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher does not offer %d-minute lessons", req.DurationMin))
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	monthlyRate := req.MonthlyRateCents
	if monthlyRate == 0 {
		monthlyRate = ratePerLesson * referenceOccurrences
	}

	slot := &models.RecurringSlot{
		TeacherID:          req.TeacherID,
		StudentID:          req.StudentID,
		Weekday:            req.Weekday,
		StartTime:          startTime,
		DurationMin:        req.DurationMin,
		RatePerLessonCents: ratePerLesson,
		MonthlyRateCents:   monthlyRate,
		Status:             models.RecurringActive,
	}
	sub := &models.Subscription{
		MonthlyRateCents: monthlyRate,
		Active:           true,
	}
	if err := s.slots.Create(ctx, slot, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create recurring slot")
	}

	s.logger.Sugar().Infow("recurring slot booked",
		"slot_id", slot.ID, "teacher_id", slot.TeacherID, "student_id", slot.StudentID,
		"weekday", slot.Weekday, "start_time", slot.StartTime.String())
	return slot, nil
}

// Cancel soft-cancels a recurring slot: future generated lessons are
// cancelled, the current month's refund is computed from remaining
// occurrences, and both parties are notified. Historical lessons remain.
func (s *RecurringSlotService) Cancel(ctx context.Context, slotID string) (*CancellationResult, error) {
	slot, err := s.slots.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recurring slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recurring slot")
	}
	if slot.Status == models.RecurringCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "recurring slot already cancelled")
	}

	now := s.now().UTC()
	month := timeutil.MonthOf(now)
	refund := s.calculator.RefundForCancellation(slot.MonthlyRateCents, time.Weekday(slot.Weekday), month, now)

	if err := s.slots.Cancel(ctx, slotID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel recurring slot")
	}
	cancelled, err := s.slots.CancelFutureLessons(ctx, slotID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel future lessons")
	}

	if refund.RefundCents > 0 {
		if sub, subErr := s.slots.FindActiveSubscription(ctx, slotID); subErr == nil {
			if err := s.billing.RecordRefund(ctx, sub.ID, month.String(), refund.RefundCents); err != nil {
				// Refund bookkeeping failure should not undo the cancellation;
				// it is logged for manual reconciliation.
				s.logger.Sugar().Errorw("failed to record refund",
					"slot_id", slotID, "subscription_id", sub.ID, "refund_cents", refund.RefundCents, "error", err)
			}
		} else if !errors.Is(subErr, sql.ErrNoRows) {
			s.logger.Sugar().Errorw("failed to load subscription for refund", "slot_id", slotID, "error", subErr)
		}
	}

	slot.Status = models.RecurringCancelled
	slot.CancelledAt = &now
	s.sendCancellationNotices(ctx, slot, refund)

	s.logger.Sugar().Infow("recurring slot cancelled",
		"slot_id", slotID, "refund_cents", refund.RefundCents, "lessons_cancelled", cancelled)
	return &CancellationResult{Slot: slot, Refund: refund, LessonsCancelled: cancelled}, nil
}

func (s *RecurringSlotService) sendCancellationNotices(ctx context.Context, slot *models.RecurringSlot, refund models.CancellationRefund) {
	if s.notify == nil {
		return
	}
	student, err := s.students.FindByID(ctx, slot.StudentID)
	if err != nil {
		s.logger.Sugar().Warnw("failed to load student for cancellation notice", "slot_id", slot.ID, "error", err)
		return
	}
	body := fmt.Sprintf("<p>Your weekly lesson slot has been cancelled. %d remaining lesson(s) this month will be refunded (%d cents).</p>",
		refund.RemainingLessons, refund.RefundCents)
	if err := s.notify.Enqueue(jobs.EmailJob{
		ID:       uuid.NewString(),
		To:       student.Email,
		Subject:  "Weekly lesson slot cancelled",
		HTMLBody: body,
	}); err != nil {
		s.logger.Sugar().Warnw("failed to enqueue cancellation notice", "slot_id", slot.ID, "error", err)
	}
}

// ListByTeacher returns a teacher's recurring slots.
func (s *RecurringSlotService) ListByTeacher(ctx context.Context, teacherID string) ([]models.RecurringSlot, error) {
	slots, err := s.slots.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recurring slots")
	}
	return slots, nil
}

// PreviewBilling exposes the calculator for a given slot and month, used by
// the UI to show what a month will cost before it is invoiced.
func (s *RecurringSlotService) PreviewBilling(ctx context.Context, slotID, month string) (*models.MonthlyBilling, error) {
	slot, err := s.slots.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recurring slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recurring slot")
	}
	m, err := timeutil.ParseMonth(month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}
	billing := s.calculator.MonthlyBilling(slot.MonthlyRateCents, time.Weekday(slot.Weekday), m)
	return &billing, nil
}
