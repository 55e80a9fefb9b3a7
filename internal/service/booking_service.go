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
)

type bookingLessonRepo interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	ListOverlapping(ctx context.Context, teacherID string, from, to time.Time, statuses []models.LessonStatus) ([]models.Lesson, error)
	ListByTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	UpdateStatus(ctx context.Context, id string, status models.LessonStatus) error
}

type bookingStudentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type bookingAvailabilityRepo interface {
	ListBlockedOverlapping(ctx context.Context, teacherID string, from, to time.Time) ([]models.BlockedInterval, error)
}

type notifier interface {
	Enqueue(job jobs.EmailJob) error
}

// BookLessonRequest books a single one-off lesson.
type BookLessonRequest struct {
	TeacherID   string    `json:"teacher_id" validate:"required"`
	StudentID   string    `json:"student_id" validate:"required"`
	StartAt     time.Time `json:"start_at" validate:"required"`
	DurationMin int       `json:"duration_min" validate:"required,oneof=30 60"`
}

// UpdateLessonStatusRequest transitions a lesson's status.
type UpdateLessonStatusRequest struct {
	Status models.LessonStatus `json:"status" validate:"required"`
}

// BookingService books lessons and manages their lifecycle.
type BookingService struct {
	lessons   bookingLessonRepo
	teachers  availabilityTeacherRepo
	students  bookingStudentRepo
	avail     bookingAvailabilityRepo
	notify    notifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewBookingService instantiates BookingService.
func NewBookingService(
	lessons bookingLessonRepo,
	teachers availabilityTeacherRepo,
	students bookingStudentRepo,
	avail bookingAvailabilityRepo,
	notify notifier,
	validate *validator.Validate,
	logger *zap.Logger,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		lessons:   lessons,
		teachers:  teachers,
		students:  students,
		avail:     avail,
		notify:    notify,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// Book creates a one-off lesson. The read-side conflict check is best-effort;
// the database uniqueness constraint on SCHEDULED (teacher_id, start_at) is
// what actually prevents a double-book under concurrency, and its violation
// comes back as the same conflict error.
func (s *BookingService) Book(ctx context.Context, req BookLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if !req.StartAt.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson must start in the future")
	}

	teacher, err := s.teachers.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.RateFor(req.DurationMin) <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher does not offer %d-minute lessons", req.DurationMin))
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	start := req.StartAt.UTC()
	end := start.Add(time.Duration(req.DurationMin) * time.Minute)

	if err := s.checkConflicts(ctx, req.TeacherID, start, end); err != nil {
		return nil, err
	}

	lesson := &models.Lesson{
		TeacherID:   req.TeacherID,
		StudentID:   req.StudentID,
		StartAt:     start,
		DurationMin: req.DurationMin,
		Status:      models.LessonScheduled,
	}
	if err := s.lessons.Create(ctx, lesson); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}

	s.logger.Sugar().Infow("lesson booked",
		"lesson_id", lesson.ID, "teacher_id", lesson.TeacherID, "student_id", lesson.StudentID, "start_at", lesson.StartAt)
	s.sendConfirmation(student, teacher, lesson)
	return lesson, nil
}

func (s *BookingService) checkConflicts(ctx context.Context, teacherID string, start, end time.Time) error {
	blocked, err := s.avail.ListBlockedOverlapping(ctx, teacherID, start, end)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blocked intervals")
	}
	blockedIntervals := make([]Interval, len(blocked))
	for i, b := range blocked {
		blockedIntervals[i] = Interval{Start: b.StartAt, End: b.EndAt}
	}
	if HasConflict(start, end, blockedIntervals, nil) {
		return appErrors.Clone(appErrors.ErrTimeBlocked, "")
	}

	scheduled, err := s.lessons.ListOverlapping(ctx, teacherID, start, end, []models.LessonStatus{models.LessonScheduled})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}
	lessonIntervals := make([]Interval, len(scheduled))
	for i, l := range scheduled {
		lessonIntervals[i] = Interval{Start: l.StartAt, End: l.EndAt()}
	}
	if HasConflict(start, end, nil, lessonIntervals) {
		return appErrors.Clone(appErrors.ErrSlotTaken, "")
	}
	return nil
}

func (s *BookingService) sendConfirmation(student *models.Student, teacher *models.Teacher, lesson *models.Lesson) {
	if s.notify == nil {
		return
	}
	body := fmt.Sprintf("<p>Your %d-minute lesson with %s is confirmed for %s.</p>",
		lesson.DurationMin, teacher.FullName, lesson.StartAt.Format(time.RFC1123))
	if err := s.notify.Enqueue(jobs.EmailJob{
		ID:       uuid.NewString(),
		To:       student.Email,
		Subject:  "Lesson confirmed",
		HTMLBody: body,
	}); err != nil {
		// Notification failure never fails the booking.
		s.logger.Sugar().Warnw("failed to enqueue booking confirmation", "lesson_id", lesson.ID, "error", err)
	}
}

// UpdateStatus applies a lesson status transition, rejecting illegal moves.
func (s *BookingService) UpdateStatus(ctx context.Context, lessonID string, req UpdateLessonStatusRequest) (*models.Lesson, error) {
	if !models.ValidLessonStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown lesson status %q", req.Status))
	}

	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}

	if lesson.Status == req.Status {
		return lesson, nil
	}
	if !models.CanTransition(lesson.Status, req.Status) {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("cannot transition lesson from %s to %s", lesson.Status, req.Status))
	}

	if err := s.lessons.UpdateStatus(ctx, lessonID, req.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson status")
	}
	lesson.Status = req.Status
	s.logger.Sugar().Infow("lesson status updated", "lesson_id", lessonID, "status", req.Status)
	return lesson, nil
}

// ListByTeacher returns a teacher's lessons within the range.
func (s *BookingService) ListByTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]models.Lesson, error) {
	if !to.After(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end must be after range start")
	}
	lessons, err := s.lessons.ListByTeacher(ctx, teacherID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}
