package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/internal/models"
	"github.com/clefbook/clefbook-api/pkg/config"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
	"github.com/clefbook/clefbook-api/pkg/timeutil"
)

// unavailability reasons attached to generated slots.
const (
	reasonPast          = "past"
	reasonBooked        = "booked"
	reasonBlocked       = "blocked"
	reasonBeyondHorizon = "beyond_horizon"
)

type availabilityTeacherRepo interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type availabilityRepo interface {
	ListWindows(ctx context.Context, teacherID string) ([]models.WeeklyAvailability, error)
	ReplaceWindows(ctx context.Context, teacherID string, windows []models.WeeklyAvailability) error
	ListBlockedOverlapping(ctx context.Context, teacherID string, from, to time.Time) ([]models.BlockedInterval, error)
	CreateBlocked(ctx context.Context, blocked *models.BlockedInterval) error
	DeleteBlocked(ctx context.Context, id, teacherID string) (bool, error)
}

type availabilityLessonRepo interface {
	ListOverlapping(ctx context.Context, teacherID string, from, to time.Time, statuses []models.LessonStatus) ([]models.Lesson, error)
}

type teacherCache interface {
	Get(ctx context.Context, teacherID string) (*models.Teacher, error)
	Set(ctx context.Context, teacher *models.Teacher)
}

// WeeklyWindowInput is one proposed availability window.
type WeeklyWindowInput struct {
	Weekday   int    `json:"weekday" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// ReplaceAvailabilityRequest swaps a teacher's whole weekly schedule.
type ReplaceAvailabilityRequest struct {
	Windows []WeeklyWindowInput `json:"windows" validate:"dive"`
}

// BlockTimeRequest creates a one-off blocked interval.
type BlockTimeRequest struct {
	StartAt time.Time `json:"start_at" validate:"required"`
	EndAt   time.Time `json:"end_at" validate:"required"`
	Reason  *string   `json:"reason"`
}

// SlotSequence is the generated slot list plus the timezone actually applied
// (input identifiers are dirty; callers need to know what was used).
type SlotSequence struct {
	TeacherID string        `json:"teacher_id"`
	Timezone  string        `json:"timezone"`
	Slots     []models.Slot `json:"slots"`
}

// AvailabilityService computes bookable slots and manages the availability
// data they derive from.
type AvailabilityService struct {
	teachers  availabilityTeacherRepo
	avail     availabilityRepo
	lessons   availabilityLessonRepo
	cache     teacherCache
	booking   config.BookingConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAvailabilityService instantiates AvailabilityService.
func NewAvailabilityService(
	teachers availabilityTeacherRepo,
	avail availabilityRepo,
	lessons availabilityLessonRepo,
	cache teacherCache,
	booking config.BookingConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if booking.SlotGranularity <= 0 {
		booking.SlotGranularity = 30 * time.Minute
	}
	return &AvailabilityService{
		teachers:  teachers,
		avail:     avail,
		lessons:   lessons,
		cache:     cache,
		booking:   booking,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *AvailabilityService) WithClock(now func() time.Time) *AvailabilityService {
	s.now = now
	return s
}

func (s *AvailabilityService) loadTeacher(ctx context.Context, teacherID string) (*models.Teacher, error) {
	if s.cache != nil {
		if teacher, err := s.cache.Get(ctx, teacherID); err == nil {
			return teacher, nil
		}
	}
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if s.cache != nil {
		s.cache.Set(ctx, teacher)
	}
	return teacher, nil
}

// GetAvailableSlots computes the full slot sequence for the range, available
// and unavailable alike; filtering is the caller's concern. The sequence is
// recomputed fresh on every call so bookings are reflected immediately.
func (s *AvailabilityService) GetAvailableSlots(ctx context.Context, teacherID string, rangeStart, rangeEnd time.Time, timezone string) (*SlotSequence, error) {
	if !rangeEnd.After(rangeStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end must be after range start")
	}

	teacher, err := s.loadTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	studentLoc, appliedTZ := timeutil.NormalizeTimezone(timezone)
	teacherLoc, _ := timeutil.NormalizeTimezone(teacher.Timezone)

	windows, err := s.avail.ListWindows(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if len(windows) == 0 {
		return &SlotSequence{TeacherID: teacherID, Timezone: appliedTZ, Slots: []models.Slot{}}, nil
	}

	blocked, err := s.avail.ListBlockedOverlapping(ctx, teacherID, rangeStart, rangeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blocked intervals")
	}
	lessons, err := s.lessons.ListOverlapping(ctx, teacherID, rangeStart, rangeEnd,
		[]models.LessonStatus{models.LessonScheduled, models.LessonCompleted})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}

	blockedIntervals := make([]Interval, len(blocked))
	for i, b := range blocked {
		blockedIntervals[i] = Interval{Start: b.StartAt, End: b.EndAt}
	}
	lessonIntervals := make([]Interval, len(lessons))
	for i, l := range lessons {
		lessonIntervals[i] = Interval{Start: l.StartAt, End: l.EndAt()}
	}

	byWeekday := make(map[int][]models.WeeklyAvailability)
	for _, w := range windows {
		byWeekday[w.Weekday] = append(byWeekday[w.Weekday], w)
	}

	now := s.now()
	horizon := s.horizonEnd(teacher, now)
	durations := teacher.OfferedDurations()

	var slots []models.Slot
	// Walk calendar days in the teacher's timezone; window times are the
	// teacher's wall clock.
	dayCursor := time.Date(rangeStart.In(teacherLoc).Year(), rangeStart.In(teacherLoc).Month(), rangeStart.In(teacherLoc).Day(), 0, 0, 0, 0, teacherLoc)
	for ; dayCursor.Before(rangeEnd); dayCursor = dayCursor.AddDate(0, 0, 1) {
		for _, window := range byWeekday[int(dayCursor.Weekday())] {
			for _, durationMin := range durations {
				duration := time.Duration(durationMin) * time.Minute
				windowStart := window.StartTime.On(dayCursor, teacherLoc)
				windowEnd := window.EndTime.On(dayCursor, teacherLoc)

				for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(s.booking.SlotGranularity) {
					end := start.Add(duration)
					if end.Before(rangeStart) || !start.Before(rangeEnd) {
						continue
					}

					slot := models.Slot{
						Start:       start.In(studentLoc),
						End:         end.In(studentLoc),
						DurationMin: durationMin,
						PriceCents:  teacher.RateFor(durationMin),
						Available:   true,
					}
					switch {
					case !start.After(now):
						slot.Available = false
						slot.Reason = reasonPast
					case start.After(horizon):
						slot.Available = false
						slot.Reason = reasonBeyondHorizon
					case HasConflict(start, end, blockedIntervals, nil):
						slot.Available = false
						slot.Reason = reasonBlocked
					case HasConflict(start, end, nil, lessonIntervals):
						slot.Available = false
						slot.Reason = reasonBooked
					}
					slots = append(slots, slot)
				}
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Start.Equal(slots[j].Start) {
			return slots[i].DurationMin < slots[j].DurationMin
		}
		return slots[i].Start.Before(slots[j].Start)
	})
	if slots == nil {
		slots = []models.Slot{}
	}
	return &SlotSequence{TeacherID: teacherID, Timezone: appliedTZ, Slots: slots}, nil
}

func (s *AvailabilityService) horizonEnd(teacher *models.Teacher, now time.Time) time.Time {
	days := teacher.AdvanceBookingDays
	if days <= 0 {
		days = s.booking.AdvanceHorizonDays
	}
	if days <= 0 {
		days = 60
	}
	return now.AddDate(0, 0, days)
}

// WeeklySchedule returns the teacher's stored weekly windows.
func (s *AvailabilityService) WeeklySchedule(ctx context.Context, teacherID string) ([]models.WeeklyAvailability, error) {
	if _, err := s.loadTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	windows, err := s.avail.ListWindows(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	return windows, nil
}

// ValidateAvailability checks a proposed weekly schedule without writing it.
func (s *AvailabilityService) ValidateAvailability(ctx context.Context, teacherID string, req ReplaceAvailabilityRequest) ([]models.WeeklyAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if _, err := s.loadTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	windows := make([]models.WeeklyAvailability, 0, len(req.Windows))
	for _, in := range req.Windows {
		start, err := timeutil.ParseTimeOfDay(in.StartTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid window start time")
		}
		end, err := timeutil.ParseTimeOfDay(in.EndTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid window end time")
		}
		if end <= start {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window end %s must be after start %s", end, start))
		}
		windows = append(windows, models.WeeklyAvailability{
			TeacherID: teacherID,
			Weekday:   in.Weekday,
			StartTime: start,
			EndTime:   end,
		})
	}

	// Windows on the same weekday must not overlap; adjacency is fine.
	sort.Slice(windows, func(i, j int) bool {
		if windows[i].Weekday != windows[j].Weekday {
			return windows[i].Weekday < windows[j].Weekday
		}
		return windows[i].StartTime < windows[j].StartTime
	})
	for i := 1; i < len(windows); i++ {
		prev, curr := windows[i-1], windows[i]
		if prev.Weekday == curr.Weekday && curr.StartTime < prev.EndTime {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("windows overlap on weekday %d: %s-%s and %s-%s",
					curr.Weekday, prev.StartTime, prev.EndTime, curr.StartTime, curr.EndTime))
		}
	}
	return windows, nil
}

// ReplaceAvailability validates and swaps the teacher's weekly schedule
// wholesale; the repository makes the delete-and-recreate atomic.
func (s *AvailabilityService) ReplaceAvailability(ctx context.Context, teacherID string, req ReplaceAvailabilityRequest) ([]models.WeeklyAvailability, error) {
	windows, err := s.ValidateAvailability(ctx, teacherID, req)
	if err != nil {
		return nil, err
	}
	if err := s.avail.ReplaceWindows(ctx, teacherID, windows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace availability")
	}
	s.logger.Sugar().Infow("availability replaced", "teacher_id", teacherID, "windows", len(windows))
	return windows, nil
}

// ValidateBlockedTime checks a proposed blocked interval without writing it.
func (s *AvailabilityService) ValidateBlockedTime(ctx context.Context, teacherID string, req BlockTimeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blocked time payload")
	}
	if _, err := s.loadTeacher(ctx, teacherID); err != nil {
		return err
	}
	if !req.EndAt.After(req.StartAt) {
		return appErrors.Clone(appErrors.ErrValidation, "blocked interval end must be after start")
	}
	if !req.EndAt.After(s.now()) {
		return appErrors.Clone(appErrors.ErrValidation, "blocked interval must end in the future")
	}
	return nil
}

// BlockTime validates and stores a one-off blocked interval.
func (s *AvailabilityService) BlockTime(ctx context.Context, teacherID string, req BlockTimeRequest) (*models.BlockedInterval, error) {
	if err := s.ValidateBlockedTime(ctx, teacherID, req); err != nil {
		return nil, err
	}
	blocked := &models.BlockedInterval{
		TeacherID: teacherID,
		StartAt:   req.StartAt.UTC(),
		EndAt:     req.EndAt.UTC(),
		Reason:    req.Reason,
	}
	if err := s.avail.CreateBlocked(ctx, blocked); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create blocked interval")
	}
	return blocked, nil
}

// UnblockTime removes a blocked interval owned by the teacher.
func (s *AvailabilityService) UnblockTime(ctx context.Context, teacherID, blockedID string) error {
	deleted, err := s.avail.DeleteBlocked(ctx, blockedID, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete blocked interval")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "blocked interval not found")
	}
	return nil
}
