package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/internal/models"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
	"github.com/clefbook/clefbook-api/pkg/retry"
	"github.com/clefbook/clefbook-api/pkg/timeutil"
)

type materializerSlotRepo interface {
	ListActive(ctx context.Context) ([]models.RecurringSlot, error)
}

type materializerLessonRepo interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	ExistsForSlotDate(ctx context.Context, recurringSlotID string, date time.Time) (bool, error)
	ListOverlapping(ctx context.Context, teacherID string, from, to time.Time, statuses []models.LessonStatus) ([]models.Lesson, error)
	MarkPastScheduledMissed(ctx context.Context, now time.Time) (int, error)
}

type materializerAvailabilityRepo interface {
	ListBlockedOverlapping(ctx context.Context, teacherID string, from, to time.Time) ([]models.BlockedInterval, error)
	PruneExpiredBlocked(ctx context.Context, now time.Time) (int, error)
}

type materializerTeacherRepo interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type jobRecorder interface {
	Insert(ctx context.Context, record *models.JobExecutionRecord) error
}

// LessonMaterializer turns active recurring slots into concrete scheduled
// lessons over a rolling horizon. Runs are idempotent: a (slot, date) pair is
// generated at most once, and reruns after a partial failure fill only the
// gaps.
type LessonMaterializer struct {
	slots        materializerSlotRepo
	lessons      materializerLessonRepo
	availability materializerAvailabilityRepo
	teachers     materializerTeacherRepo
	records      jobRecorder
	horizonWeeks int
	dbPolicy     retry.Policy
	logger       *zap.Logger
	now          func() time.Time
}

// NewLessonMaterializer instantiates the generator job.
func NewLessonMaterializer(
	slots materializerSlotRepo,
	lessons materializerLessonRepo,
	availability materializerAvailabilityRepo,
	teachers materializerTeacherRepo,
	records jobRecorder,
	horizonWeeks int,
	logger *zap.Logger,
) *LessonMaterializer {
	if horizonWeeks <= 0 {
		horizonWeeks = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonMaterializer{
		slots:        slots,
		lessons:      lessons,
		availability: availability,
		teachers:     teachers,
		records:      records,
		horizonWeeks: horizonWeeks,
		dbPolicy:     retry.DatabasePolicy(),
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock overrides the time source (tests).
func (m *LessonMaterializer) WithClock(now func() time.Time) *LessonMaterializer {
	m.now = now
	return m
}

// Run executes one materializer pass: repair MISSED statuses, prune stale
// blocked intervals, then generate lessons for every active slot. A failure
// on one slot is recorded and the batch continues.
func (m *LessonMaterializer) Run(ctx context.Context) (*models.JobResult, error) {
	started := m.now().UTC()
	result := &models.JobResult{Success: true, Errors: models.JobErrors{}}

	missed, err := m.lessons.MarkPastScheduledMissed(ctx, started)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, models.JobError{ItemID: "missed_repair", Message: err.Error()})
	}
	result.Counts.LessonsMarkedMissed = missed

	pruned, err := m.availability.PruneExpiredBlocked(ctx, started)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, models.JobError{ItemID: "blocked_prune", Message: err.Error()})
	}
	result.Counts.BlockedPruned = pruned

	slots, err := m.slots.ListActive(ctx)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, models.JobError{ItemID: "list_slots", Message: err.Error()})
		m.record(ctx, started, result)
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recurring slots")
	}

	horizonEnd := started.AddDate(0, 0, m.horizonWeeks*7)
	teachers := map[string]*teacherContext{}
	for _, slot := range slots {
		tc, err := m.teacherContext(ctx, teachers, slot.TeacherID, started, horizonEnd)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, models.JobError{ItemID: slot.ID, Message: err.Error()})
			continue
		}
		generated, slotErrs := m.generateForSlot(ctx, slot, tc, started, horizonEnd)
		result.Counts.LessonsGenerated += generated
		if len(slotErrs) > 0 {
			result.Success = false
			result.Errors = append(result.Errors, slotErrs...)
		}
	}
	result.Counts.TeachersProcessed = len(teachers)

	m.record(ctx, started, result)
	m.logger.Sugar().Infow("lesson materializer run finished",
		"generated", result.Counts.LessonsGenerated,
		"missed", result.Counts.LessonsMarkedMissed,
		"pruned", result.Counts.BlockedPruned,
		"errors", len(result.Errors))
	return result, nil
}

// teacherContext caches per-teacher data shared by all of that teacher's
// slots within one run.
type teacherContext struct {
	location *time.Location
	blocked  []Interval
	lessons  []Interval
}

func (m *LessonMaterializer) teacherContext(ctx context.Context, cache map[string]*teacherContext, teacherID string, from, to time.Time) (*teacherContext, error) {
	if tc, ok := cache[teacherID]; ok {
		return tc, nil
	}
	teacher, err := m.teachers.FindByID(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("load teacher %s: %w", teacherID, err)
	}
	loc, _ := timeutil.NormalizeTimezone(teacher.Timezone)
	intervals, err := m.availability.ListBlockedOverlapping(ctx, teacherID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load blocked intervals for teacher %s: %w", teacherID, err)
	}
	blocked := make([]Interval, 0, len(intervals))
	for _, b := range intervals {
		blocked = append(blocked, Interval{Start: b.StartAt, End: b.EndAt})
	}
	scheduled, err := m.lessons.ListOverlapping(ctx, teacherID, from, to, []models.LessonStatus{models.LessonScheduled})
	if err != nil {
		return nil, fmt.Errorf("load scheduled lessons for teacher %s: %w", teacherID, err)
	}
	existing := make([]Interval, 0, len(scheduled))
	for _, l := range scheduled {
		existing = append(existing, Interval{Start: l.StartAt, End: l.EndAt()})
	}
	tc := &teacherContext{location: loc, blocked: blocked, lessons: existing}
	cache[teacherID] = tc
	return tc, nil
}

func (m *LessonMaterializer) generateForSlot(ctx context.Context, slot models.RecurringSlot, tc *teacherContext, from, to time.Time) (int, models.JobErrors) {
	var (
		generated int
		errs      models.JobErrors
	)
	day := from.In(tc.location)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, tc.location)
	for ; day.Before(to); day = day.AddDate(0, 0, 1) {
		if day.Weekday() != time.Weekday(slot.Weekday) {
			continue
		}
		start := slot.StartTime.On(day, tc.location)
		if !start.After(from) {
			continue
		}
		end := start.Add(time.Duration(slot.DurationMin) * time.Minute)
		if HasConflict(start, end, tc.blocked, tc.lessons) {
			continue
		}
		exists, err := m.lessons.ExistsForSlotDate(ctx, slot.ID, start)
		if err != nil {
			errs = append(errs, models.JobError{ItemID: slot.ID, Message: fmt.Sprintf("check %s: %v", start.Format("2006-01-02"), err)})
			continue
		}
		if exists {
			continue
		}
		lesson := &models.Lesson{
			ID:              uuid.NewString(),
			TeacherID:       slot.TeacherID,
			StudentID:       slot.StudentID,
			RecurringSlotID: &slot.ID,
			StartAt:         start.UTC(),
			DurationMin:     slot.DurationMin,
			Status:          models.LessonScheduled,
		}
		err = retry.Do(ctx, m.dbPolicy, m.logger, func(ctx context.Context) error {
			return m.lessons.Create(ctx, lesson)
		})
		if err != nil {
			if fromErr := appErrors.FromError(err); fromErr != nil && fromErr.Code == appErrors.ErrSlotTaken.Code {
				// A one-off booking already holds this time; the slot keeps
				// its place in future months.
				m.logger.Sugar().Debugw("slot occurrence skipped, time already booked",
					"slot_id", slot.ID, "start_at", start)
				continue
			}
			errs = append(errs, models.JobError{ItemID: slot.ID, Message: fmt.Sprintf("create %s: %v", start.Format("2006-01-02"), err)})
			continue
		}
		tc.lessons = append(tc.lessons, Interval{Start: lesson.StartAt, End: lesson.EndAt()})
		generated++
	}
	return generated, errs
}

func (m *LessonMaterializer) record(ctx context.Context, started time.Time, result *models.JobResult) {
	if m.records == nil {
		return
	}
	rec := &models.JobExecutionRecord{
		ID:       uuid.NewString(),
		JobName:  models.JobGenerateLessons,
		RanAt:    started,
		Success:  result.Success,
		Counts:   result.Counts,
		Errors:   result.Errors,
		Duration: m.now().UTC().Sub(started).Milliseconds(),
	}
	if err := m.records.Insert(ctx, rec); err != nil {
		m.logger.Sugar().Errorw("failed to persist job execution record", "job", rec.JobName, "error", err)
	}
}
