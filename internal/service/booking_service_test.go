package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/internal/models"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
	"github.com/clefbook/clefbook-api/pkg/jobs"
)

type mockLessonRepo struct {
	lessons     map[string]*models.Lesson
	overlapping []models.Lesson
	created     *models.Lesson
	createErr   error
	status      map[string]models.LessonStatus
}

func (m *mockLessonRepo) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	if l, ok := m.lessons[id]; ok {
		return l, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLessonRepo) ListOverlapping(ctx context.Context, teacherID string, from, to time.Time, statuses []models.LessonStatus) ([]models.Lesson, error) {
	return m.overlapping, nil
}

func (m *mockLessonRepo) ListByTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]models.Lesson, error) {
	var list []models.Lesson
	for _, l := range m.lessons {
		list = append(list, *l)
	}
	return list, nil
}

func (m *mockLessonRepo) Create(ctx context.Context, lesson *models.Lesson) error {
	if m.createErr != nil {
		return m.createErr
	}
	if lesson.ID == "" {
		lesson.ID = "new-lesson"
	}
	m.created = lesson
	return nil
}

func (m *mockLessonRepo) UpdateStatus(ctx context.Context, id string, status models.LessonStatus) error {
	if m.status == nil {
		m.status = make(map[string]models.LessonStatus)
	}
	m.status[id] = status
	return nil
}

type mockStudentRepo struct {
	students map[string]*models.Student
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockBlockedReader struct {
	blocked []models.BlockedInterval
}

func (m *mockBlockedReader) ListBlockedOverlapping(ctx context.Context, teacherID string, from, to time.Time) ([]models.BlockedInterval, error) {
	return m.blocked, nil
}

type mockNotifier struct {
	sent []jobs.EmailJob
	err  error
}

func (m *mockNotifier) Enqueue(job jobs.EmailJob) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, job)
	return nil
}

func newBookingFixture(lessons *mockLessonRepo, avail *mockBlockedReader, notify *mockNotifier) *BookingService {
	teachers := &mockTeacherRepo{teachers: map[string]*models.Teacher{
		"t1": {ID: "t1", FullName: "Ada Tutor", Timezone: "UTC", Rate30Cents: 3000, Rate60Cents: 5000, Active: true},
	}}
	students := &mockStudentRepo{students: map[string]*models.Student{
		"s1": {ID: "s1", Email: "student@example.com", FullName: "Sam Learner", Active: true},
	}}
	svc := NewBookingService(lessons, teachers, students, avail, notify, validator.New(), zap.NewNop())
	return svc.WithClock(func() time.Time { return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) })
}

func TestBookLesson(t *testing.T) {
	lessons := &mockLessonRepo{}
	notify := &mockNotifier{}
	svc := newBookingFixture(lessons, &mockBlockedReader{}, notify)

	lesson, err := svc.Book(context.Background(), BookLessonRequest{
		TeacherID:   "t1",
		StudentID:   "s1",
		StartAt:     time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationMin: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LessonScheduled, lesson.Status)
	assert.NotNil(t, lessons.created)
	require.Len(t, notify.sent, 1)
	assert.Equal(t, "student@example.com", notify.sent[0].To)
}

func TestBookLessonInPast(t *testing.T) {
	svc := newBookingFixture(&mockLessonRepo{}, &mockBlockedReader{}, &mockNotifier{})

	_, err := svc.Book(context.Background(), BookLessonRequest{
		TeacherID:   "t1",
		StudentID:   "s1",
		StartAt:     time.Date(2025, 8, 30, 10, 0, 0, 0, time.UTC),
		DurationMin: 30,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookLessonConflictsWithScheduled(t *testing.T) {
	lessons := &mockLessonRepo{overlapping: []models.Lesson{
		{TeacherID: "t1", StartAt: time.Date(2025, 9, 2, 10, 30, 0, 0, time.UTC), DurationMin: 60, Status: models.LessonScheduled},
	}}
	svc := newBookingFixture(lessons, &mockBlockedReader{}, &mockNotifier{})

	_, err := svc.Book(context.Background(), BookLessonRequest{
		TeacherID:   "t1",
		StudentID:   "s1",
		StartAt:     time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationMin: 60,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErrors.FromError(err).Code)
	assert.Nil(t, lessons.created)
}

func TestBookLessonAdjacentToScheduledSucceeds(t *testing.T) {
	lessons := &mockLessonRepo{overlapping: []models.Lesson{
		{TeacherID: "t1", StartAt: time.Date(2025, 9, 2, 9, 0, 0, 0, time.UTC), DurationMin: 60, Status: models.LessonScheduled},
	}}
	svc := newBookingFixture(lessons, &mockBlockedReader{}, &mockNotifier{})

	// Starts exactly when the existing lesson ends.
	_, err := svc.Book(context.Background(), BookLessonRequest{
		TeacherID:   "t1",
		StudentID:   "s1",
		StartAt:     time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationMin: 30,
	})
	require.NoError(t, err)
}

func TestBookLessonInsideBlockedInterval(t *testing.T) {
	avail := &mockBlockedReader{blocked: []models.BlockedInterval{
		{TeacherID: "t1", StartAt: time.Date(2025, 9, 2, 9, 0, 0, 0, time.UTC), EndAt: time.Date(2025, 9, 2, 12, 0, 0, 0, time.UTC)},
	}}
	svc := newBookingFixture(&mockLessonRepo{}, avail, &mockNotifier{})

	_, err := svc.Book(context.Background(), BookLessonRequest{
		TeacherID:   "t1",
		StudentID:   "s1",
		StartAt:     time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationMin: 30,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTimeBlocked.Code, appErrors.FromError(err).Code)
}

func TestBookLessonSurfacesConstraintViolation(t *testing.T) {
	// A concurrent booking slipped past the read-side check; the repository
	// surfaces the unique-constraint violation as the conflict error.
	lessons := &mockLessonRepo{createErr: appErrors.Clone(appErrors.ErrSlotTaken, "")}
	svc := newBookingFixture(lessons, &mockBlockedReader{}, &mockNotifier{})

	_, err := svc.Book(context.Background(), BookLessonRequest{
		TeacherID:   "t1",
		StudentID:   "s1",
		StartAt:     time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationMin: 30,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErrors.FromError(err).Code)
}

func TestBookLessonNotifierFailureDoesNotFailBooking(t *testing.T) {
	lessons := &mockLessonRepo{}
	notify := &mockNotifier{err: assert.AnError}
	svc := newBookingFixture(lessons, &mockBlockedReader{}, notify)

	_, err := svc.Book(context.Background(), BookLessonRequest{
		TeacherID:   "t1",
		StudentID:   "s1",
		StartAt:     time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationMin: 30,
	})
	require.NoError(t, err)
	assert.NotNil(t, lessons.created)
}

func TestBookLessonUnpricedDuration(t *testing.T) {
	teachers := &mockTeacherRepo{teachers: map[string]*models.Teacher{
		"t1": {ID: "t1", Timezone: "UTC", Rate30Cents: 3000, Active: true},
	}}
	students := &mockStudentRepo{students: map[string]*models.Student{"s1": {ID: "s1", Active: true}}}
	svc := NewBookingService(&mockLessonRepo{}, teachers, students, &mockBlockedReader{}, nil, validator.New(), zap.NewNop()).
		WithClock(func() time.Time { return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) })

	_, err := svc.Book(context.Background(), BookLessonRequest{
		TeacherID:   "t1",
		StudentID:   "s1",
		StartAt:     time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationMin: 60,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateLessonStatusTransitions(t *testing.T) {
	lessons := &mockLessonRepo{lessons: map[string]*models.Lesson{
		"l1": {ID: "l1", Status: models.LessonScheduled},
		"l2": {ID: "l2", Status: models.LessonCompleted},
		"l3": {ID: "l3", Status: models.LessonMissed},
		"l4": {ID: "l4", Status: models.LessonScheduled},
	}}
	svc := newBookingFixture(lessons, &mockBlockedReader{}, &mockNotifier{})

	updated, err := svc.UpdateStatus(context.Background(), "l1", UpdateLessonStatusRequest{Status: models.LessonCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.LessonCompleted, updated.Status)
	assert.Equal(t, models.LessonCompleted, lessons.status["l1"])

	// Completed is terminal.
	_, err = svc.UpdateStatus(context.Background(), "l2", UpdateLessonStatusRequest{Status: models.LessonCancelled})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// A missed lesson can be retroactively marked completed.
	updated, err = svc.UpdateStatus(context.Background(), "l3", UpdateLessonStatusRequest{Status: models.LessonCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.LessonCompleted, updated.Status)

	// Same-status update is a no-op.
	_, err = svc.UpdateStatus(context.Background(), "l4", UpdateLessonStatusRequest{Status: models.LessonScheduled})
	require.NoError(t, err)
	assert.NotContains(t, lessons.status, "l4")
}
