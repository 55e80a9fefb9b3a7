package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clefbook/clefbook-api/internal/models"
	"github.com/clefbook/clefbook-api/internal/service"
	"github.com/clefbook/clefbook-api/pkg/jobs"
)

type fakeLessonRepo struct {
	lessons map[string]*models.Lesson
	created *models.Lesson
}

func (f *fakeLessonRepo) FindByID(_ context.Context, id string) (*models.Lesson, error) {
	if l, ok := f.lessons[id]; ok {
		return l, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeLessonRepo) ListOverlapping(_ context.Context, _ string, from, to time.Time, _ []models.LessonStatus) ([]models.Lesson, error) {
	var out []models.Lesson
	for _, l := range f.lessons {
		if l.StartAt.Before(to) && from.Before(l.EndAt()) {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeLessonRepo) ListByTeacher(_ context.Context, _ string, _, _ time.Time) ([]models.Lesson, error) {
	var out []models.Lesson
	for _, l := range f.lessons {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeLessonRepo) Create(_ context.Context, lesson *models.Lesson) error {
	f.created = lesson
	return nil
}

func (f *fakeLessonRepo) UpdateStatus(context.Context, string, models.LessonStatus) error {
	return nil
}

type fakeStudentRepo struct{}

func (fakeStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	return &models.Student{ID: id, Email: "student@example.com", FullName: "Student", Active: true}, nil
}

type fakeBlockedReader struct{}

func (fakeBlockedReader) ListBlockedOverlapping(context.Context, string, time.Time, time.Time) ([]models.BlockedInterval, error) {
	return nil, nil
}

type fakeNotifier struct {
	sent []jobs.EmailJob
}

func (f *fakeNotifier) Enqueue(job jobs.EmailJob) error {
	f.sent = append(f.sent, job)
	return nil
}

func newLessonFixture(lessons *fakeLessonRepo) *LessonHandler {
	teachers := &fakeTeacherRepo{teachers: map[string]*models.Teacher{
		"t1": {
			ID:          "t1",
			Email:       "t1@example.com",
			FullName:    "Teacher One",
			Timezone:    "UTC",
			Rate30Cents: 3000,
			Rate60Cents: 5000,
			Active:      true,
		},
	}}
	svc := service.NewBookingService(lessons, teachers, fakeStudentRepo{}, fakeBlockedReader{}, &fakeNotifier{}, nil, nil)
	return NewLessonHandler(svc, service.NewMetricsService())
}

func TestLessonHandlerBookInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newLessonFixture(&fakeLessonRepo{lessons: map[string]*models.Lesson{}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/lessons", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Book(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLessonHandlerBookSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeLessonRepo{lessons: map[string]*models.Lesson{}}
	handler := newLessonFixture(repo)

	body := `{"teacher_id":"t1","student_id":"s1","start_at":"2030-09-02T10:00:00Z","duration_min":60}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/lessons", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Book(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, repo.created)
	assert.Equal(t, "t1", repo.created.TeacherID)

	var envelope struct {
		Data models.Lesson `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.LessonScheduled, envelope.Data.Status)
}

func TestLessonHandlerBookConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	existing := &models.Lesson{
		ID:          "l1",
		TeacherID:   "t1",
		StudentID:   "s9",
		StartAt:     time.Date(2030, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationMin: 60,
		Status:      models.LessonScheduled,
	}
	handler := newLessonFixture(&fakeLessonRepo{lessons: map[string]*models.Lesson{"l1": existing}})

	body := `{"teacher_id":"t1","student_id":"s1","start_at":"2030-09-02T10:30:00Z","duration_min":30}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/lessons", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Book(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLessonHandlerListByTeacherBadRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newLessonFixture(&fakeLessonRepo{lessons: map[string]*models.Lesson{}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	c.Request = httptest.NewRequest(http.MethodGet, "/teachers/t1/lessons?from=tomorrow", nil)

	handler.ListByTeacher(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
