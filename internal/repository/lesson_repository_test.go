package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clefbook/clefbook-api/internal/models"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLessonRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec("INSERT INTO lessons").
		WithArgs(sqlmock.AnyArg(), "t1", "s1", nil, sqlmock.AnyArg(), 60, string(models.LessonScheduled), nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	lesson := &models.Lesson{
		TeacherID:   "t1",
		StudentID:   "s1",
		StartAt:     time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationMin: 60,
		Status:      models.LessonScheduled,
	}
	err := repo.Create(context.Background(), lesson)
	require.NoError(t, err)
	assert.NotEmpty(t, lesson.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryCreateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec("INSERT INTO lessons").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "lessons_teacher_start_scheduled_key"})

	err := repo.Create(context.Background(), &models.Lesson{TeacherID: "t1", StudentID: "s1", Status: models.LessonScheduled})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListOverlapping(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	from := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "student_id", "recurring_slot_id", "start_at", "duration_min", "status", "notes", "homework", "created_at", "updated_at"}).
		AddRow("l1", "t1", "s1", nil, from.Add(10*time.Hour), 60, string(models.LessonScheduled), nil, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM lessons").
		WithArgs("t1", sqlmock.AnyArg(), from, to).
		WillReturnRows(rows)

	lessons, err := repo.ListOverlapping(context.Background(), "t1", from, to, []models.LessonStatus{models.LessonScheduled})
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "l1", lessons[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryExistsForSlotDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	date := time.Date(2025, 9, 8, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT 1 FROM lessons").
		WithArgs("rs1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsForSlotDate(context.Background(), "rs1", date)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT 1 FROM lessons").
		WithArgs("rs1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsForSlotDate(context.Background(), "rs1", date)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryMarkPastScheduledMissed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	now := time.Date(2025, 9, 16, 2, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE lessons SET status").
		WithArgs(string(models.LessonMissed), now, string(models.LessonScheduled)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repaired, err := repo.MarkPastScheduledMissed(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, repaired)
	assert.NoError(t, mock.ExpectationsWereMet())
}
