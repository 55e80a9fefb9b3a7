package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/internal/models"
)

type mockMaterializerSlots struct {
	slots []models.RecurringSlot
}

func (m *mockMaterializerSlots) ListActive(ctx context.Context) ([]models.RecurringSlot, error) {
	return m.slots, nil
}

type mockMaterializerLessons struct {
	existing  map[string]bool
	scheduled []models.Lesson
	created   []*models.Lesson
	createErr map[string]error
	missed    int
}

func lessonKey(slotID string, at time.Time) string {
	return slotID + "/" + at.UTC().Format("2006-01-02")
}

func (m *mockMaterializerLessons) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.RecurringSlotID != nil {
		if err, ok := m.createErr[*lesson.RecurringSlotID]; ok {
			return err
		}
	}
	m.created = append(m.created, lesson)
	return nil
}

func (m *mockMaterializerLessons) ExistsForSlotDate(ctx context.Context, recurringSlotID string, date time.Time) (bool, error) {
	return m.existing[lessonKey(recurringSlotID, date)], nil
}

func (m *mockMaterializerLessons) ListOverlapping(ctx context.Context, teacherID string, from, to time.Time, statuses []models.LessonStatus) ([]models.Lesson, error) {
	var out []models.Lesson
	for _, l := range m.scheduled {
		if l.TeacherID == teacherID && l.StartAt.Before(to) && l.EndAt().After(from) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockMaterializerLessons) MarkPastScheduledMissed(ctx context.Context, now time.Time) (int, error) {
	return m.missed, nil
}

type mockMaterializerAvail struct {
	blocked []models.BlockedInterval
	pruned  int
}

func (m *mockMaterializerAvail) ListBlockedOverlapping(ctx context.Context, teacherID string, from, to time.Time) ([]models.BlockedInterval, error) {
	return m.blocked, nil
}

func (m *mockMaterializerAvail) PruneExpiredBlocked(ctx context.Context, now time.Time) (int, error) {
	return m.pruned, nil
}

type mockJobRecorder struct {
	records []*models.JobExecutionRecord
}

func (m *mockJobRecorder) Insert(ctx context.Context, record *models.JobExecutionRecord) error {
	m.records = append(m.records, record)
	return nil
}

func mondaySlot(t *testing.T, id string) models.RecurringSlot {
	return models.RecurringSlot{
		ID:          id,
		TeacherID:   "t1",
		StudentID:   "s1",
		Weekday:     int(time.Monday),
		StartTime:   mustTimeOfDay(t, "10:00"),
		DurationMin: 60,
		Status:      models.RecurringActive,
	}
}

func newMaterializerFixture(t *testing.T, slots *mockMaterializerSlots, lessons *mockMaterializerLessons, avail *mockMaterializerAvail, records *mockJobRecorder) *LessonMaterializer {
	teachers := &mockTeacherRepo{teachers: map[string]*models.Teacher{
		"t1": {ID: "t1", Timezone: "UTC", Rate30Cents: 3000, Rate60Cents: 5000, Active: true},
	}}
	m := NewLessonMaterializer(slots, lessons, avail, teachers, records, 2, zap.NewNop())
	// Fixed clock: Monday 2025-09-01 08:00 UTC, two-week horizon.
	return m.WithClock(func() time.Time { return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) })
}

func TestMaterializerGeneratesHorizonLessons(t *testing.T) {
	slots := &mockMaterializerSlots{slots: []models.RecurringSlot{mondaySlot(t, "rs1")}}
	lessons := &mockMaterializerLessons{}
	records := &mockJobRecorder{}
	m := newMaterializerFixture(t, slots, lessons, &mockMaterializerAvail{}, records)

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	// Mondays Sep 1, 8 and 15 fall inside the two-week horizon.
	assert.Equal(t, 3, result.Counts.LessonsGenerated)
	require.Len(t, lessons.created, 3)
	for _, l := range lessons.created {
		assert.Equal(t, models.LessonScheduled, l.Status)
		assert.Equal(t, time.Monday, l.StartAt.Weekday())
		require.NotNil(t, l.RecurringSlotID)
		assert.Equal(t, "rs1", *l.RecurringSlotID)
	}
	require.Len(t, records.records, 1)
	assert.Equal(t, models.JobGenerateLessons, records.records[0].JobName)
	assert.True(t, records.records[0].Success)
}

func TestMaterializerIsIdempotent(t *testing.T) {
	slots := &mockMaterializerSlots{slots: []models.RecurringSlot{mondaySlot(t, "rs1")}}
	lessons := &mockMaterializerLessons{existing: map[string]bool{
		lessonKey("rs1", time.Date(2025, 9, 8, 10, 0, 0, 0, time.UTC)): true,
	}}
	m := newMaterializerFixture(t, slots, lessons, &mockMaterializerAvail{}, &mockJobRecorder{})

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Counts.LessonsGenerated)
	assert.Empty(t, result.Errors)
}

func TestMaterializerSkipsBlockedOccurrences(t *testing.T) {
	slots := &mockMaterializerSlots{slots: []models.RecurringSlot{mondaySlot(t, "rs1")}}
	avail := &mockMaterializerAvail{blocked: []models.BlockedInterval{
		{TeacherID: "t1", StartAt: time.Date(2025, 9, 8, 9, 0, 0, 0, time.UTC), EndAt: time.Date(2025, 9, 8, 12, 0, 0, 0, time.UTC)},
	}}
	lessons := &mockMaterializerLessons{}
	m := newMaterializerFixture(t, slots, lessons, avail, &mockJobRecorder{})

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Counts.LessonsGenerated)
	for _, l := range lessons.created {
		assert.NotEqual(t, 8, l.StartAt.Day())
	}
}

func TestMaterializerSkipsOccurrencesOverlappingOneOffLessons(t *testing.T) {
	slots := &mockMaterializerSlots{slots: []models.RecurringSlot{mondaySlot(t, "rs1")}}
	// A one-off booking at 10:30 straddles the slot's 10:00-11:00 occurrence
	// on Sep 8 without sharing its start time.
	lessons := &mockMaterializerLessons{scheduled: []models.Lesson{
		{ID: "l1", TeacherID: "t1", StudentID: "s2", StartAt: time.Date(2025, 9, 8, 10, 30, 0, 0, time.UTC), DurationMin: 60, Status: models.LessonScheduled},
	}}
	m := newMaterializerFixture(t, slots, lessons, &mockMaterializerAvail{}, &mockJobRecorder{})

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Counts.LessonsGenerated)
	for _, l := range lessons.created {
		assert.NotEqual(t, 8, l.StartAt.Day())
	}
}

func TestMaterializerContinuesPastFailingSlot(t *testing.T) {
	slots := &mockMaterializerSlots{slots: []models.RecurringSlot{
		mondaySlot(t, "rs1"),
		mondaySlot(t, "rs2"),
	}}
	lessons := &mockMaterializerLessons{createErr: map[string]error{"rs1": errors.New("insert failed")}}
	records := &mockJobRecorder{}
	m := newMaterializerFixture(t, slots, lessons, &mockMaterializerAvail{}, records)

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)
	for _, e := range result.Errors {
		assert.Equal(t, "rs1", e.ItemID)
	}
	// The healthy slot still got its three lessons.
	assert.Equal(t, 3, result.Counts.LessonsGenerated)
	require.Len(t, records.records, 1)
	assert.False(t, records.records[0].Success)
}

func TestMaterializerRecordsRepairCounts(t *testing.T) {
	slots := &mockMaterializerSlots{}
	lessons := &mockMaterializerLessons{missed: 4}
	avail := &mockMaterializerAvail{pruned: 2}
	m := newMaterializerFixture(t, slots, lessons, avail, &mockJobRecorder{})

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Counts.LessonsMarkedMissed)
	assert.Equal(t, 2, result.Counts.BlockedPruned)
	assert.Zero(t, result.Counts.LessonsGenerated)
}
