package models

import "time"

// LessonStatus enumerates lesson lifecycle states.
type LessonStatus string

const (
	LessonScheduled LessonStatus = "SCHEDULED"
	LessonCompleted LessonStatus = "COMPLETED"
	LessonCancelled LessonStatus = "CANCELLED"
	LessonMissed    LessonStatus = "MISSED"
)

// ValidLessonStatus reports whether s is a known status value.
func ValidLessonStatus(s LessonStatus) bool {
	switch s {
	case LessonScheduled, LessonCompleted, LessonCancelled, LessonMissed:
		return true
	}
	return false
}

// lessonTransitions lists the permitted status changes. MISSED is reached
// only by the cleanup pass, never by user action.
var lessonTransitions = map[LessonStatus][]LessonStatus{
	LessonScheduled: {LessonCompleted, LessonCancelled, LessonMissed},
	LessonMissed:    {LessonCompleted},
}

// CanTransition reports whether a lesson may move from one status to another.
func CanTransition(from, to LessonStatus) bool {
	for _, allowed := range lessonTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Lesson is one concrete lesson instance. Identity (teacher, student, start,
// duration) is immutable once created; only status and content fields change.
type Lesson struct {
	ID              string       `db:"id" json:"id"`
	TeacherID       string       `db:"teacher_id" json:"teacher_id"`
	StudentID       string       `db:"student_id" json:"student_id"`
	RecurringSlotID *string      `db:"recurring_slot_id" json:"recurring_slot_id,omitempty"`
	StartAt         time.Time    `db:"start_at" json:"start_at"`
	DurationMin     int          `db:"duration_min" json:"duration_min"`
	Status          LessonStatus `db:"status" json:"status"`
	Notes           *string      `db:"notes" json:"notes,omitempty"`
	Homework        *string      `db:"homework" json:"homework,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// EndAt returns the exclusive end of the lesson interval.
func (l Lesson) EndAt() time.Time {
	return l.StartAt.Add(time.Duration(l.DurationMin) * time.Minute)
}
