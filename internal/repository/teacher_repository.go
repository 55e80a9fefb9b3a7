package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clefbook/clefbook-api/internal/models"
)

const teacherColumns = "id, email, full_name, instrument, timezone, rate_30_cents, rate_60_cents, advance_booking_days, active, created_at, updated_at"

// TeacherRepository provides persistence for teachers.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository creates a new teacher repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// TeacherFilter scopes teacher listings.
type TeacherFilter struct {
	Instrument string
	ActiveOnly bool
	Page       int
	PageSize   int
}

// List returns teachers with pagination.
func (r *TeacherRepository) List(ctx context.Context, filter TeacherFilter) ([]models.Teacher, int, error) {
	base := "FROM teachers WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Instrument != "" {
		conditions = append(conditions, fmt.Sprintf("instrument = $%d", len(args)+1))
		args = append(args, filter.Instrument)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "active = TRUE")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY full_name ASC LIMIT %d OFFSET %d", teacherColumns, base, size, (page-1)*size)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID loads a teacher by id.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := fmt.Sprintf("SELECT %s FROM teachers WHERE id = $1", teacherColumns)
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Create inserts a teacher.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now

	const query = `INSERT INTO teachers (id, email, full_name, instrument, timezone, rate_30_cents, rate_60_cents, advance_booking_days, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query,
		teacher.ID, teacher.Email, teacher.FullName, teacher.Instrument, teacher.Timezone,
		teacher.Rate30Cents, teacher.Rate60Cents, teacher.AdvanceBookingDays, teacher.Active,
		teacher.CreatedAt, teacher.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update persists mutable teacher fields.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers
		SET full_name = $2, instrument = $3, timezone = $4, rate_30_cents = $5, rate_60_cents = $6, advance_booking_days = $7, active = $8, updated_at = $9
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		teacher.ID, teacher.FullName, teacher.Instrument, teacher.Timezone,
		teacher.Rate30Cents, teacher.Rate60Cents, teacher.AdvanceBookingDays, teacher.Active, teacher.UpdatedAt,
	); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// ListActiveIDs returns ids of active teachers (used by the batch jobs).
func (r *TeacherRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, "SELECT id FROM teachers WHERE active = TRUE ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list active teacher ids: %w", err)
	}
	return ids, nil
}

// StudentRepository provides read access to students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID loads a student by id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, email, full_name, timezone, active, created_at, updated_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}
