package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/internal/models"
	"github.com/clefbook/clefbook-api/internal/repository"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
	"github.com/clefbook/clefbook-api/pkg/timeutil"
)

type teacherRepo interface {
	List(ctx context.Context, filter repository.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
}

// CreateTeacherRequest registers a teacher profile.
type CreateTeacherRequest struct {
	Email              string  `json:"email" validate:"required,email"`
	FullName           string  `json:"full_name" validate:"required"`
	Instrument         *string `json:"instrument,omitempty"`
	Timezone           string  `json:"timezone"`
	Rate30Cents        int64   `json:"rate_30_cents" validate:"min=0"`
	Rate60Cents        int64   `json:"rate_60_cents" validate:"min=0"`
	AdvanceBookingDays int     `json:"advance_booking_days" validate:"min=0,max=365"`
}

// UpdateTeacherRequest mutates profile and rate-card fields.
type UpdateTeacherRequest struct {
	FullName           *string `json:"full_name,omitempty"`
	Instrument         *string `json:"instrument,omitempty"`
	Timezone           *string `json:"timezone,omitempty"`
	Rate30Cents        *int64  `json:"rate_30_cents,omitempty" validate:"omitempty,min=0"`
	Rate60Cents        *int64  `json:"rate_60_cents,omitempty" validate:"omitempty,min=0"`
	AdvanceBookingDays *int    `json:"advance_booking_days,omitempty" validate:"omitempty,min=0,max=365"`
	Active             *bool   `json:"active,omitempty"`
}

// ListTeachersRequest scopes the listing.
type ListTeachersRequest struct {
	Instrument string `form:"instrument"`
	ActiveOnly bool   `form:"active_only"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}

type rateCardInvalidator interface {
	Invalidate(ctx context.Context, teacherID string)
}

// TeacherService manages teacher profiles and keeps the rate-card cache
// coherent with updates.
type TeacherService struct {
	teachers  teacherRepo
	cache     rateCardInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService instantiates TeacherService.
func NewTeacherService(teachers teacherRepo, cache rateCardInvalidator, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{teachers: teachers, cache: cache, validator: validate, logger: logger}
}

// List returns teachers with pagination metadata.
func (s *TeacherService) List(ctx context.Context, req ListTeachersRequest) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.teachers.List(ctx, repository.TeacherFilter{
		Instrument: req.Instrument,
		ActiveOnly: req.ActiveOnly,
		Page:       req.Page,
		PageSize:   req.PageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return teachers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one teacher.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a teacher. The timezone is normalised up front so later
// slot computation never has to guess.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	if req.Rate30Cents == 0 && req.Rate60Cents == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one lesson duration must be priced")
	}

	_, tzName := timeutil.NormalizeTimezone(req.Timezone)
	teacher := &models.Teacher{
		Email:              req.Email,
		FullName:           req.FullName,
		Instrument:         req.Instrument,
		Timezone:           tzName,
		Rate30Cents:        req.Rate30Cents,
		Rate60Cents:        req.Rate60Cents,
		AdvanceBookingDays: req.AdvanceBookingDays,
		Active:             true,
	}
	if err := s.teachers.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.logger.Sugar().Infow("teacher created", "teacher_id", teacher.ID, "email", teacher.Email)
	return teacher, nil
}

// Update applies partial changes and invalidates the cached rate card.
func (s *TeacherService) Update(ctx context.Context, id string, req UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		teacher.FullName = *req.FullName
	}
	if req.Instrument != nil {
		teacher.Instrument = req.Instrument
	}
	if req.Timezone != nil {
		_, teacher.Timezone = timeutil.NormalizeTimezone(*req.Timezone)
	}
	if req.Rate30Cents != nil {
		teacher.Rate30Cents = *req.Rate30Cents
	}
	if req.Rate60Cents != nil {
		teacher.Rate60Cents = *req.Rate60Cents
	}
	if req.AdvanceBookingDays != nil {
		teacher.AdvanceBookingDays = *req.AdvanceBookingDays
	}
	if req.Active != nil {
		teacher.Active = *req.Active
	}
	if teacher.Rate30Cents == 0 && teacher.Rate60Cents == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one lesson duration must be priced")
	}

	if err := s.teachers.Update(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, teacher.ID)
	}
	teacher.UpdatedAt = time.Now().UTC()
	return teacher, nil
}
