package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clefbook/clefbook-api/internal/service"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
	"github.com/clefbook/clefbook-api/pkg/response"
)

// LessonHandler wires one-off lesson booking and lifecycle to HTTP routes.
type LessonHandler struct {
	booking *service.BookingService
	metrics *service.MetricsService
}

// NewLessonHandler constructs a new LessonHandler.
func NewLessonHandler(booking *service.BookingService, metrics *service.MetricsService) *LessonHandler {
	return &LessonHandler{booking: booking, metrics: metrics}
}

// Book godoc
// @Summary Book a one-off lesson
// @Description Books a single lesson if the slot is inside availability and conflict-free
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body service.BookLessonRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons [post]
func (h *LessonHandler) Book(c *gin.Context) {
	var req service.BookLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	lesson, err := h.booking.Book(c.Request.Context(), req)
	if err != nil {
		if h.metrics != nil {
			if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrSlotTaken.Code || appErr.Code == appErrors.ErrTimeBlocked.Code {
				h.metrics.BookingConflict()
			}
		}
		response.Error(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.LessonBooked()
	}
	response.Created(c, lesson)
}

// UpdateStatus godoc
// @Summary Update lesson status
// @Description Transitions a lesson between SCHEDULED, COMPLETED, MISSED and CANCELLED
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body service.UpdateLessonStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons/{id}/status [patch]
func (h *LessonHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateLessonStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	lesson, err := h.booking.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// ListByTeacher godoc
// @Summary List a teacher's lessons
// @Tags Lessons
// @Produce json
// @Param id path string true "Teacher ID"
// @Param from query string false "Range start (RFC3339, default now)"
// @Param to query string false "Range end (RFC3339, default from+30d)"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/lessons [get]
func (h *LessonHandler) ListByTeacher(c *gin.Context) {
	from := time.Now().UTC()
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
			return
		}
		from = parsed
	}
	to := from.AddDate(0, 0, 30)
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
			return
		}
		to = parsed
	}

	lessons, err := h.booking.ListByTeacher(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, nil)
}
