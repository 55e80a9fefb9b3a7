package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clefbook/clefbook-api/internal/service"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
	"github.com/clefbook/clefbook-api/pkg/response"
)

// RecurringSlotHandler wires recurring slot booking, cancellation and
// billing previews to HTTP routes.
type RecurringSlotHandler struct {
	slots   *service.RecurringSlotService
	metrics *service.MetricsService
}

// NewRecurringSlotHandler constructs a new RecurringSlotHandler.
func NewRecurringSlotHandler(slots *service.RecurringSlotService, metrics *service.MetricsService) *RecurringSlotHandler {
	return &RecurringSlotHandler{slots: slots, metrics: metrics}
}

// Book godoc
// @Summary Book a recurring weekly slot
// @Description Reserves a weekly slot and opens its billing subscription
// @Tags Recurring Slots
// @Accept json
// @Produce json
// @Param payload body service.BookRecurringSlotRequest true "Recurring booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /recurring-slots [post]
func (h *RecurringSlotHandler) Book(c *gin.Context) {
	var req service.BookRecurringSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid recurring booking payload"))
		return
	}

	slot, err := h.slots.Book(c.Request.Context(), req)
	if err != nil {
		if h.metrics != nil {
			if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrSlotTaken.Code {
				h.metrics.BookingConflict()
			}
		}
		response.Error(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.LessonBooked()
	}
	response.Created(c, slot)
}

// Cancel godoc
// @Summary Cancel a recurring slot
// @Description Cancels the slot, drops future lessons and records the pro-rated refund
// @Tags Recurring Slots
// @Produce json
// @Param id path string true "Recurring slot ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /recurring-slots/{id} [delete]
func (h *RecurringSlotHandler) Cancel(c *gin.Context) {
	result, err := h.slots.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListByTeacher godoc
// @Summary List a teacher's recurring slots
// @Tags Recurring Slots
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/recurring-slots [get]
func (h *RecurringSlotHandler) ListByTeacher(c *gin.Context) {
	slots, err := h.slots.ListByTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// PreviewBilling godoc
// @Summary Preview a month's billing for a recurring slot
// @Description Computes expected lessons, per-lesson rate and total for a month without writing anything
// @Tags Recurring Slots
// @Produce json
// @Param id path string true "Recurring slot ID"
// @Param month query string true "Billing month (YYYY-MM)"
// @Success 200 {object} response.Envelope
// @Router /recurring-slots/{id}/billing-preview [get]
func (h *RecurringSlotHandler) PreviewBilling(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month query parameter is required"))
		return
	}
	billing, err := h.slots.PreviewBilling(c.Request.Context(), c.Param("id"), month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, billing, nil)
}
