package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clefbook/clefbook-api/internal/service"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
	"github.com/clefbook/clefbook-api/pkg/response"
)

// defaultSlotRangeDays bounds the slot query when the caller omits "to".
const defaultSlotRangeDays = 7

// AvailabilityHandler wires slot computation and schedule management to
// HTTP routes.
type AvailabilityHandler struct {
	avail *service.AvailabilityService
}

// NewAvailabilityHandler constructs a new AvailabilityHandler.
func NewAvailabilityHandler(avail *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{avail: avail}
}

// Slots godoc
// @Summary List bookable slots for a teacher
// @Description Computes the slot sequence for a date range, marking slots that are booked, blocked, or in the past
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Param from query string false "Range start (RFC3339, default now)"
// @Param to query string false "Range end (RFC3339, default from+7d)"
// @Param timezone query string false "IANA timezone for slot display (default UTC)"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/slots [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	from := time.Now().UTC()
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
			return
		}
		from = parsed
	}
	to := from.AddDate(0, 0, defaultSlotRangeDays)
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
			return
		}
		to = parsed
	}

	sequence, err := h.avail.GetAvailableSlots(c.Request.Context(), c.Param("id"), from, to, c.Query("timezone"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sequence, nil)
}

// GetSchedule godoc
// @Summary Get a teacher's weekly availability
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability [get]
func (h *AvailabilityHandler) GetSchedule(c *gin.Context) {
	windows, err := h.avail.WeeklySchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// ReplaceSchedule godoc
// @Summary Replace a teacher's weekly availability
// @Description Swaps the entire weekly schedule; an empty window list clears it
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.ReplaceAvailabilityRequest true "Weekly windows"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability [put]
func (h *AvailabilityHandler) ReplaceSchedule(c *gin.Context) {
	var req service.ReplaceAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	windows, err := h.avail.ReplaceAvailability(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// Block godoc
// @Summary Block a time interval
// @Description Creates a one-off blocked interval that suppresses slots and bookings
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.BlockTimeRequest true "Interval payload"
// @Success 201 {object} response.Envelope
// @Router /teachers/{id}/blocked [post]
func (h *AvailabilityHandler) Block(c *gin.Context) {
	var req service.BlockTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid blocked time payload"))
		return
	}
	blocked, err := h.avail.BlockTime(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, blocked)
}

// Unblock godoc
// @Summary Remove a blocked interval
// @Tags Availability
// @Param id path string true "Teacher ID"
// @Param bid path string true "Blocked interval ID"
// @Success 204
// @Router /teachers/{id}/blocked/{bid} [delete]
func (h *AvailabilityHandler) Unblock(c *gin.Context) {
	if err := h.avail.UnblockTime(c.Request.Context(), c.Param("id"), c.Param("bid")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
