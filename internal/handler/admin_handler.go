package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clefbook/clefbook-api/internal/service"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
	"github.com/clefbook/clefbook-api/pkg/response"
)

// AdminHandler exposes the admin surface: background-job control, system
// health and billing administration.
type AdminHandler struct {
	jobs    *service.JobService
	billing *service.BillingExportService
}

// NewAdminHandler constructs a new AdminHandler.
func NewAdminHandler(jobs *service.JobService, billing *service.BillingExportService) *AdminHandler {
	return &AdminHandler{jobs: jobs, billing: billing}
}

// JobHistory godoc
// @Summary List background job executions
// @Tags Admin
// @Produce json
// @Param limit query int false "Max records (default 20, max 200)"
// @Success 200 {object} response.Envelope
// @Router /admin/jobs [get]
func (h *AdminHandler) JobHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be an integer"))
			return
		}
	}
	records, err := h.jobs.History(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// TriggerLessonGeneration godoc
// @Summary Run the lesson generation job now
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/jobs/lesson-generation [post]
func (h *AdminHandler) TriggerLessonGeneration(c *gin.Context) {
	result, err := h.jobs.TriggerLessonGeneration(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// TriggerInvoiceGeneration godoc
// @Summary Run the invoice generation job now
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/jobs/invoice-generation [post]
func (h *AdminHandler) TriggerInvoiceGeneration(c *gin.Context) {
	result, err := h.jobs.TriggerInvoiceGeneration(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Health godoc
// @Summary System health including job freshness
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /admin/health [get]
func (h *AdminHandler) Health(c *gin.Context) {
	health := h.jobs.Health(c.Request.Context())
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	response.JSON(c, status, health, nil)
}

// BillingRecords godoc
// @Summary List billing records for a month
// @Tags Admin
// @Produce json
// @Param month query string true "Billing month (YYYY-MM)"
// @Success 200 {object} response.Envelope
// @Router /admin/billing [get]
func (h *AdminHandler) BillingRecords(c *gin.Context) {
	records, err := h.billing.RecordsForMonth(c.Request.Context(), c.Query("month"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// SubscriptionHistory godoc
// @Summary List billing records for a subscription
// @Tags Admin
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} response.Envelope
// @Router /admin/billing/subscriptions/{id} [get]
func (h *AdminHandler) SubscriptionHistory(c *gin.Context) {
	records, err := h.billing.SubscriptionHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// ExportBilling godoc
// @Summary Export a month's billing records
// @Description Streams the month's records as a CSV or PDF attachment
// @Tags Admin
// @Produce octet-stream
// @Param month query string true "Billing month (YYYY-MM)"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {file} file
// @Router /admin/billing/export [get]
func (h *AdminHandler) ExportBilling(c *gin.Context) {
	result, err := h.billing.ExportMonth(c.Request.Context(), c.Query("month"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
