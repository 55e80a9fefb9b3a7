package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/internal/models"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
	"github.com/clefbook/clefbook-api/pkg/export"
	"github.com/clefbook/clefbook-api/pkg/timeutil"
)

type exportBillingRepo interface {
	ListByMonth(ctx context.Context, month string) ([]models.BillingRecord, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]models.BillingRecord, error)
}

// ExportResult carries rendered export bytes plus the response metadata the
// handler needs.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

var billingExportHeaders = []string{
	"Month", "Teacher ID", "Student ID", "Subscription ID",
	"Expected Lessons", "Rate Per Lesson", "Total", "Refund", "Currency", "Status",
}

// BillingExportService renders monthly billing records as CSV or PDF
// downloads for the admin view.
type BillingExportService struct {
	billing exportBillingRepo
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
}

// NewBillingExportService instantiates BillingExportService.
func NewBillingExportService(billing exportBillingRepo, logger *zap.Logger) *BillingExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingExportService{
		billing: billing,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// ExportMonth renders the month's billing records in the requested format
// ("csv" or "pdf").
func (s *BillingExportService) ExportMonth(ctx context.Context, month, format string) (*ExportResult, error) {
	m, err := timeutil.ParseMonth(month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}
	records, err := s.billing.ListByMonth(ctx, m.String())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list billing records")
	}
	dataset := billingDataset(records)

	switch strings.ToLower(format) {
	case "", "csv":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("billing-%s.csv", m.String()),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case "pdf":
		data, err := s.pdf.Render(dataset, fmt.Sprintf("Billing %s", m.String()))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("billing-%s.pdf", m.String()),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

// RecordsForMonth returns the month's billing records unrendered, for the
// JSON admin listing.
func (s *BillingExportService) RecordsForMonth(ctx context.Context, month string) ([]models.BillingRecord, error) {
	m, err := timeutil.ParseMonth(month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}
	records, err := s.billing.ListByMonth(ctx, m.String())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list billing records")
	}
	return records, nil
}

// SubscriptionHistory returns one subscription's billing records, newest
// first.
func (s *BillingExportService) SubscriptionHistory(ctx context.Context, subscriptionID string) ([]models.BillingRecord, error) {
	records, err := s.billing.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subscription billing records")
	}
	return records, nil
}

func billingDataset(records []models.BillingRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]string{
			"Month":            r.Month,
			"Teacher ID":       r.TeacherID,
			"Student ID":       r.StudentID,
			"Subscription ID":  r.SubscriptionID,
			"Expected Lessons": fmt.Sprintf("%d", r.ExpectedLessons),
			"Rate Per Lesson":  formatCents(r.RatePerLessonCents),
			"Total":            formatCents(r.TotalAmountCents),
			"Refund":           formatCents(r.RefundCents),
			"Currency":         r.Currency,
			"Status":           string(r.Status),
		})
	}
	return export.Dataset{Headers: billingExportHeaders, Rows: rows}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
