package service

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clefbook/clefbook-api/internal/models"
)

// MetricsService holds the Prometheus collectors for the API and the
// background jobs.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	lessonsBooked    prometheus.Counter
	bookingConflicts prometheus.Counter

	jobRuns      *prometheus.CounterVec
	jobItems     *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	emailDropped prometheus.Counter
}

// NewMetricsService registers all collectors on a fresh registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	s := &MetricsService{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		lessonsBooked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lessons_booked_total",
			Help: "Lessons booked through the API.",
		}),
		bookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_conflicts_total",
			Help: "Booking attempts rejected because the time was taken or blocked.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Background job runs by job name and outcome.",
		}, []string{"job", "outcome"}),
		jobItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "job_items_total",
			Help: "Items produced by background jobs (lessons generated, invoices created).",
		}, []string{"job", "item"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Background job run duration.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		emailDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "email_jobs_dropped_total",
			Help: "Email notifications dropped because the queue was full.",
		}),
	}

	registry.MustRegister(
		s.httpRequests, s.httpDuration,
		s.lessonsBooked, s.bookingConflicts,
		s.jobRuns, s.jobItems, s.jobDuration,
		s.emailDropped,
	)
	return s
}

// Registry exposes the registry for the /metrics handler.
func (s *MetricsService) Registry() *prometheus.Registry {
	return s.registry
}

// ObserveHTTPRequest records one completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	s.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// LessonBooked increments the booking counter.
func (s *MetricsService) LessonBooked() {
	s.lessonsBooked.Inc()
}

// BookingConflict increments the conflict counter.
func (s *MetricsService) BookingConflict() {
	s.bookingConflicts.Inc()
}

// ObserveJobRun records one background job run from its result.
func (s *MetricsService) ObserveJobRun(job models.JobName, result *models.JobResult, duration time.Duration) {
	outcome := "success"
	if result == nil || !result.Success {
		outcome = "failure"
	}
	s.jobRuns.WithLabelValues(string(job), outcome).Inc()
	s.jobDuration.WithLabelValues(string(job)).Observe(duration.Seconds())
	if result == nil {
		return
	}
	switch job {
	case models.JobGenerateLessons:
		s.jobItems.WithLabelValues(string(job), "lessons_generated").Add(float64(result.Counts.LessonsGenerated))
		s.jobItems.WithLabelValues(string(job), "lessons_marked_missed").Add(float64(result.Counts.LessonsMarkedMissed))
	case models.JobGenerateInvoices:
		s.jobItems.WithLabelValues(string(job), "invoices_created").Add(float64(result.Counts.InvoicesCreated))
	}
}

// EmailDropped increments the dropped-notification counter.
func (s *MetricsService) EmailDropped() {
	s.emailDropped.Inc()
}
