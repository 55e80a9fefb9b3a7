package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/internal/models"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
)

type jobHistoryRepo interface {
	List(ctx context.Context, limit int) ([]models.JobExecutionRecord, error)
	LastRun(ctx context.Context, name models.JobName) (*models.JobExecutionRecord, error)
}

type dbPinger interface {
	PingContext(ctx context.Context) error
}

// ComponentHealth is one dependency's health probe result.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// SystemHealth aggregates dependency probes and the latest job outcomes.
type SystemHealth struct {
	Healthy  bool                       `json:"healthy"`
	Database ComponentHealth            `json:"database"`
	Redis    ComponentHealth            `json:"redis"`
	Jobs     map[string]ComponentHealth `json:"jobs"`
}

// JobService exposes background-job monitoring to the admin surface.
type JobService struct {
	history      jobHistoryRepo
	materializer *LessonMaterializer
	invoices     *InvoiceGenerator
	db           dbPinger
	redis        *redis.Client
	defaultLimit int
	logger       *zap.Logger
}

// NewJobService instantiates JobService.
func NewJobService(
	history jobHistoryRepo,
	materializer *LessonMaterializer,
	invoices *InvoiceGenerator,
	db dbPinger,
	redisClient *redis.Client,
	defaultLimit int,
	logger *zap.Logger,
) *JobService {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{
		history:      history,
		materializer: materializer,
		invoices:     invoices,
		db:           db,
		redis:        redisClient,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// History returns recent job execution records, newest first.
func (s *JobService) History(ctx context.Context, limit int) ([]models.JobExecutionRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = s.defaultLimit
	}
	records, err := s.history.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list job history")
	}
	return records, nil
}

// TriggerLessonGeneration runs the materializer on demand.
func (s *JobService) TriggerLessonGeneration(ctx context.Context) (*models.JobResult, error) {
	return s.materializer.Run(ctx)
}

// TriggerInvoiceGeneration runs the invoice generator on demand.
func (s *JobService) TriggerInvoiceGeneration(ctx context.Context) (*models.JobResult, error) {
	return s.invoices.Run(ctx)
}

// Health probes the database and cache, and reports whether each job's most
// recent run succeeded. A job that has never run is reported unhealthy with a
// detail rather than omitted.
func (s *JobService) Health(ctx context.Context) *SystemHealth {
	health := &SystemHealth{Healthy: true, Jobs: map[string]ComponentHealth{}}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health.Database = s.probe(func() error { return s.db.PingContext(ctx) })
	if s.redis != nil {
		health.Redis = s.probe(func() error { return s.redis.Ping(ctx).Err() })
	} else {
		health.Redis = ComponentHealth{Healthy: false, Detail: "not configured"}
	}
	if !health.Database.Healthy || !health.Redis.Healthy {
		health.Healthy = false
	}

	for _, name := range []models.JobName{models.JobGenerateLessons, models.JobGenerateInvoices} {
		last, err := s.history.LastRun(ctx, name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			health.Jobs[string(name)] = ComponentHealth{Healthy: false, Detail: "never ran"}
		case err != nil:
			health.Jobs[string(name)] = ComponentHealth{Healthy: false, Detail: err.Error()}
			health.Healthy = false
		case last == nil:
			health.Jobs[string(name)] = ComponentHealth{Healthy: false, Detail: "never ran"}
		case !last.Success:
			health.Jobs[string(name)] = ComponentHealth{
				Healthy: false,
				Detail:  "last run at " + last.RanAt.Format(time.RFC3339) + " failed",
			}
			health.Healthy = false
		default:
			health.Jobs[string(name)] = ComponentHealth{Healthy: true}
		}
	}
	return health
}

func (s *JobService) probe(ping func() error) ComponentHealth {
	if err := ping(); err != nil {
		return ComponentHealth{Healthy: false, Detail: err.Error()}
	}
	return ComponentHealth{Healthy: true}
}
