package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clefbook/clefbook-api/internal/models"
)

// JobRecordRepository appends and reads the background job audit trail.
type JobRecordRepository struct {
	db *sqlx.DB
}

// NewJobRecordRepository creates a new job record repository.
func NewJobRecordRepository(db *sqlx.DB) *JobRecordRepository {
	return &JobRecordRepository{db: db}
}

// Insert appends one execution record. The trail is append-only.
func (r *JobRecordRepository) Insert(ctx context.Context, record *models.JobExecutionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	const query = `INSERT INTO job_execution_records (id, job_name, ran_at, success, counts, errors, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		record.ID, record.JobName, record.RanAt, record.Success, record.Counts, record.Errors, record.Duration,
	); err != nil {
		return fmt.Errorf("insert job execution record: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (r *JobRecordRepository) List(ctx context.Context, limit int) ([]models.JobExecutionRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id, job_name, ran_at, success, counts, errors, duration_ms
		FROM job_execution_records ORDER BY ran_at DESC LIMIT %d`, limit)
	var records []models.JobExecutionRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list job execution records: %w", err)
	}
	return records, nil
}

// LastRun returns the most recent run of the named job, or nil when the job
// has never run.
func (r *JobRecordRepository) LastRun(ctx context.Context, name models.JobName) (*models.JobExecutionRecord, error) {
	const query = `SELECT id, job_name, ran_at, success, counts, errors, duration_ms
		FROM job_execution_records WHERE job_name = $1 ORDER BY ran_at DESC LIMIT 1`
	var record models.JobExecutionRecord
	if err := r.db.GetContext(ctx, &record, query, name); err != nil {
		return nil, err
	}
	return &record, nil
}
