package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobName identifies a background job.
type JobName string

const (
	JobGenerateLessons  JobName = "generate_lessons"
	JobGenerateInvoices JobName = "generate_invoices"
)

// JobCounts summarises what one run produced, persisted as JSONB.
type JobCounts struct {
	TeachersProcessed   int `json:"teachers_processed,omitempty"`
	LessonsGenerated    int `json:"lessons_generated,omitempty"`
	LessonsMarkedMissed int `json:"lessons_marked_missed,omitempty"`
	BlockedPruned       int `json:"blocked_pruned,omitempty"`
	InvoicesCreated     int `json:"invoices_created,omitempty"`
	SubscriptionsSeen   int `json:"subscriptions_seen,omitempty"`
}

// Value marshals counts to JSON for persistence.
func (c JobCounts) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal job counts: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the counts struct.
func (c *JobCounts) Scan(value interface{}) error {
	return scanJSON(value, c, "JobCounts")
}

// JobErrors is the per-item failure list, persisted as JSONB.
type JobErrors []JobError

// JobError records one failed batch item without aborting the run.
type JobError struct {
	ItemID  string `json:"item_id"`
	Message string `json:"message"`
}

// Value marshals the error list to JSON for persistence.
func (e JobErrors) Value() (driver.Value, error) {
	if e == nil {
		e = JobErrors{}
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal job errors: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the error list.
func (e *JobErrors) Scan(value interface{}) error {
	return scanJSON(value, e, "JobErrors")
}

// JobExecutionRecord is one append-only audit row per job run, consumed by
// the admin monitoring view.
type JobExecutionRecord struct {
	ID       string    `db:"id" json:"id"`
	JobName  JobName   `db:"job_name" json:"job_name"`
	RanAt    time.Time `db:"ran_at" json:"ran_at"`
	Success  bool      `db:"success" json:"success"`
	Counts   JobCounts `db:"counts" json:"counts"`
	Errors   JobErrors `db:"errors" json:"errors"`
	Duration int64     `db:"duration_ms" json:"duration_ms"`
}

// JobResult is the synchronous return shape shared by the scheduled and
// admin-triggered invocations.
type JobResult struct {
	Success bool      `json:"success"`
	Counts  JobCounts `json:"counts"`
	Errors  JobErrors `json:"errors"`
}

func scanJSON(value interface{}, dest interface{}, name string) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for %s", value, name)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}
