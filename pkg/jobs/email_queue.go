package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/pkg/email"
	"github.com/clefbook/clefbook-api/pkg/retry"
)

// EmailJob is one outbound notification waiting for delivery.
type EmailJob struct {
	ID       string
	To       string
	Subject  string
	HTMLBody string
	Enqueued time.Time
}

// EmailQueueConfig configures dispatcher behaviour.
type EmailQueueConfig struct {
	Workers    int
	BufferSize int
	Policy     retry.Policy
	Logger     *zap.Logger
	// OnDrop is invoked each time a full buffer discards a notification.
	OnDrop func()
}

// EmailQueue dispatches notification emails on background workers so HTTP
// handlers and batch jobs never block on the provider. Each delivery runs
// under the email retry policy.
type EmailQueue struct {
	sender email.Sender
	policy retry.Policy
	logger *zap.Logger
	onDrop func()

	workers    int
	bufferSize int

	jobs    chan EmailJob
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewEmailQueue builds a queue around the given sender.
func NewEmailQueue(sender email.Sender, cfg EmailQueueConfig) *EmailQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = retry.EmailPolicy()
	}

	return &EmailQueue{
		sender:     sender,
		policy:     cfg.Policy,
		logger:     cfg.Logger,
		onDrop:     cfg.OnDrop,
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		jobs:       make(chan EmailJob, cfg.BufferSize),
	}
}

// Start launches worker goroutines. Safe to call once.
func (q *EmailQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("email queue started", "workers", q.workers)
}

// Stop cancels workers and waits for them to exit.
func (q *EmailQueue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("email queue stopped")
}

// Enqueue hands a job to the workers. It never blocks the caller: a full
// buffer drops the notification with a logged error rather than stalling a
// booking response.
func (q *EmailQueue) Enqueue(job EmailJob) error {
	q.mu.Lock()
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("email queue not started")
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		q.logger.Sugar().Errorw("email queue full, dropping notification", "job_id", job.ID, "to", job.To)
		if q.onDrop != nil {
			q.onDrop()
		}
		return fmt.Errorf("email queue full")
	}
}

func (q *EmailQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.deliver(job)
		}
	}
}

func (q *EmailQueue) deliver(job EmailJob) {
	err := retry.Do(q.ctx, q.policy, q.logger, func(context.Context) error {
		return q.sender.Send(job.To, job.Subject, job.HTMLBody)
	})
	if err != nil {
		q.logger.Sugar().Errorw("email delivery failed",
			"job_id", job.ID, "to", job.To, "subject", job.Subject, "error", err)
		return
	}
	q.logger.Sugar().Debugw("email delivered", "job_id", job.ID, "to", job.To)
}
