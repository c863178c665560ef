package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"elevate_backend/internal/config"
	"elevate_backend/internal/model"
	"elevate_backend/pkg/logger"
	"elevate_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// permanentError marks a job failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so the queue fails the job without retries.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// GradeJob is one unit of asynchronous grading work.
type GradeJob struct {
	ID         string    `json:"id"`
	ResponseID string    `json:"responseId"`
	AttemptID  string    `json:"attemptId"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError,omitempty"`
	FailedAt   time.Time `json:"failedAt,omitempty"`
}

// JobExecutor runs a single grading job.
type JobExecutor func(ctx context.Context, job *GradeJob) error

// GradingQueue is a bounded in-process worker pool with per-job retry.
type GradingQueue struct {
	cfg      *config.GradingConfig
	executor JobExecutor

	jobs   chan *GradeJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	failed []GradeJob
}

func NewGradingQueue(cfg *config.GradingConfig, executor JobExecutor) *GradingQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &GradingQueue{
		cfg:      cfg,
		executor: executor,
		jobs:     make(chan *GradeJob, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (q *GradingQueue) Start() {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	logger.Log.Info("grading queue started",
		zap.Int("workers", q.cfg.Workers),
		zap.Int("queueSize", q.cfg.QueueSize))
}

// Stop drains nothing; in-flight jobs finish, queued jobs are dropped.
func (q *GradingQueue) Stop() {
	q.cancel()
	q.wg.Wait()
	logger.Log.Info("grading queue stopped")
}

// Enqueue schedules a response for asynchronous grading. Returns an
// error when the queue is full rather than blocking the caller.
func (q *GradingQueue) Enqueue(responseID, attemptID string) error {
	job := &GradeJob{
		ID:         model.GenerateUUID(),
		ResponseID: responseID,
		AttemptID:  attemptID,
	}
	select {
	case q.jobs <- job:
		monitoring.GradingJobs.WithLabelValues("dispatched").Inc()
		return nil
	default:
		return model.ServiceUnavailable("grading queue is full", nil)
	}
}

func (q *GradingQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.run(job)
		}
	}
}

func (q *GradingQueue) run(job *GradeJob) {
	for {
		job.Attempts++
		err := q.executor(q.ctx, job)
		if err == nil {
			monitoring.GradingJobs.WithLabelValues("completed").Inc()
			return
		}
		job.LastError = err.Error()

		var perm *permanentError
		if errors.As(err, &perm) {
			q.fail(job)
			return
		}
		if job.Attempts > q.cfg.MaxRetries {
			q.fail(job)
			return
		}

		monitoring.GradingJobs.WithLabelValues("retried").Inc()
		logger.Log.Warn("grading job retrying",
			zap.String("jobId", job.ID),
			zap.String("responseId", job.ResponseID),
			zap.Int("attempt", job.Attempts),
			zap.Error(err))

		backoff := q.cfg.RetryBackoff * time.Duration(job.Attempts)
		select {
		case <-q.ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (q *GradingQueue) fail(job *GradeJob) {
	job.FailedAt = time.Now()
	monitoring.GradingJobs.WithLabelValues("failed").Inc()
	logger.Log.Error("grading job failed",
		zap.String("jobId", job.ID),
		zap.String("responseId", job.ResponseID),
		zap.Int("attempts", job.Attempts),
		zap.String("lastError", job.LastError))

	q.mu.Lock()
	q.failed = append(q.failed, *job)
	q.mu.Unlock()
}

// FailedJobs returns a copy of terminally failed jobs for operator review.
func (q *GradingQueue) FailedJobs() []GradeJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]GradeJob, len(q.failed))
	copy(out, q.failed)
	return out
}
