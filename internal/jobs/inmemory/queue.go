package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/sales-analytics/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Queue is a channel-backed job publisher and consumer for a single process.
type Queue struct {
	jobChan   chan *jobs.ExportReportJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers int
	backoff time.Duration
	log     zerolog.Logger
}

// QueueOption customizes a Queue.
type QueueOption func(*Queue)

// WithWorkers sets the number of concurrent workers (default 5).
func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithBackoff sets the retry delay unit. Retry n waits n × d (default 1s).
func WithBackoff(d time.Duration) QueueOption {
	return func(q *Queue) { q.backoff = d }
}

// WithLogger sets the logger used for retry bookkeeping.
func WithLogger(log zerolog.Logger) QueueOption {
	return func(q *Queue) { q.log = log }
}

// NewQueue creates a new in-memory job queue. bufferSize jobs can wait before
// PublishExportReport blocks. store may be nil.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...QueueOption) *Queue {
	q := &Queue{
		jobChan:   make(chan *jobs.ExportReportJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   5,
		backoff:   time.Second,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishExportReport assigns an id and defaults, records the job and
// enqueues it.
func (q *Queue) PublishExportReport(ctx context.Context, job *jobs.ExportReportJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishExportReport: save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start launches the workers. Each job is handed to handler on one of them.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs one attempt and schedules a retry with linear backoff on
// failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.ExportReportJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.save(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()

		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			q.save(ctx, job)

			backoff := time.Duration(job.RetryCount) * q.backoff
			time.AfterFunc(backoff, func() { q.retry(ctx, job) })
			return
		}
		job.Status = jobs.JobStatusFailed
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}
	q.save(ctx, job)
}

func (q *Queue) retry(ctx context.Context, job *jobs.ExportReportJob) {
	job.Status = jobs.JobStatusPending
	job.StartedAt = nil
	job.CompletedAt = nil

	if err := q.PublishExportReport(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Retry could not be enqueued")
		job.Status = jobs.JobStatusFailed
		q.save(context.Background(), job)
	}
}

func (q *Queue) save(ctx context.Context, job *jobs.ExportReportJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to record job state")
	}
}

// Stop closes the queue and waits for in-flight jobs, or for ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
