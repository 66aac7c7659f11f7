package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by a JobStore for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExportReport renders the dashboard and writes it to object storage.
	JobTypeExportReport JobType = "export_report"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and will be re-enqueued.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries applies when a job is published without MaxRetries.
const DefaultMaxRetries = 3

// ExportReportJob asks a worker to export a dashboard snapshot.
type ExportReportJob struct {
	JobID string `json:"job_id"`

	// RequestedBy is the user whose token enqueued the export.
	RequestedBy string `json:"requested_by"`

	// Bucket and ObjectName locate the export. ObjectName is chosen by the
	// worker when left empty.
	Bucket     string `json:"bucket"`
	ObjectName string `json:"object_name,omitempty"`

	// GCSURI is set once the report has been written.
	GCSURI string `json:"gcs_uri,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ExportReportJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ExportReportJob) GetType() JobType {
	return JobTypeExportReport
}

// GetStatus implements the Job interface.
func (j *ExportReportJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	// PublishExportReport fills in defaults on job and enqueues it.
	PublishExportReport(ctx context.Context, job *ExportReportJob) error

	Close() error
}

// Consumer hands queued jobs to a handler.
type Consumer interface {
	// Start launches the workers and returns immediately.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error makes the job eligible for
// a retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *ExportReportJob) error
	GetJob(ctx context.Context, jobID string) (*ExportReportJob, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExportReportJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	RequestedBy string
	Status      JobStatus
	Limit       int
	Offset      int
}
