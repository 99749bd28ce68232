// Package jobs defines the asynchronous import job model and the queue
// abstractions over it.
package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/txengine/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeImportCSV represents a batch CSV import job.
	JobTypeImportCSV JobType = "import_csv"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ImportCSVJob carries one CSV upload through the import pipeline. Payload
// holds the raw file bytes; the queue never interprets them.
type ImportCSVJob struct {
	JobID     string `json:"job_id"`
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
	Filename  string `json:"filename,omitempty"`

	Payload []byte `json:"-"`

	Status JobStatus `json:"status"`

	// Result is set once the import completes.
	Result *domain.ImportBatchResult `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ImportCSVJob) GetID() string        { return j.JobID }
func (j *ImportCSVJob) GetType() JobType     { return JobTypeImportCSV }
func (j *ImportCSVJob) GetStatus() JobStatus { return j.Status }

// Publisher defines the interface for publishing jobs to a queue. The
// abstraction leaves room for an external broker behind the same API.
type Publisher interface {
	PublishImportCSV(ctx context.Context, job *ImportCSVJob) error
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue. The handler is called
	// for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job failed and
// eligible for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state so callers can poll import progress.
type JobStore interface {
	SaveJob(ctx context.Context, job *ImportCSVJob) error
	GetJob(ctx context.Context, jobID string) (*ImportCSVJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ImportCSVJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	UserID string
	Status JobStatus
	Limit  int
	Offset int
}
