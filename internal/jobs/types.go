package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by a JobStore for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeReminder delivers a planned payment reminder.
	JobTypeReminder JobType = "payment_reminder"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusScheduled indicates the job waits for its fire time.
	JobStatusScheduled JobStatus = "scheduled"
	// JobStatusPending indicates the job is due and waiting for a worker.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
	// JobStatusCancelled indicates the job was dropped before it ran.
	JobStatusCancelled JobStatus = "cancelled"
)

// ReminderJob delivers one reminder for a planned payment at FireAt.
type ReminderJob struct {
	// JobID is the reminder id; publishing the same id again replaces the
	// pending job.
	JobID string `json:"job_id"`

	PaymentID string    `json:"payment_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	FireAt    time.Time `json:"fire_at"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ReminderJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ReminderJob) GetType() JobType {
	return JobTypeReminder
}

// GetStatus implements the Job interface.
func (j *ReminderJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishReminder schedules a reminder job for its fire time.
	PublishReminder(ctx context.Context, job *ReminderJob) error

	// CancelPayment drops every scheduled reminder of a payment and returns
	// how many were dropped.
	CancelPayment(ctx context.Context, paymentID string) (int, error)

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ReminderJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ReminderJob, error)

	// ListJobs retrieves jobs with optional filtering, ordered by fire time.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ReminderJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// PaymentID filters jobs by planned payment.
	PaymentID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
