// Package jobs defines background training jobs and the queue contracts that run them.
package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType names a kind of job. Training is the only kind today.
type JobType string

const JobTypeTrainModel JobType = "train_model"

// JobStatus is where a job is in its lifecycle:
// pending -> running -> completed | failed, with retrying between failed
// attempts that still have budget.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Trigger records what asked for a training run.
type Trigger string

const (
	TriggerAPI    Trigger = "api"
	TriggerUpload Trigger = "upload"
	TriggerCLI    Trigger = "cli"
	TriggerWorker Trigger = "worker"
)

// TrainModelJob is one queued training run.
type TrainModelJob struct {
	JobID   string    `json:"job_id"`
	Trigger Trigger   `json:"trigger"`
	Status  JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Rows is the training row count of the successful attempt.
	Rows int `json:"rows,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Type reports JobTypeTrainModel.
func (j *TrainModelJob) Type() JobType { return JobTypeTrainModel }

// Done reports whether the job reached a terminal status.
func (j *TrainModelJob) Done() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Publisher enqueues jobs.
type Publisher interface {
	// PublishTrainModel fills in the job's id and status and enqueues a copy.
	// The caller's job is not touched afterwards.
	PublishTrainModel(ctx context.Context, job *TrainModelJob) error
	Close() error
}

// Consumer runs queued jobs through a handler.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for in-flight jobs.
	Stop(ctx context.Context) error
}

// JobHandler runs one attempt. Errors wrapped with Permanent are not retried.
type JobHandler func(ctx context.Context, job *TrainModelJob) error

// JobStore keeps job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *TrainModelJob) error
	GetJob(ctx context.Context, jobID string) (*TrainModelJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*TrainModelJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter selects jobs for ListJobs. Zero fields match everything.
type JobFilter struct {
	Trigger Trigger
	Status  JobStatus
	Limit   int
	Offset  int
}

// Matches reports whether job passes the Trigger and Status criteria.
func (f JobFilter) Matches(job *TrainModelJob) bool {
	if f.Trigger != "" && job.Trigger != f.Trigger {
		return false
	}
	return f.Status == "" || job.Status == f.Status
}

// Page applies Offset and Limit to an already ordered slice.
func (f JobFilter) Page(list []*TrainModelJob) []*TrainModelJob {
	if f.Offset > 0 {
		if f.Offset >= len(list) {
			return []*TrainModelJob{}
		}
		list = list[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(list) {
		list = list[:f.Limit]
	}
	return list
}

// ErrJobNotFound is returned by JobStore lookups for unknown IDs.
var ErrJobNotFound = errors.New("job not found")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
