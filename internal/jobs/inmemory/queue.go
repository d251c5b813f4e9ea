package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/jobs"
)

// DefaultMaxRetries is the queue's retry budget until SetMaxRetries changes it.
const DefaultMaxRetries = 3

// ErrQueueClosed is returned once Stop or Close has been called.
var ErrQueueClosed = errors.New("queue is closed")

// Queue runs training jobs on a fixed pool of goroutines fed by a buffered
// channel. Failed attempts are re-enqueued after a linear backoff; retries
// still waiting when the queue stops are marked failed. Nothing survives a
// restart.
type Queue struct {
	pending chan *jobs.TrainModelJob
	done    chan struct{}
	once    sync.Once
	running sync.WaitGroup

	mu      sync.Mutex
	waiting map[string]*time.Timer

	store      jobs.JobStore
	log        zerolog.Logger
	workers    int
	backoff    time.Duration
	maxRetries int
}

// NewQueue creates a queue holding up to bufferSize jobs before
// PublishTrainModel blocks. store may be nil.
func NewQueue(bufferSize, workers int, store jobs.JobStore, log zerolog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		pending:    make(chan *jobs.TrainModelJob, bufferSize),
		done:       make(chan struct{}),
		waiting:    make(map[string]*time.Timer),
		store:      store,
		log:        log,
		workers:    workers,
		backoff:    time.Second,
		maxRetries: DefaultMaxRetries,
	}
}

// SetRetryBackoff sets the delay before the first retry. Attempt n waits n times as long.
func (q *Queue) SetRetryBackoff(d time.Duration) {
	q.backoff = d
}

func (q *Queue) closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// SetMaxRetries sets the retry budget given to jobs published without one.
// Zero disables retries; negative values are treated as zero.
func (q *Queue) SetMaxRetries(n int) {
	if n < 0 {
		n = 0
	}
	q.maxRetries = n
}

// PublishTrainModel assigns the job an id, a pending status and a retry
// budget where missing, records it, and enqueues a copy. The caller keeps
// sole ownership of job; later progress is visible through the JobStore.
func (q *Queue) PublishTrainModel(ctx context.Context, job *jobs.TrainModelJob) error {
	if q.closed() {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.maxRetries
	}
	job.Status = jobs.JobStatusPending

	queued := *job
	q.save(ctx, &queued)
	return q.enqueue(ctx, &queued)
}

func (q *Queue) enqueue(ctx context.Context, job *jobs.TrainModelJob) error {
	select {
	case q.pending <- job:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the workers. They exit when ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	if q.closed() {
		return ErrQueueClosed
	}
	q.running.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go q.work(ctx, handler)
	}
	return nil
}

func (q *Queue) work(ctx context.Context, handler jobs.JobHandler) {
	defer q.running.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case job := <-q.pending:
			q.attempt(ctx, job, handler)
		}
	}
}

// attempt runs handler once and records the outcome. A retry runs on a
// fresh copy so the timer goroutine never shares job with this worker.
func (q *Queue) attempt(ctx context.Context, job *jobs.TrainModelJob, handler jobs.JobHandler) {
	started := time.Now().UTC()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	job.CompletedAt = nil
	q.save(ctx, job)

	err := handler(ctx, job)

	finished := time.Now().UTC()
	job.CompletedAt = &finished
	log := q.log.With().Str("job_id", job.JobID).Int("attempt", job.RetryCount+1).Logger()

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Dur("took", finished.Sub(started)).Msg("Job completed")
	case jobs.IsPermanent(err) || job.RetryCount >= job.MaxRetries:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Msg("Job failed")
	default:
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		log.Warn().Err(err).Msg("Job failed, retrying")
	}
	q.save(ctx, job)

	if job.Status == jobs.JobStatusRetrying {
		next := *job
		next.Status = jobs.JobStatusPending
		next.StartedAt = nil
		next.CompletedAt = nil
		q.retryLater(&next, time.Duration(next.RetryCount)*q.backoff)
	}
}

// retryLater re-enqueues job after delay unless the queue stops first.
// job must not be referenced by anyone else.
func (q *Queue) retryLater(job *jobs.TrainModelJob, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.waiting[job.JobID] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.waiting, job.JobID)
		q.mu.Unlock()

		q.save(context.Background(), job)
		if err := q.enqueue(context.Background(), job); err != nil {
			q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Retry dropped")
		}
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.TrainModelJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop refuses new jobs, cancels waiting retries, and waits for running
// attempts to finish or ctx to expire.
func (q *Queue) Stop(ctx context.Context) error {
	q.once.Do(func() {
		close(q.done)

		q.mu.Lock()
		for id, t := range q.waiting {
			if t.Stop() && q.store != nil {
				_ = q.store.UpdateJobStatus(ctx, id, jobs.JobStatusFailed, "queue stopped before retry")
			}
			delete(q.waiting, id)
		}
		q.mu.Unlock()
	})

	finished := make(chan struct{})
	go func() {
		q.running.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
