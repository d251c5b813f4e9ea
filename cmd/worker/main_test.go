package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/jobs/inmemory"
)

func newQueue(retries int) (*inmemory.Queue, *inmemory.Store) {
	store := inmemory.NewStore()
	q := inmemory.NewQueue(1, 1, store, zerolog.Nop())
	q.SetRetryBackoff(time.Millisecond)
	q.SetMaxRetries(retries)
	return q, store
}

func TestRetrain_Completes(t *testing.T) {
	q, store := newQueue(2)
	defer q.Close()

	var calls atomic.Int32
	handler := func(ctx context.Context, job *jobs.TrainModelJob) error {
		if calls.Add(1) == 1 {
			return errors.New("store unavailable")
		}
		job.Rows = 42
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := retrain(ctx, q, store, handler, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, jobs.JobStatusCompleted, job.Status)
	require.Equal(t, jobs.TriggerWorker, job.Trigger)
	require.Equal(t, 42, job.Rows)
	require.Equal(t, 1, job.RetryCount)
}

func TestRetrain_PermanentFailure(t *testing.T) {
	q, store := newQueue(3)
	defer q.Close()

	handler := func(ctx context.Context, job *jobs.TrainModelJob) error {
		return jobs.Permanent(errors.New("no data"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := retrain(ctx, q, store, handler, zerolog.Nop())
	require.ErrorIs(t, err, errJobFailed)
	require.ErrorContains(t, err, "no data")
	require.Equal(t, jobs.JobStatusFailed, job.Status)
	require.Zero(t, job.RetryCount)
}

func TestRetrain_NoRetries(t *testing.T) {
	q, store := newQueue(0)
	defer q.Close()

	var calls atomic.Int32
	handler := func(ctx context.Context, job *jobs.TrainModelJob) error {
		calls.Add(1)
		return errors.New("store unavailable")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := retrain(ctx, q, store, handler, zerolog.Nop())
	require.ErrorIs(t, err, errJobFailed)
	require.Equal(t, jobs.JobStatusFailed, job.Status)
	require.Zero(t, job.MaxRetries)
	require.Zero(t, job.RetryCount)
	require.EqualValues(t, 1, calls.Load())
}

func TestRetrain_Timeout(t *testing.T) {
	q, store := newQueue(0)
	defer q.Close()

	handler := func(ctx context.Context, job *jobs.TrainModelJob) error {
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := retrain(ctx, q, store, handler, zerolog.Nop())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
