// Command worker retrains the model once through the job queue, with the
// queue's retry policy, and exits. Run it from cron or a similar runner.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/app"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/budget-tracker/internal/logger"
)

func main() {
	timeout := flag.Duration("timeout", 30*time.Minute, "Give up if training has not finished by then")
	retries := flag.Int("retries", inmemory.DefaultMaxRetries, "Retries after a transient failure, 0 disables them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Options{})
		fallback.Fatal().Err(err).Msg("Failed to load config")
	}
	log, err := app.NewLogger(cfg, "worker")
	if err != nil {
		fallback := logger.New(logger.Options{})
		fallback.Fatal().Err(err).Msg("Invalid LOG_LEVEL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open services")
	}

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(1, 1, jobStore, log)
	queue.SetRetryBackoff(cfg.Jobs.RetryBackoff)
	queue.SetMaxRetries(*retries)

	job, runErr := retrain(ctx, queue, jobStore, a.Predictor.HandleTrainJob, log)

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelClose()
	if err := queue.Stop(closeCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := a.Close(closeCtx); err != nil {
		log.Error().Err(err).Msg("Error closing services")
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("Retrain failed")
		os.Exit(1)
	}
	log.Info().Str("job_id", job.JobID).Int("rows", job.Rows).Int("retries", job.RetryCount).Msg("Retrain completed")
}

var errJobFailed = errors.New("training job failed")

// retrain publishes one training job, runs the queue and polls the store
// until the job is done or ctx expires.
func retrain(ctx context.Context, queue *inmemory.Queue, store jobs.JobStore, handler jobs.JobHandler, log zerolog.Logger) (*jobs.TrainModelJob, error) {
	if err := queue.Start(ctx, handler); err != nil {
		return nil, err
	}

	job := &jobs.TrainModelJob{Trigger: jobs.TriggerWorker}
	if err := queue.PublishTrainModel(ctx, job); err != nil {
		return nil, err
	}
	log.Info().Str("job_id", job.JobID).Msg("Retrain enqueued")

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		current, err := store.GetJob(ctx, job.JobID)
		if err != nil {
			return nil, err
		}
		if !current.Done() {
			continue
		}
		if current.Status == jobs.JobStatusFailed {
			return current, fmt.Errorf("%w: %s", errJobFailed, current.Error)
		}
		return current, nil
	}
}
