package predictor

import (
	"context"
	"errors"

	"github.com/dvloznov/budget-tracker/internal/jobs"
)

// HandleTrainJob runs Train for a queued job. ErrNoData is permanent since
// retrying cannot produce rows.
func (p *Predictor) HandleTrainJob(ctx context.Context, job *jobs.TrainModelJob) error {
	log := p.log.With().Str("job_id", job.JobID).Str("trigger", string(job.Trigger)).Logger()
	log.Info().Int("attempt", job.RetryCount+1).Msg("Processing train job")

	res, err := p.Train(ctx)
	if errors.Is(err, ErrNoData) {
		return jobs.Permanent(err)
	}
	if err != nil {
		return err
	}

	job.Rows = res.Rows
	return nil
}
