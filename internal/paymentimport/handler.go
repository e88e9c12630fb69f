package paymentimport

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/rent-ledger/internal/jobs"
)

// NewJobHandler runs the pipeline for import jobs and stores the summary on the job.
func NewJobHandler(p *Pipeline, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportPaymentsJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		jobLog := log.With().Str("job_id", importJob.JobID).Str("gcs_uri", importJob.GCSURI).Logger()
		jobLog.Info().Msg("Processing import job")

		state := &State{GCSURI: importJob.GCSURI}
		if err := p.Execute(ctx, state); err != nil {
			jobLog.Error().Err(err).Msg("Import pipeline failed")
			return err
		}

		importJob.Result = state.Summary(time.Now().UTC())
		jobLog.Info().
			Int("successful", importJob.Result.Successful).
			Int("duplicates", importJob.Result.Duplicates).
			Int("failed", importJob.Result.Failed).
			Msg("Import job completed")
		return nil
	}
}

func sortFailures(rows []jobs.RowFailure) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Row < rows[j].Row })
}
