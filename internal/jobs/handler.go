package jobs

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txengine/internal/pipeline"
)

// NewImportHandler returns the JobHandler that drives queued CSV imports
// through the pipeline. The batch result is written back onto the job so
// polling clients can read it once the queue marks the job complete.
func NewImportHandler(p *pipeline.Pipeline, log zerolog.Logger) JobHandler {
	return func(ctx context.Context, job Job) error {
		csvJob, ok := job.(*ImportCSVJob)
		if !ok {
			return fmt.Errorf("import handler: unexpected job type %s", job.GetType())
		}

		state := &pipeline.PipelineState{
			UserID:    csvJob.UserID,
			AccountID: csvJob.AccountID,
			CSV:       bytes.NewReader(csvJob.Payload),
		}
		if err := p.Run(ctx, state); err != nil {
			return fmt.Errorf("import handler: job %s: %w", csvJob.JobID, err)
		}

		csvJob.Result = state.Result
		log.Info().Str("job_id", csvJob.JobID).Str("user_id", csvJob.UserID).
			Int("imported", state.Result.Imported).
			Int("duplicates", state.Result.Duplicates).
			Int("errors", state.Result.Errors).
			Msg("csv import job finished")
		return nil
	}
}
