// Package pipeline chains the ingestion, categorisation and behavioural
// stages into one batch import flow. Each stage is a PipelineStep so the
// sequence stays easy to reorder and test in isolation.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txengine/internal/domain"
)

// PipelineStep is a single stage in the import pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	UserID    string
	AccountID string

	// CSV is the raw upload. Steps that ingest other shapes may instead
	// pre-populate Result.
	CSV io.Reader

	Result    *domain.ImportBatchResult
	History   []*domain.UnifiedTransaction
	Recurring []*domain.RecurringPayment
}

// Pipeline executes its steps in order, stopping at the first failure.
type Pipeline struct {
	steps []PipelineStep
	log   zerolog.Logger
}

func New(log zerolog.Logger, steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps, log: log}
}

// Run drives the state through every step. The state is mutated in place so
// a failed run still exposes whatever the earlier steps produced.
func (p *Pipeline) Run(ctx context.Context, state *PipelineState) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline: cancelled before %s: %w", step.Name(), err)
		}
		if err := step.Execute(ctx, state); err != nil {
			p.log.Error().Err(err).Str("step", step.Name()).Msg("pipeline step failed")
			return fmt.Errorf("pipeline: step %s: %w", step.Name(), err)
		}
		p.log.Debug().Str("step", step.Name()).Msg("pipeline step done")
	}
	return nil
}
