package paymentimport

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/rent-ledger/internal/jobs"
	"github.com/dvloznov/rent-ledger/internal/rents"
)

// Fetcher reads an uploaded file.
type Fetcher interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// Importer applies parsed payments to the ledgers.
type Importer interface {
	ImportPayments(ctx context.Context, payments []rents.BulkPayment) (*rents.ImportResult, error)
}

// Step is a single step of the import pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state across the pipeline steps.
type State struct {
	GCSURI string
	Data   []byte
	Parsed *ParseResult
	Result *rents.ImportResult
}

// FetchStep downloads the file named by GCSURI unless Data is already set.
type FetchStep struct {
	Storage Fetcher
}

func (s *FetchStep) Execute(ctx context.Context, state *State) error {
	if state.Data != nil {
		return nil
	}
	data, err := s.Storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		return err
	}
	state.Data = data
	return nil
}

// ParseStep parses the CSV bytes.
type ParseStep struct{}

func (s *ParseStep) Execute(ctx context.Context, state *State) error {
	parsed, err := Parse(bytes.NewReader(state.Data))
	if err != nil {
		return err
	}
	state.Parsed = parsed
	return nil
}

// ApplyStep settles the parsed payments.
type ApplyStep struct {
	Importer Importer
}

func (s *ApplyStep) Execute(ctx context.Context, state *State) error {
	result, err := s.Importer.ImportPayments(ctx, state.Parsed.Payments)
	if err != nil {
		return err
	}
	state.Result = result
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewImportPipeline creates the fetch, parse and apply pipeline.
func NewImportPipeline(storage Fetcher, importer Importer) *Pipeline {
	return NewPipeline(
		&FetchStep{Storage: storage},
		&ParseStep{},
		&ApplyStep{Importer: importer},
	)
}

// Summary folds parse errors and import failures into a job summary.
func (s *State) Summary(now time.Time) *jobs.ImportSummary {
	sum := &jobs.ImportSummary{ProcessedAt: now}
	if s.Parsed != nil {
		for _, e := range s.Parsed.Errors {
			sum.FailedRows = append(sum.FailedRows, jobs.RowFailure{Row: e.Row, TenantRef: e.Record[0], Error: e.Err})
		}
	}
	if s.Result != nil {
		sum.Successful = len(s.Result.Successful)
		sum.Duplicates = len(s.Result.Duplicates)
		for _, it := range s.Result.Failed {
			sum.FailedRows = append(sum.FailedRows, jobs.RowFailure{Row: it.Row, TenantRef: it.TenantRef, Error: it.Error})
		}
	}
	sum.Failed = len(sum.FailedRows)
	sortFailures(sum.FailedRows)
	return sum
}
