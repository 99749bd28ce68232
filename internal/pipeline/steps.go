package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/txengine/internal/behaviour"
	"github.com/dvloznov/txengine/internal/categorise"
	"github.com/dvloznov/txengine/internal/domain"
	"github.com/dvloznov/txengine/internal/ingest"
	"github.com/dvloznov/txengine/internal/store"
)

// ImportCSVStep parses and normalises the uploaded CSV into the batch
// result.
type ImportCSVStep struct {
	Importer *ingest.CSVImporter
}

func (s *ImportCSVStep) Name() string { return "import_csv" }

func (s *ImportCSVStep) Execute(_ context.Context, state *PipelineState) error {
	if state.CSV == nil {
		return fmt.Errorf("ImportCSVStep: no csv source on state")
	}
	result, err := s.Importer.Import(state.CSV, state.UserID, state.AccountID)
	if err != nil {
		return fmt.Errorf("ImportCSVStep: %w", err)
	}
	state.Result = result
	return nil
}

// LoadHistoryStep pulls the user's persisted transactions so the later
// stages can compare the batch against them.
type LoadHistoryStep struct {
	Transactions store.TransactionStore
}

func (s *LoadHistoryStep) Name() string { return "load_history" }

func (s *LoadHistoryStep) Execute(ctx context.Context, state *PipelineState) error {
	history, err := s.Transactions.ListForUser(ctx, state.UserID)
	if err != nil {
		return fmt.Errorf("LoadHistoryStep: %w", err)
	}
	state.History = history
	return nil
}

// DeduplicateStep drops batch transactions whose fingerprint is already
// persisted. Dropped rows count toward the batch duplicate total.
type DeduplicateStep struct {
	Transactions store.TransactionStore
}

func (s *DeduplicateStep) Name() string { return "deduplicate" }

func (s *DeduplicateStep) Execute(ctx context.Context, state *PipelineState) error {
	kept := state.Result.Transactions[:0]
	for _, txn := range state.Result.Transactions {
		exists, err := s.Transactions.ExistsByHash(ctx, state.UserID, txn.DedupHash)
		if err != nil {
			return fmt.Errorf("DeduplicateStep: %w", err)
		}
		if exists {
			state.Result.Duplicates++
			state.Result.Imported--
			continue
		}
		kept = append(kept, txn)
	}
	state.Result.Transactions = kept
	return nil
}

// CategoriseStep resolves a category for every surviving transaction.
type CategoriseStep struct {
	Engine *categorise.Engine
}

func (s *CategoriseStep) Name() string { return "categorise" }

func (s *CategoriseStep) Execute(ctx context.Context, state *PipelineState) error {
	for _, txn := range state.Result.Transactions {
		s.Engine.Apply(ctx, txn)
	}
	return nil
}

// DetectRecurrenceStep re-runs recurrence detection over the combined
// history and batch, marking matched transactions and refreshing the
// recurring store.
type DetectRecurrenceStep struct {
	Detector *behaviour.RecurrenceDetector
}

func (s *DetectRecurrenceStep) Name() string { return "detect_recurrence" }

func (s *DetectRecurrenceStep) Execute(ctx context.Context, state *PipelineState) error {
	combined := make([]*domain.UnifiedTransaction, 0, len(state.History)+len(state.Result.Transactions))
	combined = append(combined, state.History...)
	combined = append(combined, state.Result.Transactions...)

	recurring, err := s.Detector.DetectForUser(ctx, state.UserID, combined)
	if err != nil {
		return fmt.Errorf("DetectRecurrenceStep: %w", err)
	}
	state.Recurring = recurring
	return nil
}

// ScanAnomaliesStep annotates the batch with anomaly signals.
type ScanAnomaliesStep struct {
	Scanner *behaviour.AnomalyScanner
}

func (s *ScanAnomaliesStep) Name() string { return "scan_anomalies" }

func (s *ScanAnomaliesStep) Execute(_ context.Context, state *PipelineState) error {
	s.Scanner.Scan(state.Result.Transactions, state.History, state.Recurring)
	return nil
}

// PersistStep appends the enriched batch to the transaction store.
type PersistStep struct {
	Transactions store.TransactionStore
}

func (s *PersistStep) Name() string { return "persist" }

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Result.Transactions) == 0 {
		return nil
	}
	if err := s.Transactions.Append(ctx, state.Result.Transactions); err != nil {
		return fmt.Errorf("PersistStep: %w", err)
	}
	return nil
}

// ImportDeps bundles everything the standard import flow needs.
type ImportDeps struct {
	Importer     *ingest.CSVImporter
	Engine       *categorise.Engine
	Detector     *behaviour.RecurrenceDetector
	Scanner      *behaviour.AnomalyScanner
	Transactions store.TransactionStore
}

// ImportSteps is the canonical CSV import sequence.
func ImportSteps(deps ImportDeps) []PipelineStep {
	return []PipelineStep{
		&ImportCSVStep{Importer: deps.Importer},
		&LoadHistoryStep{Transactions: deps.Transactions},
		&DeduplicateStep{Transactions: deps.Transactions},
		&CategoriseStep{Engine: deps.Engine},
		&DetectRecurrenceStep{Detector: deps.Detector},
		&ScanAnomaliesStep{Scanner: deps.Scanner},
		&PersistStep{Transactions: deps.Transactions},
	}
}
