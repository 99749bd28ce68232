package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/txengine/internal/domain"
)

// CSV column layout, fixed by contract: date, amount, description, then
// optional reference, balance, category.
const (
	csvColDate        = 0
	csvColAmount      = 1
	csvColDescription = 2
	csvColReference   = 3
	csvMinFields      = 3
)

// CSVImporter parses bank-export CSV batches into unified transactions.
type CSVImporter struct {
	normaliser *Normaliser
}

// NewCSVImporter creates an importer backed by the given normaliser.
func NewCSVImporter(n *Normaliser) *CSVImporter {
	return &CSVImporter{normaliser: n}
}

// Import reads CSV rows, validates each independently, and returns a batch
// result. Row failures are accumulated as error details; the batch itself
// never aborts because of bad rows. All produced transactions share one
// batch id.
func (imp *CSVImporter) Import(r io.Reader, userID, accountID string) (*domain.ImportBatchResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are a per-row concern
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("Import: reading CSV: %w", err)
	}

	result := &domain.ImportBatchResult{
		BatchID: uuid.NewString(),
	}

	for i, rec := range records {
		rowNum := i + 1

		if i == 0 && looksLikeHeader(rec) {
			continue
		}
		result.TotalRows++

		txn, rowErr := imp.importRow(rec, rowNum, userID, accountID, result.BatchID)
		if rowErr != nil {
			result.Errors++
			result.ErrorDetails = append(result.ErrorDetails, *rowErr)
			continue
		}

		result.Imported++
		result.Transactions = append(result.Transactions, txn)
	}

	for _, cluster := range FindDuplicateClusters(result.Transactions) {
		result.Duplicates += len(cluster.Transactions) - 1
	}

	return result, nil
}

func (imp *CSVImporter) importRow(rec []string, rowNum int, userID, accountID, batchID string) (*domain.UnifiedTransaction, *domain.RowError) {
	if len(rec) < csvMinFields {
		return nil, &domain.RowError{
			Row:     rowNum,
			Message: fmt.Sprintf("expected at least %d columns, got %d", csvMinFields, len(rec)),
		}
	}

	if strings.TrimSpace(rec[csvColDate]) == "" {
		return nil, &domain.RowError{Row: rowNum, Field: "date", Message: "date is required"}
	}
	if strings.TrimSpace(rec[csvColDescription]) == "" {
		return nil, &domain.RowError{Row: rowNum, Field: "description", Message: "description is required"}
	}

	amount, err := parseAmount(rec[csvColAmount])
	if err != nil {
		return nil, &domain.RowError{Row: rowNum, Field: "amount", Message: err.Error()}
	}

	raw := domain.RawTransactionInput{
		Date:          rec[csvColDate],
		Amount:        amount,
		Description:   rec[csvColDescription],
		Source:        domain.SourceCSV,
		AccountID:     accountID,
		ImportBatchID: batchID,
	}
	if len(rec) > csvColReference {
		raw.ExternalID = strings.TrimSpace(rec[csvColReference])
	}

	txn, err := imp.normaliser.Normalise(userID, raw)
	if err != nil {
		rowErr := &domain.RowError{Row: rowNum, Message: err.Error()}
		var fe *FieldError
		if errors.As(err, &fe) {
			rowErr.Field = fe.Field
			rowErr.Message = fe.Message
		}
		return nil, rowErr
	}
	return txn, nil
}

// parseAmount parses a CSV amount cell exactly, tolerating currency symbols
// and thousands separators.
func parseAmount(value string) (float64, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, fmt.Errorf("amount is required")
	}
	s = strings.NewReplacer("$", "", "£", "", "€", "", ",", "", " ", "").Replace(s)

	// Accounting-style negatives: (12.34)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	f, _ := d.Float64()
	return f, nil
}

// looksLikeHeader reports whether the first row is a column header rather
// than data: neither its date nor its amount cell parses.
func looksLikeHeader(rec []string) bool {
	if len(rec) < csvMinFields {
		return true
	}
	if _, err := ParseDate(rec[csvColDate]); err == nil {
		return false
	}
	if _, err := parseAmount(rec[csvColAmount]); err == nil {
		return false
	}
	return true
}
