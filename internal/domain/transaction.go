package domain

import (
	"time"
)

// Direction encodes which way money moved. Amounts are stored as absolute
// values; the direction carries the sign.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Source identifies where a raw transaction record came from.
type Source string

const (
	SourceBank   Source = "BANK"
	SourceCSV    Source = "CSV"
	SourceOFX    Source = "OFX"
	SourceManual Source = "MANUAL"
)

// UnifiedTransaction is the canonical, fully-enriched transaction record.
// It is created by the ingestion normaliser, enriched in place by the
// categorisation and behavioural engines, and immutable once persisted.
type UnifiedTransaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AccountID string    `json:"account_id"`
	Date      time.Time `json:"date"`

	// Amount is always non-negative; Direction encodes the sign.
	Amount    float64   `json:"amount"`
	Direction Direction `json:"direction"`

	MerchantRaw string `json:"merchant_raw"`
	Merchant    string `json:"merchant"` // standardised
	Description string `json:"description"`

	Category       *Category      `json:"category,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	CategorySource CategorySource `json:"category_source,omitempty"`

	IsRecurring       bool              `json:"is_recurring"`
	RecurrencePattern RecurrencePattern `json:"recurrence_pattern,omitempty"`
	RecurringGroupID  string            `json:"recurring_group_id,omitempty"`

	Anomalies []AnomalyType `json:"anomalies,omitempty"`

	Source        Source `json:"source"`
	ExternalID    string `json:"external_id,omitempty"`
	ImportBatchID string `json:"import_batch_id,omitempty"`

	// DedupHash is a pure function of (account, day, amount, normalised
	// description); two records with the same hash are the same transaction
	// regardless of source.
	DedupHash string `json:"dedup_hash"`

	CreatedAt time.Time `json:"created_at"`
}

// BestMerchant returns the standardised merchant if present, falling back to
// the raw merchant string and finally the description.
func (t *UnifiedTransaction) BestMerchant() string {
	if t.Merchant != "" {
		return t.Merchant
	}
	if t.MerchantRaw != "" {
		return t.MerchantRaw
	}
	return t.Description
}

// SignedAmount reconstructs the conventional signed amount (OUT = negative).
func (t *UnifiedTransaction) SignedAmount() float64 {
	if t.Direction == DirectionOut {
		return -t.Amount
	}
	return t.Amount
}

// RawTransactionInput is one heterogeneous record as supplied by a
// collaborator (bank feed, CSV row, manual entry) before normalisation.
type RawTransactionInput struct {
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Source      Source  `json:"source"`

	ExternalID           string     `json:"external_id,omitempty"`
	AccountID            string     `json:"account_id,omitempty"`
	MerchantRaw          string     `json:"merchant_raw,omitempty"`
	MerchantCategoryCode string     `json:"merchant_category_code,omitempty"`
	PostDate             string     `json:"post_date,omitempty"`
	Direction            *Direction `json:"direction,omitempty"`
	ImportBatchID        string     `json:"import_batch_id,omitempty"`
}

// RowError is a soft, per-record import failure. Rows fail individually;
// the batch never aborts because of one bad row.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ImportBatchResult summarises one batch import.
type ImportBatchResult struct {
	BatchID      string                `json:"batch_id"`
	TotalRows    int                   `json:"total_rows"`
	Imported     int                   `json:"imported"`
	Duplicates   int                   `json:"duplicates"`
	Errors       int                   `json:"errors"`
	ErrorDetails []RowError            `json:"error_details,omitempty"`
	Transactions []*UnifiedTransaction `json:"transactions"`
}

// DuplicateCluster groups transactions within one batch that share a dedup
// fingerprint. Resolution (skip vs. mark) is the caller's policy.
type DuplicateCluster struct {
	DedupHash    string                `json:"dedup_hash"`
	Transactions []*UnifiedTransaction `json:"transactions"`
}
