// Package ingest turns heterogeneous raw transaction records into the
// canonical UnifiedTransaction shape. Failures are per-record: a bad row
// produces a field-level error and never aborts a batch.
package ingest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/txengine/internal/domain"
)

// FieldError is a per-record normalisation failure attributable to one
// input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

// dateLayouts are tried in order. ISO forms first, then the common
// day/month/year local formats.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
}

// ParseDate parses an ISO or day/month/year date string.
func ParseDate(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date format %q", value)
}

// Normaliser converts raw inputs into unified transactions. It is stateless
// apart from the merchant alias table and safe for concurrent use.
type Normaliser struct {
	merchants *MerchantCleaner
}

// NewNormaliser creates a normaliser with the built-in merchant alias table.
func NewNormaliser() *Normaliser {
	return &Normaliser{merchants: NewMerchantCleaner(nil)}
}

// NewNormaliserWithAliases creates a normaliser with extra merchant aliases
// layered over the built-in table.
func NewNormaliserWithAliases(aliases map[string]string) *Normaliser {
	return &Normaliser{merchants: NewMerchantCleaner(aliases)}
}

// Normalise converts a single raw record into a UnifiedTransaction, or
// fails with a *FieldError describing the offending field.
func (n *Normaliser) Normalise(userID string, raw domain.RawTransactionInput) (*domain.UnifiedTransaction, error) {
	date, err := ParseDate(raw.Date)
	if err != nil {
		return nil, &FieldError{Field: "date", Message: err.Error()}
	}

	if strings.TrimSpace(raw.Description) == "" {
		return nil, &FieldError{Field: "description", Message: "description is required"}
	}

	amount := raw.Amount
	direction := domain.DirectionIn
	if raw.Direction != nil {
		// Explicit direction wins; amount is taken as magnitude.
		direction = *raw.Direction
	} else if amount < 0 {
		direction = domain.DirectionOut
	}
	amount = math.Abs(amount)

	merchantRaw := raw.MerchantRaw
	if merchantRaw == "" {
		merchantRaw = raw.Description
	}
	merchant := n.merchants.Clean(merchantRaw)

	source := raw.Source
	if source == "" {
		source = domain.SourceManual
	}

	txn := &domain.UnifiedTransaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		AccountID:     raw.AccountID,
		Date:          date,
		Amount:        amount,
		Direction:     direction,
		MerchantRaw:   merchantRaw,
		Merchant:      merchant,
		Description:   strings.TrimSpace(raw.Description),
		Source:        source,
		ExternalID:    raw.ExternalID,
		ImportBatchID: raw.ImportBatchID,
		CreatedAt:     time.Now(),
	}
	txn.DedupHash = Fingerprint(txn.AccountID, txn.Date, txn.Amount, txn.Description)

	return txn, nil
}

// FindDuplicateClusters groups transactions by dedup fingerprint and
// returns every cluster with more than one member. How duplicates are
// resolved (skip vs. mark) is left to the caller.
func FindDuplicateClusters(txns []*domain.UnifiedTransaction) []domain.DuplicateCluster {
	byHash := make(map[string][]*domain.UnifiedTransaction)
	order := make([]string, 0)
	for _, t := range txns {
		if _, seen := byHash[t.DedupHash]; !seen {
			order = append(order, t.DedupHash)
		}
		byHash[t.DedupHash] = append(byHash[t.DedupHash], t)
	}

	var clusters []domain.DuplicateCluster
	for _, hash := range order {
		group := byHash[hash]
		if len(group) > 1 {
			clusters = append(clusters, domain.DuplicateCluster{
				DedupHash:    hash,
				Transactions: group,
			})
		}
	}
	return clusters
}
