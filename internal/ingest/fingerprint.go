package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// Fingerprint computes the stable deduplication hash for a transaction.
// It is a pure function of (accountID, date truncated to the calendar day,
// amount rendered to two decimals, description lower-cased with all
// whitespace removed). Two records with the same fingerprint are the same
// transaction regardless of source.
func Fingerprint(accountID string, date time.Time, amount float64, description string) string {
	day := date.Format("2006-01-02")
	amt := decimal.NewFromFloat(amount).StringFixed(2)

	var desc strings.Builder
	for _, r := range strings.ToLower(description) {
		if unicode.IsSpace(r) {
			continue
		}
		desc.WriteRune(r)
	}

	sum := sha256.Sum256([]byte(accountID + "|" + day + "|" + amt + "|" + desc.String()))
	return hex.EncodeToString(sum[:])
}
