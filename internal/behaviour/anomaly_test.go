package behaviour

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/txengine/internal/domain"
)

func testScanner() *AnomalyScanner {
	return NewAnomalyScanner(testBehaviourConfig(), zerolog.New(io.Discard))
}

func outAt(merchant string, ts string, amount float64) *domain.UnifiedTransaction {
	d, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return &domain.UnifiedTransaction{
		UserID:    "user-1",
		AccountID: "acc-1",
		Merchant:  merchant,
		Date:      d,
		Amount:    amount,
		Direction: domain.DirectionOut,
	}
}

func TestAnomaly_DuplicateWithinBatch(t *testing.T) {
	a := outAt("Woolworths", "2024-03-01T10:00:00Z", 42.10)
	b := outAt("Woolworths", "2024-03-01T13:00:00Z", 42.10)

	testScanner().Scan([]*domain.UnifiedTransaction{a, b}, nil, nil)

	assert.Contains(t, a.Anomalies, domain.AnomalyDuplicate)
	assert.Contains(t, b.Anomalies, domain.AnomalyDuplicate)
}

func TestAnomaly_DuplicateAgainstHistory(t *testing.T) {
	prior := outAt("Woolworths", "2024-03-01T10:00:00Z", 42.10)
	txn := outAt("Woolworths", "2024-03-01T18:00:00Z", 42.10)

	testScanner().Scan([]*domain.UnifiedTransaction{txn}, []*domain.UnifiedTransaction{prior}, nil)

	assert.Contains(t, txn.Anomalies, domain.AnomalyDuplicate)
}

func TestAnomaly_NoDuplicateOutsideWindow(t *testing.T) {
	prior := outAt("Woolworths", "2024-03-01T10:00:00Z", 42.10)
	txn := outAt("Woolworths", "2024-03-03T10:00:00Z", 42.10)

	testScanner().Scan([]*domain.UnifiedTransaction{txn}, []*domain.UnifiedTransaction{prior}, nil)

	assert.NotContains(t, txn.Anomalies, domain.AnomalyDuplicate)
}

func TestAnomaly_NoDuplicateDifferentAmount(t *testing.T) {
	prior := outAt("Woolworths", "2024-03-01T10:00:00Z", 42.10)
	txn := outAt("Woolworths", "2024-03-01T12:00:00Z", 45.00)

	testScanner().Scan([]*domain.UnifiedTransaction{txn}, []*domain.UnifiedTransaction{prior}, nil)

	assert.NotContains(t, txn.Anomalies, domain.AnomalyDuplicate)
}

func TestAnomaly_UnusualAmount(t *testing.T) {
	var history []*domain.UnifiedTransaction
	for i := 0; i < 5; i++ {
		history = append(history, outAt("Corner Cafe", "2024-01-0"+string(rune('1'+i))+"T09:00:00Z", 50.00))
	}
	txn := outAt("Corner Cafe", "2024-02-01T09:00:00Z", 500.00)

	testScanner().Scan([]*domain.UnifiedTransaction{txn}, history, nil)

	assert.Contains(t, txn.Anomalies, domain.AnomalyUnusualAmount)
}

func TestAnomaly_UnusualAmountNeedsHistory(t *testing.T) {
	history := []*domain.UnifiedTransaction{
		outAt("Corner Cafe", "2024-01-01T09:00:00Z", 50.00),
		outAt("Corner Cafe", "2024-01-02T09:00:00Z", 50.00),
	}
	txn := outAt("Corner Cafe", "2024-02-01T09:00:00Z", 500.00)

	testScanner().Scan([]*domain.UnifiedTransaction{txn}, history, nil)

	assert.NotContains(t, txn.Anomalies, domain.AnomalyUnusualAmount)
}

func TestAnomaly_UnusualAmountWithinSigma(t *testing.T) {
	amounts := []float64{40, 45, 50, 55, 60}
	var history []*domain.UnifiedTransaction
	for i, a := range amounts {
		history = append(history, outAt("Corner Cafe", "2024-01-0"+string(rune('1'+i))+"T09:00:00Z", a))
	}
	txn := outAt("Corner Cafe", "2024-02-01T09:00:00Z", 58.00)

	testScanner().Scan([]*domain.UnifiedTransaction{txn}, history, nil)

	assert.NotContains(t, txn.Anomalies, domain.AnomalyUnusualAmount)
}

func TestAnomaly_NewMerchant(t *testing.T) {
	history := []*domain.UnifiedTransaction{
		outAt("Woolworths", "2024-01-01T09:00:00Z", 50.00),
	}
	known := outAt("Woolworths", "2024-02-01T09:00:00Z", 48.00)
	fresh := outAt("Mystery Shop", "2024-02-01T09:00:00Z", 10.00)

	testScanner().Scan([]*domain.UnifiedTransaction{known, fresh}, history, nil)

	assert.NotContains(t, known.Anomalies, domain.AnomalyNewMerchant)
	assert.Contains(t, fresh.Anomalies, domain.AnomalyNewMerchant)
}

func TestAnomaly_NewMerchantOnlyFirstInBatch(t *testing.T) {
	// Two visits to an unseen merchant arrive in the same batch; only the
	// earliest is the merchant's first transaction.
	first := outAt("Mystery Shop", "2024-02-01T09:00:00Z", 10.00)
	second := outAt("Mystery Shop", "2024-02-20T09:00:00Z", 12.00)

	testScanner().Scan([]*domain.UnifiedTransaction{second, first}, nil, nil)

	assert.Contains(t, first.Anomalies, domain.AnomalyNewMerchant)
	assert.NotContains(t, second.Anomalies, domain.AnomalyNewMerchant)
}

func TestAnomaly_PriceIncrease(t *testing.T) {
	recurring := []*domain.RecurringPayment{{
		UserID:         "user-1",
		Merchant:       "Netflix",
		AccountID:      "acc-1",
		Pattern:        domain.PatternMonthly,
		ExpectedAmount: 15.99,
	}}

	bumped := outAt("Netflix", "2024-03-01T09:00:00Z", 18.99)
	steady := outAt("Netflix", "2024-03-01T09:00:00Z", 16.50)

	history := []*domain.UnifiedTransaction{outAt("Netflix", "2024-02-01T09:00:00Z", 15.99)}
	testScanner().Scan([]*domain.UnifiedTransaction{bumped, steady}, history, recurring)

	assert.Contains(t, bumped.Anomalies, domain.AnomalyPriceIncrease)
	// 16.50 is within 5% of 15.99.
	assert.NotContains(t, steady.Anomalies, domain.AnomalyPriceIncrease)
}

func TestAnomaly_UnusualHour(t *testing.T) {
	tests := []struct {
		ts   string
		want bool
	}{
		{"2024-03-01T03:00:00Z", true},
		{"2024-03-01T01:00:00Z", true},
		{"2024-03-01T05:59:00Z", true},
		{"2024-03-01T00:30:00Z", false},
		{"2024-03-01T06:00:00Z", false},
		{"2024-03-01T14:00:00Z", false},
	}
	for _, tc := range tests {
		txn := outAt("Kebab Van", tc.ts, 12.00)
		testScanner().Scan([]*domain.UnifiedTransaction{txn}, []*domain.UnifiedTransaction{
			outAt("Kebab Van", "2024-01-01T12:00:00Z", 12.00),
		}, nil)
		if tc.want {
			assert.Contains(t, txn.Anomalies, domain.AnomalyTiming, tc.ts)
		} else {
			assert.NotContains(t, txn.Anomalies, domain.AnomalyTiming, tc.ts)
		}
	}
}

func TestAnomaly_SignalsAreIndependent(t *testing.T) {
	// One transaction can carry several signals at once.
	var history []*domain.UnifiedTransaction
	for i := 0; i < 5; i++ {
		history = append(history, outAt("Corner Cafe", "2024-01-0"+string(rune('1'+i))+"T09:00:00Z", 50.00))
	}
	txn := outAt("Corner Cafe", "2024-02-01T03:00:00Z", 500.00)

	testScanner().Scan([]*domain.UnifiedTransaction{txn}, history, nil)

	assert.Contains(t, txn.Anomalies, domain.AnomalyUnusualAmount)
	assert.Contains(t, txn.Anomalies, domain.AnomalyTiming)
	require.Len(t, txn.Anomalies, 2)
}
