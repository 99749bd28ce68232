package domain

import "time"

// RecurrencePattern names the detected repeat interval of a payment.
type RecurrencePattern string

const (
	PatternWeekly      RecurrencePattern = "WEEKLY"
	PatternFortnightly RecurrencePattern = "FORTNIGHTLY"
	PatternMonthly     RecurrencePattern = "MONTHLY"
	PatternQuarterly   RecurrencePattern = "QUARTERLY"
	PatternAnnually    RecurrencePattern = "ANNUALLY"
	PatternIrregular   RecurrencePattern = "IRREGULAR"
)

// DayOffset returns the fixed day offset used to predict the next
// occurrence. IRREGULAR (and anything unknown) defaults to 30.
func (p RecurrencePattern) DayOffset() int {
	switch p {
	case PatternWeekly:
		return 7
	case PatternFortnightly:
		return 14
	case PatternMonthly:
		return 30
	case PatternQuarterly:
		return 91
	case PatternAnnually:
		return 365
	default:
		return 30
	}
}

// RecurringPayment is a detected recurring obligation for one
// (user, merchant, account) triple. It is created once at least two
// occurrences exist and a pattern is detected, then updated in place on each
// new matching occurrence.
type RecurringPayment struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Merchant  string `json:"merchant"`
	AccountID string `json:"account_id"`

	Pattern        RecurrencePattern `json:"pattern"`
	ExpectedAmount float64           `json:"expected_amount"`
	// AmountVariance is the coefficient of variation of observed amounts,
	// capped at 1.0.
	AmountVariance  float64   `json:"amount_variance"`
	LastOccurrence  time.Time `json:"last_occurrence"`
	NextExpected    time.Time `json:"next_expected"`
	OccurrenceCount int       `json:"occurrence_count"`

	IsActive bool `json:"is_active"`
	IsPaused bool `json:"is_paused"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnomalyType is an independent boolean signal attached to a transaction.
// A transaction may carry several.
type AnomalyType string

const (
	AnomalyDuplicate     AnomalyType = "DUPLICATE"
	AnomalyUnusualAmount AnomalyType = "UNUSUAL_AMOUNT"
	AnomalyNewMerchant   AnomalyType = "NEW_MERCHANT"
	AnomalyPriceIncrease AnomalyType = "PRICE_INCREASE"
	AnomalyTiming        AnomalyType = "TIMING_ANOMALY"
)
