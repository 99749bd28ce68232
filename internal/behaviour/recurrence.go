// Package behaviour detects recurring payments and flags anomalous
// transactions. Both engines are pure over the transaction history they are
// given; only recurrence reconciliation touches a store.
package behaviour

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txengine/internal/config"
	"github.com/dvloznov/txengine/internal/domain"
	"github.com/dvloznov/txengine/internal/store"
)

// patternWindow is the accepted day-gap range for one recurrence pattern.
// Windows are checked tightest first so a 7-day cadence never reads as
// monthly.
type patternWindow struct {
	pattern domain.RecurrencePattern
	minDays int
	maxDays int
}

var patternWindows = []patternWindow{
	{domain.PatternWeekly, 5, 9},
	{domain.PatternFortnightly, 12, 16},
	{domain.PatternMonthly, 27, 34},
	{domain.PatternQuarterly, 85, 100},
	{domain.PatternAnnually, 355, 375},
}

// RecurrenceDetector finds repeating outbound payments per
// (merchant, account) pair and reconciles them against the recurring store.
type RecurrenceDetector struct {
	cfg   config.BehaviourConfig
	store store.RecurringStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewRecurrenceDetector(cfg config.BehaviourConfig, st store.RecurringStore, log zerolog.Logger) *RecurrenceDetector {
	return &RecurrenceDetector{cfg: cfg, store: st, log: log, now: time.Now}
}

// candidate is a detected recurrence before reconciliation.
type candidate struct {
	merchant  string
	accountID string
	pattern   domain.RecurrencePattern
	expected  float64
	variance  float64
	last      time.Time
	count     int
	txns      []*domain.UnifiedTransaction
}

// DetectForUser analyses the user's outbound history, updates the recurring
// store and marks the matched transactions in place. The returned slice
// holds the reconciled payments.
func (d *RecurrenceDetector) DetectForUser(ctx context.Context, userID string, txns []*domain.UnifiedTransaction) ([]*domain.RecurringPayment, error) {
	groups := groupOutbound(txns)

	var payments []*domain.RecurringPayment
	for _, group := range groups {
		cand, ok := d.analyse(group)
		if !ok {
			continue
		}

		payment, err := d.reconcile(ctx, userID, cand)
		if err != nil {
			return nil, fmt.Errorf("DetectForUser: reconciling %s: %w", cand.merchant, err)
		}

		for _, txn := range cand.txns {
			txn.IsRecurring = true
			txn.RecurrencePattern = payment.Pattern
			txn.RecurringGroupID = payment.ID
		}
		payments = append(payments, payment)
	}

	sort.Slice(payments, func(i, j int) bool {
		return payments[i].Merchant < payments[j].Merchant
	})
	return payments, nil
}

// groupOutbound buckets outbound transactions by (merchant, account),
// preserving a deterministic bucket order.
func groupOutbound(txns []*domain.UnifiedTransaction) [][]*domain.UnifiedTransaction {
	buckets := make(map[string][]*domain.UnifiedTransaction)
	var order []string
	for _, txn := range txns {
		if txn.Direction != domain.DirectionOut {
			continue
		}
		merchant := strings.TrimSpace(txn.BestMerchant())
		if merchant == "" {
			continue
		}
		key := strings.ToLower(merchant) + "\x00" + txn.AccountID
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], txn)
	}

	groups := make([][]*domain.UnifiedTransaction, 0, len(order))
	for _, key := range order {
		groups = append(groups, buckets[key])
	}
	return groups
}

// analyse decides whether one (merchant, account) group recurs.
func (d *RecurrenceDetector) analyse(group []*domain.UnifiedTransaction) (*candidate, bool) {
	if len(group) < d.cfg.MinOccurrences {
		return nil, false
	}

	sorted := make([]*domain.UnifiedTransaction, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	gaps := make([]int, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gap := int(math.Round(sorted[i].Date.Sub(sorted[i-1].Date).Hours() / 24))
		gaps = append(gaps, gap)
	}

	pattern, ok := d.matchPattern(gaps)
	if !ok {
		// Repeated spending with no cadence is still worth tracking once it
		// has happened a few times.
		if len(sorted) < 3 {
			return nil, false
		}
		pattern = domain.PatternIrregular
	}

	amounts := make([]float64, len(sorted))
	for i, txn := range sorted {
		amounts[i] = txn.Amount
	}
	mean, variance := amountVariance(amounts)
	if variance > 2*d.cfg.AmountVarianceThreshold {
		return nil, false
	}

	last := sorted[len(sorted)-1]
	return &candidate{
		merchant:  last.BestMerchant(),
		accountID: last.AccountID,
		pattern:   pattern,
		expected:  mean,
		variance:  variance,
		last:      last.Date,
		count:     len(sorted),
		txns:      sorted,
	}, true
}

// matchPattern returns the tightest window that fits at least GapMatchRatio
// of the gaps, each widened by the gap tolerance.
func (d *RecurrenceDetector) matchPattern(gaps []int) (domain.RecurrencePattern, bool) {
	if len(gaps) == 0 {
		return "", false
	}
	for _, w := range patternWindows {
		lo := w.minDays - d.cfg.GapToleranceDays
		hi := w.maxDays + d.cfg.GapToleranceDays
		matched := 0
		for _, gap := range gaps {
			if gap >= lo && gap <= hi {
				matched++
			}
		}
		if float64(matched)/float64(len(gaps)) >= d.cfg.GapMatchRatio {
			return w.pattern, true
		}
	}
	return "", false
}

// amountVariance returns the mean and the coefficient of variation
// (population standard deviation over mean), capped at 1.0.
func amountVariance(amounts []float64) (mean, cv float64) {
	if len(amounts) == 0 {
		return 0, 0
	}
	var sum float64
	for _, a := range amounts {
		sum += a
	}
	mean = sum / float64(len(amounts))
	if mean == 0 {
		return 0, 0
	}

	var sq float64
	for _, a := range amounts {
		sq += (a - mean) * (a - mean)
	}
	cv = math.Sqrt(sq/float64(len(amounts))) / mean
	if cv > 1.0 {
		cv = 1.0
	}
	return mean, cv
}

// reconcile creates or updates the stored payment for the candidate's
// (user, merchant, account) key.
func (d *RecurrenceDetector) reconcile(ctx context.Context, userID string, cand *candidate) (*domain.RecurringPayment, error) {
	next := cand.last.AddDate(0, 0, cand.pattern.DayOffset())
	now := d.now().UTC()

	existing, err := d.store.FindByKey(ctx, userID, cand.merchant, cand.accountID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		payment := &domain.RecurringPayment{
			UserID:          userID,
			Merchant:        cand.merchant,
			AccountID:       cand.accountID,
			Pattern:         cand.pattern,
			ExpectedAmount:  cand.expected,
			AmountVariance:  cand.variance,
			LastOccurrence:  cand.last,
			NextExpected:    next,
			OccurrenceCount: cand.count,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := d.store.Create(ctx, payment); err != nil {
			return nil, err
		}
		d.log.Info().Str("user_id", userID).Str("merchant", cand.merchant).
			Str("pattern", string(cand.pattern)).Msg("recurring payment detected")
		return payment, nil
	}

	existing.Pattern = cand.pattern
	existing.ExpectedAmount = cand.expected
	existing.AmountVariance = cand.variance
	existing.LastOccurrence = cand.last
	existing.NextExpected = next
	existing.OccurrenceCount = cand.count
	existing.IsActive = true
	existing.UpdatedAt = now
	if err := d.store.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}
