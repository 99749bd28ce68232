package behaviour

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txengine/internal/config"
	"github.com/dvloznov/txengine/internal/domain"
)

// AnomalyScanner runs five independent checks over a batch of new
// transactions against the user's prior history. Checks only add signals;
// a flagged transaction is never rejected.
type AnomalyScanner struct {
	cfg config.BehaviourConfig
	log zerolog.Logger
}

func NewAnomalyScanner(cfg config.BehaviourConfig, log zerolog.Logger) *AnomalyScanner {
	return &AnomalyScanner{cfg: cfg, log: log}
}

// Scan annotates each batch transaction in place. history holds previously
// seen transactions and must not include the batch; recurring holds the
// user's known recurring payments for the price check.
func (s *AnomalyScanner) Scan(batch, history []*domain.UnifiedTransaction, recurring []*domain.RecurringPayment) {
	priorByMerchant := make(map[string][]*domain.UnifiedTransaction)
	for _, txn := range history {
		key := merchantKey(txn.BestMerchant())
		if key == "" {
			continue
		}
		priorByMerchant[key] = append(priorByMerchant[key], txn)
	}

	recurringByKey := make(map[string]*domain.RecurringPayment, len(recurring))
	for _, r := range recurring {
		recurringByKey[merchantKey(r.Merchant)+"\x00"+r.AccountID] = r
	}

	for i, txn := range batch {
		key := merchantKey(txn.BestMerchant())
		prior := priorByMerchant[key]

		if s.isDuplicate(txn, i, batch, prior) {
			addAnomaly(txn, domain.AnomalyDuplicate)
		}
		if s.isUnusualAmount(txn, prior) {
			addAnomaly(txn, domain.AnomalyUnusualAmount)
		}
		if key != "" && len(prior) == 0 && !hasEarlierInBatch(txn, i, batch, key) {
			addAnomaly(txn, domain.AnomalyNewMerchant)
		}
		if r, ok := recurringByKey[key+"\x00"+txn.AccountID]; ok && s.isPriceIncrease(txn, r) {
			addAnomaly(txn, domain.AnomalyPriceIncrease)
		}
		if s.isUnusualHour(txn) {
			addAnomaly(txn, domain.AnomalyTiming)
		}
	}
}

// isDuplicate looks for another transaction from the same merchant with a
// near-equal amount inside the duplicate window. Both members of an
// in-batch pair end up flagged because each sees the other.
func (s *AnomalyScanner) isDuplicate(txn *domain.UnifiedTransaction, idx int, batch, prior []*domain.UnifiedTransaction) bool {
	key := merchantKey(txn.BestMerchant())
	if key == "" {
		return false
	}

	near := func(other *domain.UnifiedTransaction) bool {
		if merchantKey(other.BestMerchant()) != key {
			return false
		}
		if math.Abs(other.Amount-txn.Amount) > s.cfg.DuplicateAmountDelta {
			return false
		}
		gap := txn.Date.Sub(other.Date)
		if gap < 0 {
			gap = -gap
		}
		return gap <= s.cfg.DuplicateWindow
	}

	for j, other := range batch {
		if j != idx && near(other) {
			return true
		}
	}
	for _, other := range prior {
		if near(other) {
			return true
		}
	}
	return false
}

// isUnusualAmount flags amounts far outside the merchant's prior
// distribution. With a flat history (zero deviation) any change at all is
// unusual.
func (s *AnomalyScanner) isUnusualAmount(txn *domain.UnifiedTransaction, prior []*domain.UnifiedTransaction) bool {
	if len(prior) < s.cfg.UnusualAmountMinHistory {
		return false
	}

	var sum float64
	for _, p := range prior {
		sum += p.Amount
	}
	mean := sum / float64(len(prior))

	var sq float64
	for _, p := range prior {
		sq += (p.Amount - mean) * (p.Amount - mean)
	}
	stddev := math.Sqrt(sq / float64(len(prior)))

	deviation := math.Abs(txn.Amount - mean)
	if stddev == 0 {
		return deviation > 0
	}
	return deviation > s.cfg.UnusualAmountSigma*stddev
}

func (s *AnomalyScanner) isPriceIncrease(txn *domain.UnifiedTransaction, r *domain.RecurringPayment) bool {
	if r.ExpectedAmount <= 0 {
		return false
	}
	return txn.Amount > r.ExpectedAmount*(1+s.cfg.PriceIncreaseThreshold)
}

// isUnusualHour flags transactions timestamped in the small hours. Records
// carrying only a date land on midnight and are never flagged.
func (s *AnomalyScanner) isUnusualHour(txn *domain.UnifiedTransaction) bool {
	hour := txn.Date.Hour()
	return hour >= s.cfg.UnusualHourStart && hour <= s.cfg.UnusualHourEnd
}

// hasEarlierInBatch reports whether another batch member from the same
// merchant carries a strictly earlier date, making txn not the merchant's
// first.
func hasEarlierInBatch(txn *domain.UnifiedTransaction, idx int, batch []*domain.UnifiedTransaction, key string) bool {
	for j, other := range batch {
		if j == idx {
			continue
		}
		if merchantKey(other.BestMerchant()) == key && other.Date.Before(txn.Date) {
			return true
		}
	}
	return false
}

func merchantKey(merchant string) string {
	return strings.ToLower(strings.TrimSpace(merchant))
}

func addAnomaly(txn *domain.UnifiedTransaction, a domain.AnomalyType) {
	for _, existing := range txn.Anomalies {
		if existing == a {
			return
		}
	}
	txn.Anomalies = append(txn.Anomalies, a)
}
