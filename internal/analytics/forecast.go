package analytics

import (
	"math"

	"github.com/dvloznov/txengine/internal/domain"
)

// Forecast predicts next month's spend from a linearly weighted moving
// average of the trailing months, nudged by the regression slope. The
// prediction never goes negative.
func (s *Service) Forecast(txns []*domain.UnifiedTransaction) domain.MonthlyForecast {
	spends := monthlySpends(s.MonthlyTotals(txns))
	if len(spends) > s.cfg.TrendMonths {
		spends = spends[len(spends)-s.cfg.TrendMonths:]
	}

	if len(spends) == 0 {
		return domain.MonthlyForecast{
			CategoryBreakdown: map[string]float64{},
			Factors:           []string{"no spending history"},
		}
	}

	// Recent months count for more: weights 1..n oldest to newest.
	var weighted, weightSum float64
	for i, spend := range spends {
		w := float64(i + 1)
		weighted += spend * w
		weightSum += w
	}
	predicted := weighted / weightSum

	trend := s.trendOf(spends)
	if trend.Direction != domain.TrendStable {
		predicted += trend.MonthlyChange
	}
	if predicted < 0 {
		predicted = 0
	}

	volatility := volatilityOf(spends)

	historyWeight := float64(len(spends)) / 6.0
	if historyWeight > 1 {
		historyWeight = 1
	}
	confidence := historyWeight * (1 / (1 + volatility))
	if confidence > 1 {
		confidence = 1
	}

	var factors []string
	if trend.Direction == domain.TrendIncreasing {
		factors = append(factors, "spending is trending up")
	}
	if trend.Direction == domain.TrendDecreasing {
		factors = append(factors, "spending is trending down")
	}
	if volatility > s.cfg.HighVolatility {
		factors = append(factors, "high month-to-month volatility")
	}
	if len(spends) < s.cfg.ForecastMinMonths {
		factors = append(factors, "limited history")
	}

	return domain.MonthlyForecast{
		PredictedSpend:    round2(predicted),
		Confidence:        confidence,
		CategoryBreakdown: s.categoryBreakdown(txns),
		Factors:           factors,
	}
}

// categoryBreakdown is the average monthly spend per category over the
// trailing rolling-average window.
func (s *Service) categoryBreakdown(txns []*domain.UnifiedTransaction) map[string]float64 {
	totals := s.MonthlyTotals(txns)
	if len(totals) == 0 {
		return map[string]float64{}
	}

	window := s.cfg.RollingAverageMonths
	if window > len(totals) {
		window = len(totals)
	}
	fromMonth := totals[len(totals)-window].Month

	breakdown := make(map[string]float64)
	for _, txn := range txns {
		if txn.Direction != domain.DirectionOut {
			continue
		}
		if txn.Date.Format(monthLayout) < fromMonth {
			continue
		}
		breakdown[categoryLabel(txn)] += txn.Amount
	}
	for cat, total := range breakdown {
		breakdown[cat] = round2(total / float64(window))
	}
	return breakdown
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
