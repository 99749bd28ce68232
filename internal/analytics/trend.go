package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/dvloznov/txengine/internal/domain"
)

// linearRegression fits y = a + b*x over x = 0..n-1 and returns the slope
// together with the goodness of fit.
func linearRegression(points []float64) (slope, rSquared float64) {
	n := float64(len(points))
	if n < 2 {
		return 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range points {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i, y := range points {
		fit := intercept + slope*float64(i)
		ssRes += (y - fit) * (y - fit)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return slope, 0
	}
	rSquared = 1 - ssRes/ssTot
	if rSquared < 0 {
		rSquared = 0
	}
	if rSquared > 1 {
		rSquared = 1
	}
	return slope, rSquared
}

// Trend regresses monthly spend over the trailing trend window. Fewer than
// two months of data reads as stable with zero confidence.
func (s *Service) Trend(txns []*domain.UnifiedTransaction) domain.TrendAnalysis {
	spends := monthlySpends(s.MonthlyTotals(txns))
	if len(spends) > s.cfg.TrendMonths {
		spends = spends[len(spends)-s.cfg.TrendMonths:]
	}
	return s.trendOf(spends)
}

func (s *Service) trendOf(spends []float64) domain.TrendAnalysis {
	if len(spends) < 2 {
		return domain.TrendAnalysis{Direction: domain.TrendStable, DataPoints: len(spends)}
	}

	slope, rSquared := linearRegression(spends)

	var mean float64
	for _, v := range spends {
		mean += v
	}
	mean /= float64(len(spends))

	analysis := domain.TrendAnalysis{
		Direction:     domain.TrendStable,
		MonthlyChange: slope,
		Confidence:    rSquared,
		DataPoints:    len(spends),
	}
	if mean != 0 {
		analysis.PercentChange = slope / mean * 100
	}

	relative := 0.0
	if mean != 0 {
		relative = math.Abs(slope / mean)
	}
	switch {
	case relative < s.cfg.StableThreshold:
		analysis.Direction = domain.TrendStable
	case slope > 0:
		analysis.Direction = domain.TrendIncreasing
	default:
		analysis.Direction = domain.TrendDecreasing
	}
	return analysis
}

// Volatility is the coefficient of variation of monthly spend. Less than
// two months of data, or a zero mean, reads as zero.
func (s *Service) Volatility(txns []*domain.UnifiedTransaction) float64 {
	return volatilityOf(monthlySpends(s.MonthlyTotals(txns)))
}

func volatilityOf(spends []float64) float64 {
	if len(spends) < 2 {
		return 0
	}
	var mean float64
	for _, v := range spends {
		mean += v
	}
	mean /= float64(len(spends))
	if mean == 0 {
		return 0
	}

	var sq float64
	for _, v := range spends {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq/float64(len(spends))) / mean
}

// Drift compares per-category average monthly spend across two
// back-to-back windows ending at the most recent month, reporting
// categories whose spend moved past the drift threshold, largest shift
// first.
func (s *Service) Drift(txns []*domain.UnifiedTransaction) []domain.CategoryDrift {
	if len(txns) == 0 {
		return nil
	}

	latest := txns[0].Date
	for _, txn := range txns[1:] {
		if txn.Date.After(latest) {
			latest = txn.Date
		}
	}
	anchor := time.Date(latest.Year(), latest.Month(), 1, 0, 0, 0, 0, time.UTC)

	window := s.cfg.DriftWindowMonths
	currentStart := anchor.AddDate(0, -(window - 1), 0)
	previousStart := currentStart.AddDate(0, -window, 0)

	current := categoryTotalsBetween(txns, currentStart, anchor.AddDate(0, 1, 0))
	previous := categoryTotalsBetween(txns, previousStart, currentStart)

	categories := make(map[string]struct{})
	for cat := range current {
		categories[cat] = struct{}{}
	}
	for cat := range previous {
		categories[cat] = struct{}{}
	}

	var drifts []domain.CategoryDrift
	for cat := range categories {
		prevAvg := previous[cat] / float64(window)
		curAvg := current[cat] / float64(window)

		var changePct float64
		switch {
		case prevAvg == 0 && curAvg == 0:
			continue
		case prevAvg == 0:
			changePct = 100
		default:
			changePct = (curAvg - prevAvg) / prevAvg * 100
		}
		if math.Abs(changePct) < s.cfg.DriftThreshold*100 {
			continue
		}

		direction := domain.TrendIncreasing
		if changePct < 0 {
			direction = domain.TrendDecreasing
		}
		drifts = append(drifts, domain.CategoryDrift{
			Category:      cat,
			PreviousAvg:   prevAvg,
			CurrentAvg:    curAvg,
			ChangePercent: changePct,
			Direction:     direction,
		})
	}

	sort.Slice(drifts, func(i, j int) bool {
		ai, aj := math.Abs(drifts[i].ChangePercent), math.Abs(drifts[j].ChangePercent)
		if ai != aj {
			return ai > aj
		}
		return drifts[i].Category < drifts[j].Category
	})
	return drifts
}

// categoryTotalsBetween sums outbound spend per category for dates in
// [from, to).
func categoryTotalsBetween(txns []*domain.UnifiedTransaction, from, to time.Time) map[string]float64 {
	totals := make(map[string]float64)
	for _, txn := range txns {
		if txn.Direction != domain.DirectionOut {
			continue
		}
		if txn.Date.Before(from) || !txn.Date.Before(to) {
			continue
		}
		totals[categoryLabel(txn)] += txn.Amount
	}
	return totals
}
