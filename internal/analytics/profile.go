package analytics

import (
	"sort"

	"github.com/dvloznov/txengine/internal/domain"
)

// Profile builds the consolidated behaviour snapshot for one user. The
// profile is recomputed from the full history on every call; it is never
// patched incrementally.
func (s *Service) Profile(userID string, txns []*domain.UnifiedTransaction) domain.SpendingProfile {
	totals := s.MonthlyTotals(txns)
	forecast := s.Forecast(txns)

	profile := domain.SpendingProfile{
		UserID:                userID,
		CategoryAverages:      make(map[string]domain.CategoryProfile),
		MonthlyPatterns:       totals,
		OverallVolatility:     volatilityOf(monthlySpends(totals)),
		PredictedMonthlySpend: forecast.PredictedSpend,
		PredictionConfidence:  forecast.Confidence,
		DataPointCount:        len(txns),
		GeneratedAt:           s.now().UTC(),
	}
	if len(totals) == 0 {
		return profile
	}

	months := len(totals)

	// Per-category monthly series, aligned to the overall month range so
	// quiet months count as zero.
	index := make(map[string]int, months)
	for i, mt := range totals {
		index[mt.Month] = i
	}
	series := make(map[string][]float64)
	counts := make(map[string]int)
	for _, txn := range txns {
		if txn.Direction != domain.DirectionOut {
			continue
		}
		cat := categoryLabel(txn)
		if _, ok := series[cat]; !ok {
			series[cat] = make([]float64, months)
		}
		series[cat][index[txn.Date.Format(monthLayout)]] += txn.Amount
		counts[cat]++
	}

	for cat, spends := range series {
		var total float64
		for _, v := range spends {
			total += v
		}
		trend := s.trendOf(spends)
		profile.CategoryAverages[cat] = domain.CategoryProfile{
			MonthlyAverage: round2(total / float64(months)),
			Trend:          trend.Direction,
			Volatility:     volatilityOf(spends),
			Count:          counts[cat],
		}
	}
	return profile
}

const (
	clusterCandidateLimit = 20
	clusterResultLimit    = 10
	clusterMinCount       = 2
)

// Clusters groups repeat outbound spend by merchant: the biggest merchants
// by total spend, keeping only those seen more than once.
func (s *Service) Clusters(txns []*domain.UnifiedTransaction) []domain.SpendingCluster {
	type agg struct {
		total  float64
		count  int
		months map[string]struct{}
	}
	byMerchant := make(map[string]*agg)
	for _, txn := range txns {
		if txn.Direction != domain.DirectionOut {
			continue
		}
		merchant := txn.BestMerchant()
		if merchant == "" {
			continue
		}
		a, ok := byMerchant[merchant]
		if !ok {
			a = &agg{months: make(map[string]struct{})}
			byMerchant[merchant] = a
		}
		a.total += txn.Amount
		a.count++
		a.months[txn.Date.Format(monthLayout)] = struct{}{}
	}

	clusters := make([]domain.SpendingCluster, 0, len(byMerchant))
	for merchant, a := range byMerchant {
		clusters = append(clusters, domain.SpendingCluster{
			Merchant:        merchant,
			TotalSpend:      round2(a.total),
			Count:           a.count,
			AvgMonthlySpend: round2(a.total / float64(len(a.months))),
		})
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].TotalSpend != clusters[j].TotalSpend {
			return clusters[i].TotalSpend > clusters[j].TotalSpend
		}
		return clusters[i].Merchant < clusters[j].Merchant
	})

	if len(clusters) > clusterCandidateLimit {
		clusters = clusters[:clusterCandidateLimit]
	}

	kept := clusters[:0]
	for _, c := range clusters {
		if c.Count >= clusterMinCount {
			kept = append(kept, c)
		}
	}
	if len(kept) > clusterResultLimit {
		kept = kept[:clusterResultLimit]
	}
	return kept
}
