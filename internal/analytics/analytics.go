// Package analytics derives summaries, trends and forecasts from a user's
// transaction history. Every computation is pure over the slice it is
// given; nothing here touches a store.
package analytics

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txengine/internal/config"
	"github.com/dvloznov/txengine/internal/domain"
)

const monthLayout = "2006-01"

// summaryRankLimit caps the category and merchant rankings in a summary.
const summaryRankLimit = 10

// Service computes analytics over transaction histories using the
// configured window sizes and thresholds.
type Service struct {
	cfg config.AnalyticsConfig
	log zerolog.Logger
	now func() time.Time
}

func NewService(cfg config.AnalyticsConfig, log zerolog.Logger) *Service {
	return &Service{cfg: cfg, log: log, now: time.Now}
}

// Summary totals activity inside [from, to] and ranks the top ten
// categories and merchants by outgoing spend.
func (s *Service) Summary(txns []*domain.UnifiedTransaction, from, to time.Time) domain.SpendingSummary {
	summary := domain.SpendingSummary{From: from, To: to}

	catTotals := make(map[string]*domain.CategoryTotal)
	merchTotals := make(map[string]*domain.MerchantTotal)

	for _, txn := range txns {
		if txn.Date.Before(from) || txn.Date.After(to) {
			continue
		}
		summary.Count++

		if txn.Direction == domain.DirectionIn {
			summary.TotalIn += txn.Amount
			continue
		}
		summary.TotalOut += txn.Amount

		cat := categoryLabel(txn)
		ct, ok := catTotals[cat]
		if !ok {
			ct = &domain.CategoryTotal{Category: cat}
			catTotals[cat] = ct
		}
		ct.Total += txn.Amount
		ct.Count++

		merchant := txn.BestMerchant()
		if merchant != "" {
			mt, ok := merchTotals[merchant]
			if !ok {
				mt = &domain.MerchantTotal{Merchant: merchant}
				merchTotals[merchant] = mt
			}
			mt.Total += txn.Amount
			mt.Count++
		}
	}

	summary.NetFlow = summary.TotalIn - summary.TotalOut

	for _, ct := range catTotals {
		if summary.TotalOut > 0 {
			ct.Percentage = ct.Total / summary.TotalOut * 100
		}
		summary.Categories = append(summary.Categories, *ct)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		if summary.Categories[i].Total != summary.Categories[j].Total {
			return summary.Categories[i].Total > summary.Categories[j].Total
		}
		return summary.Categories[i].Category < summary.Categories[j].Category
	})
	if len(summary.Categories) > summaryRankLimit {
		summary.Categories = summary.Categories[:summaryRankLimit]
	}

	for _, mt := range merchTotals {
		summary.Merchants = append(summary.Merchants, *mt)
	}
	sort.Slice(summary.Merchants, func(i, j int) bool {
		if summary.Merchants[i].Total != summary.Merchants[j].Total {
			return summary.Merchants[i].Total > summary.Merchants[j].Total
		}
		return summary.Merchants[i].Merchant < summary.Merchants[j].Merchant
	})
	if len(summary.Merchants) > summaryRankLimit {
		summary.Merchants = summary.Merchants[:summaryRankLimit]
	}

	return summary
}

// MonthlyTotals rolls the history up by calendar month, padding interior
// months with zeros so month indexes stay contiguous for regression.
func (s *Service) MonthlyTotals(txns []*domain.UnifiedTransaction) []domain.MonthlyTotal {
	if len(txns) == 0 {
		return nil
	}

	byMonth := make(map[string]*domain.MonthlyTotal)
	var first, last time.Time
	for i, txn := range txns {
		if i == 0 || txn.Date.Before(first) {
			first = txn.Date
		}
		if i == 0 || txn.Date.After(last) {
			last = txn.Date
		}
		key := txn.Date.Format(monthLayout)
		mt, ok := byMonth[key]
		if !ok {
			mt = &domain.MonthlyTotal{Month: key}
			byMonth[key] = mt
		}
		if txn.Direction == domain.DirectionOut {
			mt.Spend += txn.Amount
		} else {
			mt.Income += txn.Amount
		}
	}

	var totals []domain.MonthlyTotal
	cursor := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		key := cursor.Format(monthLayout)
		if mt, ok := byMonth[key]; ok {
			totals = append(totals, *mt)
		} else {
			totals = append(totals, domain.MonthlyTotal{Month: key})
		}
		cursor = cursor.AddDate(0, 1, 0)
	}
	return totals
}

// RollingAverage is the mean monthly spend over the trailing window.
// months <= 0 falls back to the configured default.
func (s *Service) RollingAverage(txns []*domain.UnifiedTransaction, months int) float64 {
	if months <= 0 {
		months = s.cfg.RollingAverageMonths
	}
	spends := monthlySpends(s.MonthlyTotals(txns))
	if len(spends) > months {
		spends = spends[len(spends)-months:]
	}
	if len(spends) == 0 {
		return 0
	}
	var sum float64
	for _, v := range spends {
		sum += v
	}
	return sum / float64(len(spends))
}

func categoryLabel(txn *domain.UnifiedTransaction) string {
	if txn.Category != nil {
		return txn.Category.String()
	}
	return domain.Uncategorised().String()
}

func monthlySpends(totals []domain.MonthlyTotal) []float64 {
	spends := make([]float64, len(totals))
	for i, mt := range totals {
		spends[i] = mt.Spend
	}
	return spends
}
