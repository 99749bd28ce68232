package analytics

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/txengine/internal/config"
	"github.com/dvloznov/txengine/internal/domain"
)

func testService() *Service {
	return NewService(config.AnalyticsConfig{
		RollingAverageMonths: 3,
		TrendMonths:          6,
		DriftWindowMonths:    3,
		StableThreshold:      0.05,
		DriftThreshold:       0.10,
		HighVolatility:       0.3,
		ForecastMinMonths:    4,
	}, zerolog.New(io.Discard))
}

func spend(date string, amount float64, level1, merchant string) *domain.UnifiedTransaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return &domain.UnifiedTransaction{
		UserID:    "user-1",
		Date:      d,
		Amount:    amount,
		Direction: domain.DirectionOut,
		Merchant:  merchant,
		Category:  &domain.Category{Level1: level1},
	}
}

func income(date string, amount float64) *domain.UnifiedTransaction {
	txn := spend(date, amount, "Income", "Acme Corp")
	txn.Direction = domain.DirectionIn
	return txn
}

func day(date string) time.Time {
	d, _ := time.Parse("2006-01-02", date)
	return d
}

func TestSummary(t *testing.T) {
	txns := []*domain.UnifiedTransaction{
		spend("2024-03-01", 120, "Food", "Woolworths"),
		spend("2024-03-05", 80, "Food", "Coles"),
		spend("2024-03-10", 300, "Housing", "EnergyCo"),
		income("2024-03-15", 5000),
		spend("2024-05-01", 999, "Travel", "Qantas"), // outside window
	}

	sum := testService().Summary(txns, day("2024-03-01"), day("2024-03-31"))

	assert.Equal(t, 4, sum.Count)
	assert.InDelta(t, 500, sum.TotalOut, 0.001)
	assert.InDelta(t, 5000, sum.TotalIn, 0.001)
	assert.InDelta(t, 4500, sum.NetFlow, 0.001)

	require.Len(t, sum.Categories, 2)
	assert.Equal(t, "Housing", sum.Categories[0].Category)
	assert.InDelta(t, 60, sum.Categories[0].Percentage, 0.001)
	assert.Equal(t, "Food", sum.Categories[1].Category)
	assert.Equal(t, 2, sum.Categories[1].Count)

	require.NotEmpty(t, sum.Merchants)
	assert.Equal(t, "EnergyCo", sum.Merchants[0].Merchant)
}

func TestSummary_RankingsCapAtTen(t *testing.T) {
	var txns []*domain.UnifiedTransaction
	for i := 0; i < 15; i++ {
		// Distinct category and merchant per transaction, spend descending
		// so the ordering under the cap is known.
		txns = append(txns, spend("2024-03-10", float64(150-i*10),
			string(rune('A'+i)), "Shop "+string(rune('A'+i))))
	}

	sum := testService().Summary(txns, day("2024-03-01"), day("2024-03-31"))

	require.Len(t, sum.Categories, 10)
	require.Len(t, sum.Merchants, 10)
	assert.Equal(t, "A", sum.Categories[0].Category)
	assert.Equal(t, "J", sum.Categories[9].Category)
	assert.Equal(t, "Shop A", sum.Merchants[0].Merchant)
	assert.Equal(t, "Shop J", sum.Merchants[9].Merchant)
}

func TestSummary_UncategorisedBucket(t *testing.T) {
	txn := spend("2024-03-01", 10, "", "Mystery")
	txn.Category = nil

	sum := testService().Summary([]*domain.UnifiedTransaction{txn}, day("2024-03-01"), day("2024-03-31"))
	require.Len(t, sum.Categories, 1)
	assert.Equal(t, "Other > Uncategorised", sum.Categories[0].Category)
}

func TestMonthlyTotals_FillsGaps(t *testing.T) {
	txns := []*domain.UnifiedTransaction{
		spend("2024-01-15", 100, "Food", "A"),
		spend("2024-04-15", 300, "Food", "A"),
		income("2024-04-20", 50),
	}

	totals := testService().MonthlyTotals(txns)
	require.Len(t, totals, 4)
	assert.Equal(t, "2024-01", totals[0].Month)
	assert.InDelta(t, 100, totals[0].Spend, 0.001)
	assert.Zero(t, totals[1].Spend)
	assert.Zero(t, totals[2].Spend)
	assert.Equal(t, "2024-04", totals[3].Month)
	assert.InDelta(t, 300, totals[3].Spend, 0.001)
	assert.InDelta(t, 50, totals[3].Income, 0.001)
}

func TestRollingAverage(t *testing.T) {
	txns := []*domain.UnifiedTransaction{
		spend("2024-01-10", 100, "Food", "A"),
		spend("2024-02-10", 200, "Food", "A"),
		spend("2024-03-10", 300, "Food", "A"),
		spend("2024-04-10", 400, "Food", "A"),
	}

	svc := testService()
	// Default window covers the last three months.
	assert.InDelta(t, 300, svc.RollingAverage(txns, 0), 0.001)
	assert.InDelta(t, 350, svc.RollingAverage(txns, 2), 0.001)
	assert.Zero(t, svc.RollingAverage(nil, 3))
}

func TestTrend_Directions(t *testing.T) {
	svc := testService()

	tests := []struct {
		name   string
		spends []float64
		want   domain.TrendDirection
	}{
		{"steadily increasing", []float64{100, 200, 300, 400}, domain.TrendIncreasing},
		{"steadily decreasing", []float64{400, 300, 200, 100}, domain.TrendDecreasing},
		{"flat", []float64{250, 250, 250, 250}, domain.TrendStable},
		{"small wobble", []float64{100, 101, 100, 102}, domain.TrendStable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			analysis := svc.trendOf(tc.spends)
			assert.Equal(t, tc.want, analysis.Direction)
		})
	}
}

func TestTrend_PerfectLineHasFullConfidence(t *testing.T) {
	analysis := testService().trendOf([]float64{100, 200, 300, 400})
	assert.InDelta(t, 100, analysis.MonthlyChange, 0.001)
	assert.InDelta(t, 1.0, analysis.Confidence, 1e-9)
	assert.Equal(t, 4, analysis.DataPoints)
}

func TestTrend_TooFewPoints(t *testing.T) {
	svc := testService()

	analysis := svc.trendOf([]float64{500})
	assert.Equal(t, domain.TrendStable, analysis.Direction)
	assert.Zero(t, analysis.Confidence)
	assert.Equal(t, 1, analysis.DataPoints)

	analysis = svc.Trend(nil)
	assert.Equal(t, domain.TrendStable, analysis.Direction)
}

func TestVolatility(t *testing.T) {
	assert.Zero(t, volatilityOf(nil))
	assert.Zero(t, volatilityOf([]float64{100}))
	assert.Zero(t, volatilityOf([]float64{0, 0, 0}))
	assert.InDelta(t, 0, volatilityOf([]float64{100, 100, 100}), 1e-9)
	assert.Greater(t, volatilityOf([]float64{10, 500, 20, 600}), 0.5)
}

func TestDrift(t *testing.T) {
	var txns []*domain.UnifiedTransaction
	// Previous window (Jan-Mar): food 300/mo, fuel 100/mo.
	// Current window (Apr-Jun): food 600/mo, fuel 104/mo.
	for _, m := range []string{"2024-01", "2024-02", "2024-03"} {
		txns = append(txns,
			spend(m+"-10", 300, "Food", "A"),
			spend(m+"-12", 100, "Fuel", "B"),
		)
	}
	for _, m := range []string{"2024-04", "2024-05", "2024-06"} {
		txns = append(txns,
			spend(m+"-10", 600, "Food", "A"),
			spend(m+"-12", 104, "Fuel", "B"),
		)
	}

	drifts := testService().Drift(txns)
	require.Len(t, drifts, 1, "fuel moved only 4%%, below the threshold")

	d := drifts[0]
	assert.Equal(t, "Food", d.Category)
	assert.InDelta(t, 300, d.PreviousAvg, 0.001)
	assert.InDelta(t, 600, d.CurrentAvg, 0.001)
	assert.InDelta(t, 100, d.ChangePercent, 0.001)
	assert.Equal(t, domain.TrendIncreasing, d.Direction)
}

func TestDrift_NewCategoryReadsAsFullIncrease(t *testing.T) {
	txns := []*domain.UnifiedTransaction{
		spend("2024-01-10", 100, "Food", "A"),
		spend("2024-04-10", 100, "Food", "A"),
		spend("2024-05-10", 100, "Pets", "Vet"),
	}

	drifts := testService().Drift(txns)
	require.NotEmpty(t, drifts)

	var found bool
	for _, d := range drifts {
		if d.Category == "Pets" {
			found = true
			assert.InDelta(t, 100, d.ChangePercent, 0.001)
			assert.Equal(t, domain.TrendIncreasing, d.Direction)
		}
	}
	assert.True(t, found)
}

func TestDrift_SortedByMagnitude(t *testing.T) {
	var txns []*domain.UnifiedTransaction
	for _, m := range []string{"2024-01", "2024-02", "2024-03"} {
		txns = append(txns,
			spend(m+"-10", 100, "Food", "A"),
			spend(m+"-12", 100, "Fuel", "B"),
		)
	}
	for _, m := range []string{"2024-04", "2024-05", "2024-06"} {
		txns = append(txns,
			spend(m+"-10", 130, "Food", "A"), // +30%
			spend(m+"-12", 300, "Fuel", "B"), // +200%
		)
	}

	drifts := testService().Drift(txns)
	require.Len(t, drifts, 2)
	assert.Equal(t, "Fuel", drifts[0].Category)
	assert.Equal(t, "Food", drifts[1].Category)
}

func TestForecast(t *testing.T) {
	txns := []*domain.UnifiedTransaction{
		spend("2024-01-10", 90, "Food", "A"),
		spend("2024-02-10", 100, "Food", "A"),
		spend("2024-03-10", 110, "Food", "A"),
		spend("2024-04-10", 100, "Food", "A"),
	}

	forecast := testService().Forecast(txns)
	assert.Greater(t, forecast.PredictedSpend, 90.0)
	assert.Less(t, forecast.PredictedSpend, 120.0)
	assert.Greater(t, forecast.Confidence, 0.0)
	assert.LessOrEqual(t, forecast.Confidence, 1.0)
	assert.Contains(t, forecast.CategoryBreakdown, "Food")
}

func TestForecast_NeverNegative(t *testing.T) {
	// A steep decline would extrapolate below zero.
	txns := []*domain.UnifiedTransaction{
		spend("2024-01-10", 1000, "Food", "A"),
		spend("2024-02-10", 500, "Food", "A"),
		spend("2024-03-10", 50, "Food", "A"),
	}

	forecast := testService().Forecast(txns)
	assert.GreaterOrEqual(t, forecast.PredictedSpend, 0.0)
}

func TestForecast_Factors(t *testing.T) {
	short := testService().Forecast([]*domain.UnifiedTransaction{
		spend("2024-01-10", 100, "Food", "A"),
		spend("2024-02-10", 400, "Food", "A"),
	})
	assert.Contains(t, short.Factors, "limited history")
	assert.Contains(t, short.Factors, "high month-to-month volatility")

	empty := testService().Forecast(nil)
	assert.Zero(t, empty.PredictedSpend)
	assert.Contains(t, empty.Factors, "no spending history")
}

func TestProfile(t *testing.T) {
	txns := []*domain.UnifiedTransaction{
		spend("2024-01-10", 100, "Food", "A"),
		spend("2024-02-10", 120, "Food", "A"),
		spend("2024-03-10", 110, "Food", "A"),
		spend("2024-03-12", 60, "Fuel", "B"),
		income("2024-03-15", 4000),
	}

	profile := testService().Profile("user-1", txns)
	assert.Equal(t, "user-1", profile.UserID)
	assert.Equal(t, 5, profile.DataPointCount)
	assert.Len(t, profile.MonthlyPatterns, 3)
	assert.False(t, profile.GeneratedAt.IsZero())

	food, ok := profile.CategoryAverages["Food"]
	require.True(t, ok)
	assert.InDelta(t, 110, food.MonthlyAverage, 0.001)
	assert.Equal(t, 3, food.Count)

	fuel, ok := profile.CategoryAverages["Fuel"]
	require.True(t, ok)
	assert.InDelta(t, 20, fuel.MonthlyAverage, 0.001)
}

func TestProfile_Empty(t *testing.T) {
	profile := testService().Profile("user-1", nil)
	assert.Zero(t, profile.DataPointCount)
	assert.Empty(t, profile.CategoryAverages)
}

func TestClusters(t *testing.T) {
	txns := []*domain.UnifiedTransaction{
		spend("2024-01-05", 100, "Food", "Woolworths"),
		spend("2024-02-05", 120, "Food", "Woolworths"),
		spend("2024-01-08", 60, "Food", "Coles"),
		spend("2024-02-08", 70, "Food", "Coles"),
		spend("2024-01-20", 500, "Travel", "One Off Hotel"), // single visit
	}

	clusters := testService().Clusters(txns)
	require.Len(t, clusters, 2, "single-visit merchants are dropped")

	assert.Equal(t, "Woolworths", clusters[0].Merchant)
	assert.InDelta(t, 220, clusters[0].TotalSpend, 0.001)
	assert.Equal(t, 2, clusters[0].Count)
	assert.InDelta(t, 110, clusters[0].AvgMonthlySpend, 0.001)
	assert.Equal(t, "Coles", clusters[1].Merchant)
}

func TestClusters_CapsAtTen(t *testing.T) {
	var txns []*domain.UnifiedTransaction
	for i := 0; i < 15; i++ {
		merchant := "Shop " + string(rune('A'+i))
		txns = append(txns,
			spend("2024-01-10", float64(10+i), "Shopping", merchant),
			spend("2024-02-10", float64(10+i), "Shopping", merchant),
		)
	}

	clusters := testService().Clusters(txns)
	assert.Len(t, clusters, 10)
	// Highest spenders first.
	assert.Equal(t, "Shop O", clusters[0].Merchant)
}
