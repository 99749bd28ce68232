package domain

import "time"

// TrendDirection classifies the slope of a spending series.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "INCREASING"
	TrendDecreasing TrendDirection = "DECREASING"
	TrendStable     TrendDirection = "STABLE"
)

// SpendingSummary totals spending within a window and ranks categories and
// merchants by outgoing amount.
type SpendingSummary struct {
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	TotalOut   float64         `json:"total_out"`
	TotalIn    float64         `json:"total_in"`
	NetFlow    float64         `json:"net_flow"`
	Count      int             `json:"count"`
	Categories []CategoryTotal `json:"categories"`
	Merchants  []MerchantTotal `json:"merchants"`
}

// CategoryTotal is one ranked category in a summary.
type CategoryTotal struct {
	Category   string  `json:"category"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
	Count      int     `json:"count"`
}

// MerchantTotal is one ranked merchant in a summary.
type MerchantTotal struct {
	Merchant string  `json:"merchant"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// MonthlyTotal is the spend/income rollup for one calendar month.
type MonthlyTotal struct {
	Month  string  `json:"month"` // YYYY-MM
	Spend  float64 `json:"spend"`
	Income float64 `json:"income"`
}

// TrendAnalysis is the result of regressing monthly spend against month
// index over a trailing window.
type TrendAnalysis struct {
	Direction TrendDirection `json:"direction"`
	// MonthlyChange is the regression slope: the spend delta per month.
	MonthlyChange float64 `json:"monthly_change"`
	// PercentChange is the slope relative to mean monthly spend.
	PercentChange float64 `json:"percent_change"`
	// Confidence is the regression R², clamped to [0,1].
	Confidence float64 `json:"confidence"`
	DataPoints int     `json:"data_points"`
}

// CategoryDrift reports a category whose average monthly spend shifted
// between two back-to-back windows.
type CategoryDrift struct {
	Category      string         `json:"category"`
	PreviousAvg   float64        `json:"previous_avg"`
	CurrentAvg    float64        `json:"current_avg"`
	ChangePercent float64        `json:"change_percent"`
	Direction     TrendDirection `json:"direction"`
}

// MonthlyForecast predicts next month's spend from the trailing window.
type MonthlyForecast struct {
	PredictedSpend    float64            `json:"predicted_spend"`
	Confidence        float64            `json:"confidence"`
	CategoryBreakdown map[string]float64 `json:"category_breakdown"`
	Factors           []string           `json:"factors,omitempty"`
}

// CategoryProfile summarises one category inside a spending profile.
type CategoryProfile struct {
	MonthlyAverage float64        `json:"monthly_average"`
	Trend          TrendDirection `json:"trend"`
	Volatility     float64        `json:"volatility"`
	Count          int            `json:"count"`
}

// SpendingProfile is the consolidated per-user behaviour snapshot. It is
// recomputed wholesale from the full transaction history, never patched
// incrementally.
type SpendingProfile struct {
	UserID                string                     `json:"user_id"`
	CategoryAverages      map[string]CategoryProfile `json:"category_averages"`
	MonthlyPatterns       []MonthlyTotal             `json:"monthly_patterns"`
	OverallVolatility     float64                    `json:"overall_volatility"`
	PredictedMonthlySpend float64                    `json:"predicted_monthly_spend"`
	PredictionConfidence  float64                    `json:"prediction_confidence"`
	DataPointCount        int                        `json:"data_point_count"`
	GeneratedAt           time.Time                  `json:"generated_at"`
}

// SpendingCluster is a lightweight grouping of repeat spend at one merchant.
type SpendingCluster struct {
	Merchant        string  `json:"merchant"`
	TotalSpend      float64 `json:"total_spend"`
	Count           int     `json:"count"`
	AvgMonthlySpend float64 `json:"avg_monthly_spend"`
}
