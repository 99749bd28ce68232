// Package config loads engine configuration from the environment. All
// threshold constants used by the behavioural and analytics engines live
// here as named, overridable values rather than magic numbers.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root configuration for the transaction intelligence engine.
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Behaviour BehaviourConfig
	Analytics AnalyticsConfig
	Rules     RulesConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	JobQueueSize    int
	JobWorkers      int
}

// AIConfig controls the optional AI classifier. When Enabled is false or no
// API key is configured the categorisation engine skips the AI stage
// entirely.
type AIConfig struct {
	Enabled bool
	Model   string
	APIKey  string
}

// BehaviourConfig holds the recurrence and anomaly thresholds. The defaults
// mirror the constants the engine was tuned with; callers may override them
// but should not re-derive them.
type BehaviourConfig struct {
	// MinOccurrences is the minimum group size before recurrence detection
	// runs.
	MinOccurrences int
	// GapToleranceDays widens each pattern window when checking individual
	// gaps.
	GapToleranceDays int
	// GapMatchRatio is the fraction of gaps that must land inside the
	// (widened) pattern window for the pattern to be confirmed.
	GapMatchRatio float64
	// AmountVarianceThreshold is the coefficient-of-variation budget for a
	// recurring amount; candidates above twice this value are rejected.
	AmountVarianceThreshold float64
	// DuplicateWindow is the time span within which an equal-amount,
	// equal-merchant transaction counts as a duplicate.
	DuplicateWindow time.Duration
	// DuplicateAmountDelta is the absolute amount tolerance for duplicates.
	DuplicateAmountDelta float64
	// UnusualAmountSigma is the deviation, in standard deviations, beyond
	// which an amount is unusual.
	UnusualAmountSigma float64
	// UnusualAmountMinHistory is how many prior same-merchant transactions
	// are needed before the unusual-amount check applies.
	UnusualAmountMinHistory int
	// PriceIncreaseThreshold is the fractional increase over a recurring
	// payment's expected amount that flags a price increase.
	PriceIncreaseThreshold float64
	// UnusualHourStart/End bound the overnight window (inclusive) for the
	// timing anomaly.
	UnusualHourStart int
	UnusualHourEnd   int
}

// AnalyticsConfig holds the analytics window defaults.
type AnalyticsConfig struct {
	RollingAverageMonths int
	TrendMonths          int
	DriftWindowMonths    int
	// StableThreshold is the relative monthly change below which a trend is
	// STABLE.
	StableThreshold float64
	// DriftThreshold is the minimum relative change for a category to appear
	// in a drift report.
	DriftThreshold float64
	// HighVolatility marks a coefficient of variation worth calling out in
	// forecast factors.
	HighVolatility float64
	// ForecastMinMonths is the history length below which the forecast notes
	// limited data.
	ForecastMinMonths int
}

// RulesConfig points at optional YAML overrides for the rule set and
// merchant alias table.
type RulesConfig struct {
	RulesFile   string
	AliasesFile string
}

// Load reads configuration from the environment, after loading an optional
// .env file. Missing values fall back to defaults; malformed values are
// errors.
func Load() (*Config, error) {
	// Absence of a .env file is the normal case in deployment.
	_ = godotenv.Load()

	readTimeout, err := getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	idleTimeout, err := getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	duplicateWindow, err := getEnvDuration("ANOMALY_DUPLICATE_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnvString("PORT", "8080"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			IdleTimeout:     idleTimeout,
			ShutdownTimeout: shutdownTimeout,
			JobQueueSize:    getEnvInt("JOB_QUEUE_SIZE", 100),
			JobWorkers:      getEnvInt("JOB_WORKERS", 5),
		},
		AI: AIConfig{
			Enabled: getEnvBool("AI_CLASSIFIER_ENABLED", false),
			Model:   getEnvString("AI_CLASSIFIER_MODEL", "gemini-2.5-flash"),
			APIKey:  getEnvString("GEMINI_API_KEY", ""),
		},
		Behaviour: BehaviourConfig{
			MinOccurrences:          getEnvInt("RECURRENCE_MIN_OCCURRENCES", 2),
			GapToleranceDays:        getEnvInt("RECURRENCE_GAP_TOLERANCE_DAYS", 5),
			GapMatchRatio:           getEnvFloat("RECURRENCE_GAP_MATCH_RATIO", 0.7),
			AmountVarianceThreshold: getEnvFloat("RECURRENCE_AMOUNT_VARIANCE", 0.10),
			DuplicateWindow:         duplicateWindow,
			DuplicateAmountDelta:    getEnvFloat("ANOMALY_DUPLICATE_AMOUNT_DELTA", 0.01),
			UnusualAmountSigma:      getEnvFloat("ANOMALY_UNUSUAL_SIGMA", 2.5),
			UnusualAmountMinHistory: getEnvInt("ANOMALY_UNUSUAL_MIN_HISTORY", 5),
			PriceIncreaseThreshold:  getEnvFloat("ANOMALY_PRICE_INCREASE", 0.05),
			UnusualHourStart:        getEnvInt("ANOMALY_UNUSUAL_HOUR_START", 1),
			UnusualHourEnd:          getEnvInt("ANOMALY_UNUSUAL_HOUR_END", 5),
		},
		Analytics: AnalyticsConfig{
			RollingAverageMonths: getEnvInt("ANALYTICS_ROLLING_MONTHS", 3),
			TrendMonths:          getEnvInt("ANALYTICS_TREND_MONTHS", 6),
			DriftWindowMonths:    getEnvInt("ANALYTICS_DRIFT_WINDOW_MONTHS", 3),
			StableThreshold:      getEnvFloat("ANALYTICS_STABLE_THRESHOLD", 0.05),
			DriftThreshold:       getEnvFloat("ANALYTICS_DRIFT_THRESHOLD", 0.10),
			HighVolatility:       getEnvFloat("ANALYTICS_HIGH_VOLATILITY", 0.3),
			ForecastMinMonths:    getEnvInt("ANALYTICS_FORECAST_MIN_MONTHS", 4),
		},
		Rules: RulesConfig{
			RulesFile:   getEnvString("CATEGORY_RULES_FILE", ""),
			AliasesFile: getEnvString("MERCHANT_ALIASES_FILE", ""),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}
