package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dvloznov/txengine/internal/api/middleware"
	"github.com/dvloznov/txengine/internal/domain"
)

// withHistory loads the user's full history and hands it to fn, writing
// the returned value as JSON.
func (h *Handler) withHistory(w http.ResponseWriter, r *http.Request, fn func(userID string, txns []*domain.UnifiedTransaction) interface{}) {
	userID := chi.URLParam(r, "userID")

	txns, err := h.transactions.ListForUser(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to load history")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, fn(userID, txns))
}

// Summary handles GET /api/users/{userID}/analytics/summary. Defaults to
// the trailing 30 days when no window is given.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseWindow(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}

	h.withHistory(w, r, func(_ string, txns []*domain.UnifiedTransaction) interface{} {
		return h.analytics.Summary(txns, from, to)
	})
}

// MonthlyTotals handles GET /api/users/{userID}/analytics/monthly.
func (h *Handler) MonthlyTotals(w http.ResponseWriter, r *http.Request) {
	h.withHistory(w, r, func(_ string, txns []*domain.UnifiedTransaction) interface{} {
		totals := h.analytics.MonthlyTotals(txns)
		return map[string]interface{}{"months": totals, "count": len(totals)}
	})
}

// RollingAverage handles GET /api/users/{userID}/analytics/rolling-average.
func (h *Handler) RollingAverage(w http.ResponseWriter, r *http.Request) {
	months := 0
	if v := r.URL.Query().Get("months"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "months must be a positive integer")
			return
		}
		months = parsed
	}

	h.withHistory(w, r, func(_ string, txns []*domain.UnifiedTransaction) interface{} {
		return map[string]float64{"average_monthly_spend": h.analytics.RollingAverage(txns, months)}
	})
}

// Trend handles GET /api/users/{userID}/analytics/trend.
func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	h.withHistory(w, r, func(_ string, txns []*domain.UnifiedTransaction) interface{} {
		return h.analytics.Trend(txns)
	})
}

// Drift handles GET /api/users/{userID}/analytics/drift.
func (h *Handler) Drift(w http.ResponseWriter, r *http.Request) {
	h.withHistory(w, r, func(_ string, txns []*domain.UnifiedTransaction) interface{} {
		drifts := h.analytics.Drift(txns)
		return map[string]interface{}{"drift": drifts, "count": len(drifts)}
	})
}

// Forecast handles GET /api/users/{userID}/analytics/forecast.
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	h.withHistory(w, r, func(_ string, txns []*domain.UnifiedTransaction) interface{} {
		return h.analytics.Forecast(txns)
	})
}

// Volatility handles GET /api/users/{userID}/analytics/volatility.
func (h *Handler) Volatility(w http.ResponseWriter, r *http.Request) {
	h.withHistory(w, r, func(_ string, txns []*domain.UnifiedTransaction) interface{} {
		return map[string]float64{"volatility": h.analytics.Volatility(txns)}
	})
}

// Profile handles GET /api/users/{userID}/analytics/profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	h.withHistory(w, r, func(userID string, txns []*domain.UnifiedTransaction) interface{} {
		return h.analytics.Profile(userID, txns)
	})
}

// Clusters handles GET /api/users/{userID}/analytics/clusters.
func (h *Handler) Clusters(w http.ResponseWriter, r *http.Request) {
	h.withHistory(w, r, func(_ string, txns []*domain.UnifiedTransaction) interface{} {
		clusters := h.analytics.Clusters(txns)
		return map[string]interface{}{"clusters": clusters, "count": len(clusters)}
	})
}
