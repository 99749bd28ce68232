package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dvloznov/txengine/internal/api/middleware"
	"github.com/dvloznov/txengine/internal/domain"
)

// ListTransactions handles GET /api/users/{userID}/transactions with
// optional from/to date filters (YYYY-MM-DD).
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	from, to, err := parseWindow(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var txns []*domain.UnifiedTransaction
	if from.IsZero() && to.IsZero() {
		txns, err = h.transactions.ListForUser(ctx, userID)
	} else {
		txns, err = h.transactions.ListForUserWindow(ctx, userID, from, to)
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txns,
		"count":        len(txns),
	})
}

// ListAnomalies handles GET /api/users/{userID}/anomalies, returning only
// transactions that carry at least one anomaly signal.
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	txns, err := h.transactions.ListForUser(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list anomalies")
		return
	}

	var flagged []*domain.UnifiedTransaction
	for _, txn := range txns {
		if len(txn.Anomalies) > 0 {
			flagged = append(flagged, txn)
		}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": flagged,
		"count":        len(flagged),
	})
}

// ListRecurring handles GET /api/users/{userID}/recurring.
func (h *Handler) ListRecurring(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	payments, err := h.recurring.ListForUser(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to list recurring payments")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list recurring payments")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"recurring": payments,
		"count":     len(payments),
	})
}

// Categorise handles POST /api/users/{userID}/categorise, classifying an
// ad-hoc transaction without persisting anything.
func (h *Handler) Categorise(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Merchant    string  `json:"merchant"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		Direction   string  `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Merchant == "" && req.Description == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Merchant or description is required")
		return
	}

	direction := domain.DirectionOut
	if strings.EqualFold(req.Direction, string(domain.DirectionIn)) {
		direction = domain.DirectionIn
	}

	txn := &domain.UnifiedTransaction{
		UserID:      userID,
		Merchant:    req.Merchant,
		Description: req.Description,
		Amount:      req.Amount,
		Direction:   direction,
	}
	result := h.engine.Categorise(r.Context(), txn)
	middleware.WriteJSON(w, http.StatusOK, result)
}

// CorrectCategory handles POST /api/users/{userID}/transactions/{txnID}/category.
// The corrected category is stored on the transaction and learned as a
// user mapping.
func (h *Handler) CorrectCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	txnID := chi.URLParam(r, "txnID")

	var req struct {
		Level1 string `json:"level1"`
		Level2 string `json:"level2"`
		Level3 string `json:"level3"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Level1) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "level1 is required")
		return
	}

	txn, err := h.transactions.GetByID(ctx, userID, txnID)
	if err != nil {
		h.log.Error().Err(err).Str("txn_id", txnID).Msg("failed to load transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load transaction")
		return
	}
	if txn == nil {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	corrected := domain.Category{Level1: req.Level1, Level2: req.Level2, Level3: req.Level3}
	if err := h.engine.RecordCorrection(ctx, userID, txn, corrected); err != nil {
		h.log.Error().Err(err).Str("txn_id", txnID).Msg("failed to record correction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to record correction")
		return
	}
	if err := h.transactions.Update(ctx, txn); err != nil {
		h.log.Error().Err(err).Str("txn_id", txnID).Msg("failed to update transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, txn)
}

func parseWindow(r *http.Request) (from, to time.Time, err error) {
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err = time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}
