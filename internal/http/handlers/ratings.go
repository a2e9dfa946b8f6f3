package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/sqlinline"
)

type rateRequest struct {
	Value int `json:"value"`
}

type rateResponse struct {
	AverageRating float64 `json:"average_rating"`
	TotalRatings  int     `json:"total_ratings"`
	UserRating    int     `json:"user_rating"`
}

// RateResource records or replaces the caller's rating and recomputes the
// resource aggregate from the full rating set.
func (a *App) RateResource(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Value < 1 || req.Value > 5 {
		a.error(w, http.StatusBadRequest, "bad_request", "rating must be between 1 and 5")
		return
	}
	resourceID := chi.URLParam(r, "id")

	if _, err := a.SQL.Exec(r.Context(), sqlinline.QUpsertRating, resourceID, userID, req.Value); err != nil {
		a.Logger.Error().Err(err).Str("resource_id", resourceID).Msg("upsert rating failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to save rating")
		return
	}

	var avg float64
	var total int
	if err := a.SQL.QueryRow(r.Context(), sqlinline.QRecomputeResourceRating, resourceID).Scan(&avg, &total); err != nil {
		a.Logger.Error().Err(err).Str("resource_id", resourceID).Msg("recompute rating failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update aggregate")
		return
	}

	a.json(w, http.StatusOK, rateResponse{AverageRating: avg, TotalRatings: total, UserRating: req.Value})
}
