package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/sqlinline"
)

type validateResponse struct {
	Validated bool `json:"validated"`
	Total     int  `json:"total"`
}

// ToggleValidation flips the caller's "I validated this works" mark on a
// resource.
func (a *App) ToggleValidation(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	resourceID := chi.URLParam(r, "id")

	var validated bool
	var total int
	if err := a.SQL.QueryRow(r.Context(), sqlinline.QToggleValidation, resourceID, userID).Scan(&validated, &total); err != nil {
		a.Logger.Error().Err(err).Str("resource_id", resourceID).Msg("toggle validation failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to toggle validation")
		return
	}
	a.json(w, http.StatusOK, validateResponse{Validated: validated, Total: total})
}
