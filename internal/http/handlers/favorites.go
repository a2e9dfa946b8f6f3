package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/sqlinline"
)

func (a *App) AddFavorite(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if _, err := a.SQL.Exec(r.Context(), sqlinline.QInsertFavorite, userID, chi.URLParam(r, "id")); err != nil {
		a.Logger.Error().Err(err).Msg("add favorite failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to save favorite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if _, err := a.SQL.Exec(r.Context(), sqlinline.QDeleteFavorite, userID, chi.URLParam(r, "id")); err != nil {
		a.Logger.Error().Err(err).Msg("remove favorite failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to remove favorite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ListFavorites(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QListFavoritesByUser, userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list favorites failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load favorites")
		return
	}
	defer rows.Close()
	a.json(w, http.StatusOK, map[string]any{"items": a.collectResources(rows)})
}
