package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

type downloadResponse struct {
	URL          string `json:"url"`
	Unrestricted bool   `json:"unrestricted"`
	Downloads    int    `json:"downloads,omitempty"`
	Remaining    int    `json:"remaining"`
}

// DownloadResource is the quota gate surface. The per-session mirror is
// consumed synchronously before the response; durable bookkeeping happens in
// the background and never blocks or reverses an allowed download.
func (a *App) DownloadResource(w http.ResponseWriter, r *http.Request) {
	ident := a.currentIdentity(r)
	if ident.ID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	resourceID := chi.URLParam(r, "id")

	var fileKey string
	if err := a.SQL.QueryRow(r.Context(), sqlinline.QSelectResourceFileKey, resourceID).Scan(&fileKey); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "resource not found")
			return
		}
		a.Logger.Error().Err(err).Msg("resource lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load resource")
		return
	}

	sess := a.Sessions.Session(r.Context(), ident.ID)
	decision, err := a.Gate.RequestDownload(r.Context(), sess, ident, resourceID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityUnresolved) {
			a.error(w, http.StatusUnauthorized, "unauthorized", "identity not verified")
			return
		}
		a.Logger.Error().Err(err).Msg("download decision failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to evaluate quota")
		return
	}
	if !decision.Allowed {
		a.json(w, http.StatusForbidden, map[string]any{
			"error":     string(decision.Reason),
			"message":   "free download limit reached",
			"downloads": decision.Counter,
			"limit":     a.Gate.Limit(),
		})
		return
	}

	a.logUsage(r, ident.ID, resourceID, "DOWNLOAD")

	remaining := decision.Remaining
	if decision.Unrestricted {
		remaining = -1
	}
	a.json(w, http.StatusOK, downloadResponse{
		URL:          a.fileURL(fileKey),
		Unrestricted: decision.Unrestricted,
		Downloads:    decision.Counter,
		Remaining:    remaining,
	})
}

// logUsage appends to the usage audit. Best effort.
func (a *App) logUsage(r *http.Request, userID, resourceID, event string) {
	if _, err := a.SQL.Exec(r.Context(), sqlinline.QInsertUsageEvent, userID, resourceID, event); err != nil {
		a.Logger.Warn().Err(err).Str("event", event).Msg("usage event insert failed")
	}
}
