package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"server/internal/infra"
	"server/internal/sqlinline"
)

type quotaResponse struct {
	Downloads      int  `json:"downloads"`
	DownloadsToday int  `json:"downloads_today"`
	Limit          int  `json:"limit"`
	Remaining      int  `json:"remaining"`
	Unrestricted   bool `json:"unrestricted"`
}

// GetQuota resynchronizes the caller's counter mirror against the durable
// store and reports the result. Clients call this on focus regain or history
// navigation; a stale broadcast can never win over this re-pull because the
// mirror only moves forward.
func (a *App) GetQuota(w http.ResponseWriter, r *http.Request) {
	ident := a.currentIdentity(r)
	if ident.ID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	sess := a.Sessions.Session(r.Context(), ident.ID)
	value := sess.Resume(r.Context(), a.Counters, a.Logger)

	unrestricted := false
	if ent, err := sess.Entitlement(r.Context(), a.Resolver, ident); err == nil {
		unrestricted = ent.Unrestricted
	}

	remaining := a.Gate.Limit() - value
	if remaining < 0 {
		remaining = 0
	}
	if unrestricted {
		remaining = -1
	}
	a.json(w, http.StatusOK, quotaResponse{
		Downloads:      value,
		DownloadsToday: a.downloadsToday(r, ident.ID),
		Limit:          a.Gate.Limit(),
		Remaining:      remaining,
		Unrestricted:   unrestricted,
	})
}

// downloadsToday is informational only; the gate never consults it.
func (a *App) downloadsToday(r *http.Request, userID string) int {
	var count int
	err := a.SQL.QueryRow(r.Context(), sqlinline.QCountUsageEventsToday, userID, "DOWNLOAD").Scan(&count)
	if err != nil {
		if !infra.IsNoRows(err) {
			a.Logger.Warn().Err(err).Msg("usage count lookup failed")
		}
		return 0
	}
	return count
}

// QuotaEvents streams counter updates for the caller's session as
// server-sent events, one per permitted download on any of the user's views.
// Slow consumers miss events rather than block the publisher; the client
// repairs by calling GetQuota on reconnect.
func (a *App) QuotaEvents(w http.ResponseWriter, r *http.Request) {
	ident := a.currentIdentity(r)
	if ident.ID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	sess := a.Sessions.Session(r.Context(), ident.ID)
	updates, cancel := sess.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case update, open := <-updates:
			if !open {
				return
			}
			payload, err := json.Marshal(update)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: counter\ndata: %s\n\n", update.Seq, payload)
			flusher.Flush()
		}
	}
}
