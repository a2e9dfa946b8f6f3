package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"server/internal/billing"
	"server/internal/domain"
	"server/internal/sqlinline"
)

type checkoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type confirmRequest struct {
	SessionID string `json:"session_id"`
}

type confirmResponse struct {
	State             string `json:"state"`
	SessionID         string `json:"session_id"`
	ActivationPending bool   `json:"activation_pending,omitempty"`
}

// CreateCheckout opens a hosted checkout session for the pro upgrade.
func (a *App) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if a.Checkout == nil || !a.Checkout.Configured() {
		a.error(w, http.StatusServiceUnavailable, "checkout_unavailable", "payments are not configured")
		return
	}
	session, err := a.Checkout.CreateSession(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrCheckoutUnavailable) {
			a.error(w, http.StatusServiceUnavailable, "checkout_unavailable", "payments are not configured")
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("checkout session create failed")
		a.error(w, http.StatusBadGateway, "checkout_failed", "failed to start checkout")
		return
	}
	a.logUsage(r, userID, "", "CHECKOUT_STARTED")
	a.json(w, http.StatusOK, checkoutResponse{ID: session.ID, URL: session.URL})
}

// ConfirmUpgrade applies the entitlement after the user returns from a paid
// checkout. A failed entitlement write answers 202: the payment stands, the
// activation is still owed, and retrying with the same session id is safe.
func (a *App) ConfirmUpgrade(w http.ResponseWriter, r *http.Request) {
	ident := a.currentIdentity(r)
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.SessionID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "session_id required")
		return
	}

	result, err := a.Activator.Confirm(r.Context(), ident, req.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityUnresolved) {
			a.error(w, http.StatusUnauthorized, "unauthorized", "sign in before confirming the upgrade")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	resp := confirmResponse{
		State:             string(result.State),
		SessionID:         result.SessionID,
		ActivationPending: result.ActivationPending,
	}
	if result.ActivationPending {
		a.json(w, http.StatusAccepted, resp)
		return
	}

	// The cached "restricted" entitlement must not outlive the upgrade.
	if result.State == billing.StateUpgraded {
		a.Sessions.Session(r.Context(), ident.ID).InvalidateEntitlement()
		a.logUsage(r, ident.ID, "", "UPGRADE_CONFIRMED")
	}
	a.json(w, http.StatusOK, resp)
}

// ListUpgrades returns the caller's upgrade audit trail.
func (a *App) ListUpgrades(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QListUpgradesByUser, userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list upgrades failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load upgrades")
		return
	}
	defer rows.Close()
	items := make([]map[string]any, 0)
	for rows.Next() {
		var sessionID string
		var createdAt time.Time
		if err := rows.Scan(&sessionID, &createdAt); err != nil {
			continue
		}
		items = append(items, map[string]any{"session_id": sessionID, "created_at": createdAt})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
