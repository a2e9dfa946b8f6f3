package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// UpgradeState tracks the entitlement activation that follows an external
// checkout. Payment success and entitlement-write success are distinct
// facts; the state machine keeps them apart.
type UpgradeState string

const (
	StatePending    UpgradeState = "pending"
	StateConfirming UpgradeState = "confirming"
	StateUpgraded   UpgradeState = "upgraded"
	StateFailed     UpgradeState = "failed"
)

// Result describes the outcome of a confirmation attempt. When the payment
// went through but the entitlement write did not, ActivationPending is set
// and the caller must not claim the account is upgraded.
type Result struct {
	State             UpgradeState
	SessionID         string
	ActivationPending bool
}

// Activator runs the Pending -> Confirming -> Upgraded | Failed transition.
type Activator struct {
	writer domain.EntitlementWriter
	logger zerolog.Logger
}

func NewActivator(writer domain.EntitlementWriter, logger zerolog.Logger) *Activator {
	return &Activator{writer: writer, logger: logger}
}

// Confirm applies the entitlement upgrade for a checkout session. The write
// only runs against a verified identity; confirming with a stale or
// unauthenticated identity stays Pending. The underlying write is an
// idempotent merge, so re-confirming the same session id converges on the
// same final state.
func (a *Activator) Confirm(ctx context.Context, ident domain.Identity, sessionID string) (Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Result{State: StatePending}, errors.New("billing: checkout session id is required")
	}
	if !ident.Verified || ident.ID == "" {
		return Result{State: StatePending, SessionID: sessionID}, domain.ErrIdentityUnresolved
	}

	a.logger.Info().Str("user_id", ident.ID).Str("session_id", sessionID).Msg("billing: confirming upgrade")

	if err := a.writer.MarkUnrestricted(ctx, ident.ID, sessionID); err != nil {
		// The payment already succeeded upstream; surface that activation is
		// still owed instead of pretending the account is upgraded.
		a.logger.Error().Err(err).
			Str("user_id", ident.ID).
			Str("session_id", sessionID).
			Msg("billing: entitlement write failed, activation pending")
		return Result{State: StateFailed, SessionID: sessionID, ActivationPending: true}, nil
	}

	return Result{State: StateUpgraded, SessionID: sessionID}, nil
}
