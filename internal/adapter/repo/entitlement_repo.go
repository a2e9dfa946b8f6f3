package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// EntitlementRepositoryPG implements domain.EntitlementWriter backed by
// PostgreSQL. The upgrade is a merge-write: the plan flips to pro, the first
// upgrade timestamp sticks, and replaying the same checkout session id leaves
// the row unchanged.
type EntitlementRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewEntitlementRepository creates a new EntitlementRepositoryPG.
func NewEntitlementRepository(pool *pgxpool.Pool) *EntitlementRepositoryPG {
	return &EntitlementRepositoryPG{pool: pool}
}

// MarkUnrestricted flips the user to the unrestricted tier and records the
// checkout session in the upgrade audit trail. Both statements tolerate
// replays with the same session id. Write failures carry
// domain.ErrPersistenceFailure; the activator turns them into
// activation-pending, never into a claimed upgrade.
func (r *EntitlementRepositoryPG) MarkUnrestricted(ctx context.Context, userID, checkoutSessionID string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET plan = 'pro',
    upgraded_at = COALESCE(upgraded_at, NOW()),
    checkout_session_id = COALESCE(checkout_session_id, $2),
    updated_at = NOW()
WHERE id = $1;
`, userID, checkoutSessionID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	_, err = r.pool.Exec(ctx, `
INSERT INTO billing_upgrades (session_id, user_id, created_at)
VALUES ($1, $2, NOW())
ON CONFLICT (session_id) DO NOTHING;
`, checkoutSessionID, userID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	return nil
}

var _ domain.EntitlementWriter = (*EntitlementRepositoryPG)(nil)
