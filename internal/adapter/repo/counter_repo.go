package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// CounterRepositoryPG implements domain.CounterStore backed by PostgreSQL.
// The stored value never regresses: a Put carrying a value lower than what
// is already on disk is a no-op thanks to GREATEST in the upsert.
type CounterRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCounterRepository creates a new CounterRepositoryPG.
func NewCounterRepository(pool *pgxpool.Pool) *CounterRepositoryPG {
	return &CounterRepositoryPG{pool: pool}
}

// Get returns the persisted download count for the user. A user with no
// counter row yet has a count of zero, not an error.
func (r *CounterRepositoryPG) Get(ctx context.Context, userID string) (int, error) {
	row := r.pool.QueryRow(ctx, `SELECT download_count FROM download_counters WHERE user_id = $1`, userID)

	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// Put persists an observed counter value for the user. Failures carry
// domain.ErrPersistenceFailure; the download path logs and swallows them.
func (r *CounterRepositoryPG) Put(ctx context.Context, userID string, value int) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO download_counters (user_id, download_count, period_started_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE
SET download_count = GREATEST(download_counters.download_count, EXCLUDED.download_count),
    updated_at = NOW();
`, userID, value)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	return nil
}

var _ domain.CounterStore = (*CounterRepositoryPG)(nil)
