package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// ResourceCountersPG implements domain.ResourceCounters backed by PostgreSQL.
type ResourceCountersPG struct {
	pool *pgxpool.Pool
}

// NewResourceCounters creates a new ResourceCountersPG.
func NewResourceCounters(pool *pgxpool.Pool) *ResourceCountersPG {
	return &ResourceCountersPG{pool: pool}
}

// IncrementDownloads bumps the aggregate download counter for a resource.
// The increment runs inside the database so concurrent bumps commute; it is
// never computed from a previously read value.
func (r *ResourceCountersPG) IncrementDownloads(ctx context.Context, resourceID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE resources SET downloads = downloads + 1, updated_at = NOW() WHERE id = $1`, resourceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.ResourceCounters = (*ResourceCountersPG)(nil)
