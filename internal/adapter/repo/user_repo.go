package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// UserRepositoryPG implements domain.UserStore backed by PostgreSQL.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

const userColumns = `id, google_sub, email, name, picture, locale, plan, upgraded_at, checkout_session_id, created_at, updated_at`

// UpsertByGoogleSub inserts or updates a user based on Google sub value.
func (r *UserRepositoryPG) UpsertByGoogleSub(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
INSERT INTO users (id, google_sub, email, name, picture, locale, plan)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (google_sub) DO UPDATE
SET email = EXCLUDED.email,
    name = EXCLUDED.name,
    picture = EXCLUDED.picture,
    locale = EXCLUDED.locale,
    updated_at = NOW()
RETURNING ` + userColumns + `;
`

	row := r.pool.QueryRow(ctx, query,
		user.ID,
		user.GoogleSub,
		user.Email,
		user.Name,
		user.Picture,
		user.Locale,
		user.Plan,
	)

	return scanUser(row)
}

// GetByID fetches a user by UUID.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByGoogleSub fetches a user by Google subject identifier.
func (r *UserRepositoryPG) GetByGoogleSub(ctx context.Context, sub string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE google_sub = $1`, sub)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var checkoutSessionID *string
	if err := row.Scan(&u.ID, &u.GoogleSub, &u.Email, &u.Name, &u.Picture, &u.Locale, &u.Plan, &u.UpgradedAt, &checkoutSessionID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if checkoutSessionID != nil {
		u.CheckoutSessionID = *checkoutSessionID
	}
	return &u, nil
}
