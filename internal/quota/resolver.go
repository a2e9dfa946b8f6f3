package quota

import (
	"context"
	"errors"
	"fmt"

	"server/internal/domain"
)

// Entitlement reports whether the user is exempt from the download quota.
type Entitlement struct {
	Unrestricted bool
}

// Resolver determines the user's tier from the durable user record. It is
// read-only and fail-closed: an unknown user is free tier, and a lookup
// failure is an error the caller must treat as "restricted", never as an
// implicit grant.
type Resolver struct {
	users domain.UserStore
}

func NewResolver(users domain.UserStore) *Resolver {
	return &Resolver{users: users}
}

// Resolve returns the entitlement for a verified identity.
func (r *Resolver) Resolve(ctx context.Context, ident domain.Identity) (Entitlement, error) {
	if !ident.Verified || ident.ID == "" {
		return Entitlement{}, domain.ErrIdentityUnresolved
	}
	user, err := r.users.GetByID(ctx, ident.ID)
	if errors.Is(err, domain.ErrNotFound) {
		// Never-before-seen user: free tier, not unlimited.
		return Entitlement{Unrestricted: false}, nil
	}
	if err != nil {
		return Entitlement{}, fmt.Errorf("resolve entitlement: %w", err)
	}
	return Entitlement{Unrestricted: user.IsPro()}, nil
}
