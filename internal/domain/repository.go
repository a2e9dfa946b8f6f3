package domain

import "context"

// UserStore defines the durable user record lookups needed by entitlement
// resolution.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*User, error)
}

// CounterStore is the durable per-user download counter. Put persists an
// observed value; implementations must never let the stored value regress
// (the last write carries the highest value this device has seen).
type CounterStore interface {
	Get(ctx context.Context, userID string) (int, error)
	Put(ctx context.Context, userID string, value int) error
}

// ResourceCounters mutates the aggregate per-resource download counter. The
// increment must be commutative, never computed from a previously read
// value.
type ResourceCounters interface {
	IncrementDownloads(ctx context.Context, resourceID string) error
}

// EntitlementWriter applies the paid-tier upgrade. MarkUnrestricted is an
// idempotent merge-write: repeating it with the same checkout session id
// yields the same final state.
type EntitlementWriter interface {
	MarkUnrestricted(ctx context.Context, userID, checkoutSessionID string) error
}
