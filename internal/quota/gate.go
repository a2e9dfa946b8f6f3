package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// DefaultFreeLimit is the number of downloads a free-tier user gets.
const DefaultFreeLimit = 5

// DenyReason classifies a refused download.
type DenyReason string

const ReasonQuotaExceeded DenyReason = "quota_exceeded"

// Decision is the outcome of a download request.
type Decision struct {
	Allowed      bool
	Reason       DenyReason
	Unrestricted bool
	// Counter and Remaining describe the free-tier counter after the
	// decision. Both are zero-valued for unrestricted users, whose counter
	// is frozen.
	Counter   int
	Remaining int
}

const persistTimeout = 10 * time.Second

// Gate decides whether a download is permitted and keeps the per-user and
// per-resource counters moving. The local mirror is updated synchronously
// before any network round-trip; durable bookkeeping runs in the background
// and is deliberately best effort (an optimistic increment is never rolled
// back, the durable store catches up on the next successful read).
type Gate struct {
	resolver  *Resolver
	counters  domain.CounterStore
	resources domain.ResourceCounters
	limit     int
	logger    zerolog.Logger

	persists sync.WaitGroup
}

func NewGate(resolver *Resolver, counters domain.CounterStore, resources domain.ResourceCounters, limit int, logger zerolog.Logger) *Gate {
	if limit <= 0 {
		limit = DefaultFreeLimit
	}
	return &Gate{
		resolver:  resolver,
		counters:  counters,
		resources: resources,
		limit:     limit,
		logger:    logger,
	}
}

// Limit returns the free-tier download limit.
func (g *Gate) Limit() int {
	return g.limit
}

// RequestDownload runs the quota decision for one (user, resource) request.
//
// Unrestricted users pass through; only the aggregate resource counter
// moves. Restricted users consume the mirror under the limit: the increment
// is synchronous and atomic with the read, so a second request issued before
// any persist resolves observes the incremented value. At or over the limit
// the request is refused with no side effects.
func (g *Gate) RequestDownload(ctx context.Context, sess *Session, ident domain.Identity, resourceID string) (Decision, error) {
	ent, err := sess.Entitlement(ctx, g.resolver, ident)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityUnresolved) {
			return Decision{}, err
		}
		// Lookup failure: unknown tier defaults to restricted, never to
		// unlimited.
		g.logger.Warn().Err(err).Str("user_id", sess.UserID).Msg("quota: entitlement lookup failed, treating as restricted")
		ent = Entitlement{Unrestricted: false}
	}

	if ent.Unrestricted {
		g.bumpResource(resourceID)
		return Decision{Allowed: true, Unrestricted: true}, nil
	}

	value, seq, ok := sess.mirror.TryConsume(g.limit)
	if !ok {
		return Decision{
			Allowed:   false,
			Reason:    ReasonQuotaExceeded,
			Counter:   value,
			Remaining: 0,
		}, nil
	}

	sess.bus.Publish(CounterUpdate{UserID: sess.UserID, Value: value, Seq: seq})
	g.persistCounter(sess, value)
	g.bumpResource(resourceID)

	remaining := g.limit - value
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Counter: value, Remaining: remaining}, nil
}

// persistCounter writes the observed counter value to the durable store in
// the background. A failure is logged and swallowed: the download already
// happened, so under-counting the durable record beats blocking the user
// retroactively.
func (g *Gate) persistCounter(sess *Session, value int) {
	g.persists.Add(1)
	go func() {
		defer g.persists.Done()
		defer sess.mirror.PersistDone()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := g.counters.Put(ctx, sess.UserID, value); err != nil {
			g.logger.Error().Err(err).
				Str("user_id", sess.UserID).
				Int("value", value).
				Msg("quota: download counter persist failed")
		}
	}()
}

// bumpResource increments the aggregate downloads counter for the resource.
// Pure bookkeeping: it must not delay or veto the user-visible download.
func (g *Gate) bumpResource(resourceID string) {
	g.persists.Add(1)
	go func() {
		defer g.persists.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := g.resources.IncrementDownloads(ctx, resourceID); err != nil {
			g.logger.Error().Err(err).
				Str("resource_id", resourceID).
				Msg("quota: resource download counter increment failed")
		}
	}()
}

// Wait blocks until all background persists have settled. Used on shutdown
// and in tests.
func (g *Gate) Wait() {
	g.persists.Wait()
}
