package quota

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// Session is the explicit per-login context holding the counter mirror, the
// view synchronizer and the cached entitlement. It replaces ambient global
// state: everything a gate decision needs travels through here.
type Session struct {
	UserID string

	mirror *Mirror
	bus    *Synchronizer

	seedOnce sync.Once
	lastUsed time.Time // guarded by Manager.mu

	entMu sync.Mutex
	ent   *Entitlement
}

func newSession(userID string) *Session {
	return &Session{
		UserID: userID,
		mirror: NewMirror(),
		bus:    NewSynchronizer(),
	}
}

// Mirror exposes the session's local counter mirror.
func (s *Session) Mirror() *Mirror {
	return s.mirror
}

// Subscribe attaches a view to the session's counter updates.
func (s *Session) Subscribe() (<-chan CounterUpdate, func()) {
	return s.bus.Subscribe()
}

// Views reports how many views are currently attached to the session.
func (s *Session) Views() int {
	return s.bus.Subscribers()
}

// Resume re-synchronizes the mirror from the durable store, as when a view
// regains focus or history navigation returns to it. On a read failure the
// local mirror stays authoritative; it can only be ahead of the durable
// value within this session.
func (s *Session) Resume(ctx context.Context, counters domain.CounterStore, logger zerolog.Logger) int {
	durable, err := counters.Get(ctx, s.UserID)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", s.UserID).Msg("quota: counter resync failed, keeping local mirror")
		return s.mirror.Value()
	}
	return s.mirror.Reconcile(durable)
}

// Entitlement resolves and caches the user's tier for this session.
func (s *Session) Entitlement(ctx context.Context, resolver *Resolver, ident domain.Identity) (Entitlement, error) {
	s.entMu.Lock()
	if s.ent != nil {
		ent := *s.ent
		s.entMu.Unlock()
		return ent, nil
	}
	s.entMu.Unlock()

	ent, err := resolver.Resolve(ctx, ident)
	if err != nil {
		return Entitlement{}, err
	}

	s.entMu.Lock()
	s.ent = &ent
	s.entMu.Unlock()
	return ent, nil
}

// InvalidateEntitlement drops the cached tier so the next gate decision
// re-resolves it. Called after an upgrade completes; stale "restricted"
// state must not outlive the transition.
func (s *Session) InvalidateEntitlement() {
	s.entMu.Lock()
	s.ent = nil
	s.entMu.Unlock()
}

func (s *Session) close() {
	s.bus.Close()
}

// Manager tracks one Session per signed-in user. Sessions are created on
// first use, seeded from the durable counter, and dropped on logout (the
// mirror dies with the session).
type Manager struct {
	counters domain.CounterStore
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(counters domain.CounterStore, logger zerolog.Logger) *Manager {
	return &Manager{
		counters: counters,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for userID, creating and seeding it when the
// user signs in for the first time this process.
func (m *Manager) Session(ctx context.Context, userID string) *Session {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if !ok {
		sess = newSession(userID)
		m.sessions[userID] = sess
	}
	sess.lastUsed = time.Now()
	m.mu.Unlock()

	// First load: seed the mirror from the durable store. Every caller
	// funnels through the once, so a concurrent request cannot consume the
	// mirror before it holds the durable value. A failed read leaves the
	// mirror at zero and the next Resume repairs it; the gate stays
	// fail-closed either way.
	sess.seedOnce.Do(func() {
		sess.Resume(ctx, m.counters, m.logger)
	})
	return sess
}

// Drop destroys the session on identity change or logout.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if ok {
		sess.close()
	}
}

// SweepIdle drops sessions untouched for longer than maxIdle that have no
// attached views, returning how many were removed. A live event stream keeps
// its session; a swept user simply reseeds from the durable counter on the
// next request.
func (m *Manager) SweepIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	var dropped []*Session
	for id, sess := range m.sessions {
		if sess.lastUsed.Before(cutoff) && sess.bus.Subscribers() == 0 {
			delete(m.sessions, id)
			dropped = append(dropped, sess)
		}
	}
	m.mu.Unlock()
	for _, sess := range dropped {
		sess.close()
	}
	return len(dropped)
}
