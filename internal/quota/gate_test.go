package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

type fakeUserStore struct {
	users map[string]*domain.User
	err   error
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

type fakeCounterStore struct {
	mu       sync.Mutex
	values   map[string]int
	puts     []int
	getErr   error
	putErr   error
	getDelay time.Duration // set before the store is shared
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{values: map[string]int{}}
}

func (f *fakeCounterStore) Get(_ context.Context, userID string) (int, error) {
	if f.getDelay > 0 {
		time.Sleep(f.getDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return 0, f.getErr
	}
	return f.values[userID], nil
}

func (f *fakeCounterStore) Put(_ context.Context, userID string, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, value)
	if value > f.values[userID] {
		f.values[userID] = value
	}
	return nil
}

type fakeResourceCounters struct {
	mu         sync.Mutex
	increments map[string]int
	err        error
}

func newFakeResourceCounters() *fakeResourceCounters {
	return &fakeResourceCounters{increments: map[string]int{}}
}

func (f *fakeResourceCounters) IncrementDownloads(_ context.Context, resourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.increments[resourceID]++
	return nil
}

func (f *fakeResourceCounters) count(resourceID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.increments[resourceID]
}

type gateFixture struct {
	gate      *Gate
	manager   *Manager
	users     *fakeUserStore
	counters  *fakeCounterStore
	resources *fakeResourceCounters
}

func newGateFixture(limit int) *gateFixture {
	users := &fakeUserStore{users: map[string]*domain.User{}}
	counters := newFakeCounterStore()
	resources := newFakeResourceCounters()
	logger := zerolog.Nop()
	return &gateFixture{
		gate:      NewGate(NewResolver(users), counters, resources, limit, logger),
		manager:   NewManager(counters, logger),
		users:     users,
		counters:  counters,
		resources: resources,
	}
}

func freeUser(id string) *domain.User {
	return &domain.User{ID: id, Plan: domain.UserPlanFree}
}

func proUser(id string) *domain.User {
	return &domain.User{ID: id, Plan: domain.UserPlanPro}
}

func verified(id string) domain.Identity {
	return domain.Identity{ID: id, DisplayName: "Test User", Verified: true}
}

func TestRequestDownload_RestrictedUnderLimitIncrementsMirror(t *testing.T) {
	f := newGateFixture(5)
	f.users.users["u1"] = freeUser("u1")
	f.counters.values["u1"] = 2

	sess := f.manager.Session(context.Background(), "u1")
	decision, err := f.gate.RequestDownload(context.Background(), sess, verified("u1"), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allowed, got %+v", decision)
	}
	if got := sess.Mirror().Value(); got != 3 {
		t.Fatalf("expected mirror 3, got %d", got)
	}
	if decision.Remaining != 2 {
		t.Fatalf("expected 2 remaining, got %d", decision.Remaining)
	}

	f.gate.Wait()
	if f.counters.values["u1"] != 3 {
		t.Fatalf("expected durable counter 3, got %d", f.counters.values["u1"])
	}
	if f.resources.count("r1") != 1 {
		t.Fatalf("expected 1 resource increment, got %d", f.resources.count("r1"))
	}
}

func TestRequestDownload_AtLimitDeniesWithoutMutation(t *testing.T) {
	f := newGateFixture(5)
	f.users.users["u1"] = freeUser("u1")
	f.counters.values["u1"] = 5

	sess := f.manager.Session(context.Background(), "u1")
	decision, err := f.gate.RequestDownload(context.Background(), sess, verified("u1"), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected denial, got %+v", decision)
	}
	if decision.Reason != ReasonQuotaExceeded {
		t.Fatalf("expected quota_exceeded, got %q", decision.Reason)
	}
	if got := sess.Mirror().Value(); got != 5 {
		t.Fatalf("expected mirror unchanged at 5, got %d", got)
	}

	f.gate.Wait()
	if len(f.counters.puts) != 0 {
		t.Fatalf("expected no durable writes, got %v", f.counters.puts)
	}
	if f.resources.count("r1") != 0 {
		t.Fatalf("expected no resource increment, got %d", f.resources.count("r1"))
	}
}

func TestRequestDownload_LastFreeDownloadThenDenied(t *testing.T) {
	f := newGateFixture(5)
	f.users.users["u1"] = freeUser("u1")
	f.counters.values["u1"] = 4

	sess := f.manager.Session(context.Background(), "u1")

	first, err := f.gate.RequestDownload(context.Background(), sess, verified("u1"), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Allowed || first.Counter != 5 || first.Remaining != 0 {
		t.Fatalf("unexpected first decision: %+v", first)
	}

	second, err := f.gate.RequestDownload(context.Background(), sess, verified("u1"), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Allowed || second.Reason != ReasonQuotaExceeded {
		t.Fatalf("unexpected second decision: %+v", second)
	}
	if got := sess.Mirror().Value(); got != 5 {
		t.Fatalf("expected mirror 5, got %d", got)
	}
}

func TestRequestDownload_UnrestrictedNeverTouchesCounter(t *testing.T) {
	f := newGateFixture(5)
	f.users.users["pro"] = proUser("pro")
	f.counters.values["pro"] = 5 // over the limit from before upgrading

	sess := f.manager.Session(context.Background(), "pro")
	for i := 0; i < 10; i++ {
		decision, err := f.gate.RequestDownload(context.Background(), sess, verified("pro"), "r1")
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if !decision.Allowed || !decision.Unrestricted {
			t.Fatalf("call %d: expected unrestricted allow, got %+v", i, decision)
		}
	}

	f.gate.Wait()
	if got := sess.Mirror().Value(); got != 5 {
		t.Fatalf("expected frozen counter 5, got %d", got)
	}
	if len(f.counters.puts) != 0 {
		t.Fatalf("expected no durable counter writes, got %v", f.counters.puts)
	}
	if f.resources.count("r1") != 10 {
		t.Fatalf("expected 10 resource increments, got %d", f.resources.count("r1"))
	}
}

func TestRequestDownload_BackToBackObserveDistinctValues(t *testing.T) {
	f := newGateFixture(5)
	f.users.users["u1"] = freeUser("u1")
	// Block durable persistence entirely: both requests run before any
	// persist resolves.
	f.counters.putErr = errors.New("store offline")

	sess := f.manager.Session(context.Background(), "u1")

	first, err := f.gate.RequestDownload(context.Background(), sess, verified("u1"), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.gate.RequestDownload(context.Background(), sess, verified("u1"), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Counter == second.Counter {
		t.Fatalf("both requests observed counter %d", first.Counter)
	}
	if first.Counter != 1 || second.Counter != 2 {
		t.Fatalf("expected counters 1 and 2, got %d and %d", first.Counter, second.Counter)
	}
}

func TestRequestDownload_FailedPersistKeepsOptimisticValue(t *testing.T) {
	f := newGateFixture(5)
	f.users.users["u1"] = freeUser("u1")
	f.counters.values["u1"] = 3
	f.counters.putErr = errors.New("network down")

	sess := f.manager.Session(context.Background(), "u1")
	decision, err := f.gate.RequestDownload(context.Background(), sess, verified("u1"), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allowed despite persist failure, got %+v", decision)
	}
	f.gate.Wait()

	if got := sess.Mirror().Value(); got != 4 {
		t.Fatalf("expected local mirror 4, got %d", got)
	}
	if f.counters.values["u1"] != 3 {
		t.Fatalf("expected durable store still at 3, got %d", f.counters.values["u1"])
	}
	if sess.Mirror().Dirty() {
		t.Fatalf("expected no persists marked in flight after Wait")
	}
}

func TestRequestDownload_EntitlementLookupFailureFailsClosed(t *testing.T) {
	f := newGateFixture(5)
	f.users.err = errors.New("identity service down")
	f.counters.values["u1"] = 5

	sess := f.manager.Session(context.Background(), "u1")
	decision, err := f.gate.RequestDownload(context.Background(), sess, verified("u1"), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("lookup failure must not grant a download at the limit, got %+v", decision)
	}
}

func TestRequestDownload_UnverifiedIdentityRejected(t *testing.T) {
	f := newGateFixture(5)
	sess := f.manager.Session(context.Background(), "u1")

	_, err := f.gate.RequestDownload(context.Background(), sess, domain.Identity{ID: "u1"}, "r1")
	if !errors.Is(err, domain.ErrIdentityUnresolved) {
		t.Fatalf("expected ErrIdentityUnresolved, got %v", err)
	}
}

func TestSessionEntitlementCacheInvalidation(t *testing.T) {
	f := newGateFixture(5)
	f.users.users["u1"] = freeUser("u1")
	f.counters.values["u1"] = 5

	sess := f.manager.Session(context.Background(), "u1")
	decision, err := f.gate.RequestDownload(context.Background(), sess, verified("u1"), "r1")
	if err != nil || decision.Allowed {
		t.Fatalf("expected denial before upgrade, got %+v err=%v", decision, err)
	}

	// Upgrade lands; the session must re-resolve before the next check.
	f.users.users["u1"] = proUser("u1")
	sess.InvalidateEntitlement()

	decision, err = f.gate.RequestDownload(context.Background(), sess, verified("u1"), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed || !decision.Unrestricted {
		t.Fatalf("expected unrestricted allow after upgrade, got %+v", decision)
	}
	if got := sess.Mirror().Value(); got != 5 {
		t.Fatalf("expected counter frozen at 5, got %d", got)
	}
}
