package quota

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSessionSeedCompletesBeforeConcurrentGateDecision(t *testing.T) {
	f := newGateFixture(5)
	f.users.users["u1"] = freeUser("u1")
	f.counters.values["u1"] = 5
	f.counters.getDelay = 50 * time.Millisecond

	// Both requests race the first-touch seed. Neither may consume the
	// mirror before it holds the durable value, so a user at the limit gets
	// two denials, never a download.
	start := make(chan struct{})
	decisions := make(chan Decision, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			sess := f.manager.Session(context.Background(), "u1")
			decision, err := f.gate.RequestDownload(context.Background(), sess, verified("u1"), "r1")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			decisions <- decision
		}()
	}
	close(start)
	wg.Wait()
	close(decisions)

	for decision := range decisions {
		if decision.Allowed {
			t.Fatalf("download allowed while the durable counter is at the limit: %+v", decision)
		}
	}
	f.gate.Wait()
	if len(f.counters.puts) != 0 {
		t.Fatalf("expected no durable writes, got %v", f.counters.puts)
	}
}

func TestManagerSweepsIdleSessions(t *testing.T) {
	f := newGateFixture(5)
	f.counters.values["u1"] = 3

	sess := f.manager.Session(context.Background(), "u1")
	f.manager.mu.Lock()
	sess.lastUsed = time.Now().Add(-time.Hour)
	f.manager.mu.Unlock()

	if n := f.manager.SweepIdle(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 swept session, got %d", n)
	}

	// The next request builds a fresh session and reseeds it from the
	// durable store.
	again := f.manager.Session(context.Background(), "u1")
	if again == sess {
		t.Fatalf("expected a fresh session after the sweep")
	}
	if got := again.Mirror().Value(); got != 3 {
		t.Fatalf("expected reseeded mirror 3, got %d", got)
	}
}

func TestManagerSweepKeepsSessionsWithAttachedViews(t *testing.T) {
	f := newGateFixture(5)

	sess := f.manager.Session(context.Background(), "u1")
	_, cancel := sess.Subscribe()
	defer cancel()
	f.manager.mu.Lock()
	sess.lastUsed = time.Now().Add(-time.Hour)
	f.manager.mu.Unlock()

	if n := f.manager.SweepIdle(30 * time.Minute); n != 0 {
		t.Fatalf("expected the streaming session to survive, swept %d", n)
	}
	if again := f.manager.Session(context.Background(), "u1"); again != sess {
		t.Fatalf("expected the same session instance")
	}
}
