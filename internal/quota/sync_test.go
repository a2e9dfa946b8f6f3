package quota

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestSynchronizerFansOutToAllSubscribers(t *testing.T) {
	s := NewSynchronizer()
	a, cancelA := s.Subscribe()
	b, cancelB := s.Subscribe()
	defer cancelA()
	defer cancelB()

	s.Publish(CounterUpdate{UserID: "u1", Value: 3, Seq: 1})

	for name, ch := range map[string]<-chan CounterUpdate{"a": a, "b": b} {
		select {
		case update := <-ch:
			if update.Value != 3 || update.Seq != 1 {
				t.Fatalf("subscriber %s got %+v", name, update)
			}
		default:
			t.Fatalf("subscriber %s received nothing", name)
		}
	}
}

func TestSynchronizerCancelStopsDelivery(t *testing.T) {
	s := NewSynchronizer()
	ch, cancel := s.Subscribe()
	cancel()

	s.Publish(CounterUpdate{UserID: "u1", Value: 1, Seq: 1})

	if _, open := <-ch; open {
		t.Fatalf("expected closed channel after cancel")
	}
	if s.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", s.Subscribers())
	}
}

func TestSynchronizerSlowSubscriberIsSkippedNotBlocked(t *testing.T) {
	s := NewSynchronizer()
	ch, cancel := s.Subscribe()
	defer cancel()

	// Overfill the buffer; Publish must not block.
	for i := 0; i < subscriberBuffer+4; i++ {
		s.Publish(CounterUpdate{UserID: "u1", Value: i + 1, Seq: uint64(i + 1)})
	}

	if got := len(ch); got != subscriberBuffer {
		t.Fatalf("expected %d buffered updates, got %d", subscriberBuffer, got)
	}
}

func TestResumeBeatsStaleQueuedBroadcast(t *testing.T) {
	counters := newFakeCounterStore()
	logger := zerolog.Nop()
	manager := NewManager(counters, logger)
	sess := manager.Session(context.Background(), "u1")

	ch, cancel := sess.Subscribe()
	defer cancel()

	// Two local writes; the subscriber has both queued but has not drained.
	sess.Mirror().TryConsume(5)
	v2, seq2, _ := sess.Mirror().TryConsume(5)
	sess.bus.Publish(CounterUpdate{UserID: "u1", Value: 1, Seq: 1})
	sess.bus.Publish(CounterUpdate{UserID: "u1", Value: v2, Seq: seq2})

	// A view resuming focus re-pulls the authoritative local value instead
	// of trusting whatever is queued.
	resumed := sess.Resume(context.Background(), counters, logger)
	if resumed != 2 {
		t.Fatalf("expected resumed value 2, got %d", resumed)
	}

	// Any queued broadcast older than the resumed snapshot is discardable
	// by sequence.
	_, seq := sess.Mirror().Snapshot()
	stale := <-ch
	if stale.Seq > seq {
		t.Fatalf("queued broadcast seq %d newer than snapshot %d", stale.Seq, seq)
	}
}

func TestResumeFailureKeepsLocalMirror(t *testing.T) {
	counters := newFakeCounterStore()
	logger := zerolog.Nop()
	manager := NewManager(counters, logger)
	sess := manager.Session(context.Background(), "u1")

	sess.Mirror().TryConsume(5)
	counters.getErr = context.DeadlineExceeded

	if got := sess.Resume(context.Background(), counters, logger); got != 1 {
		t.Fatalf("expected local value 1 kept on resync failure, got %d", got)
	}
}

func TestManagerDropDestroysSession(t *testing.T) {
	counters := newFakeCounterStore()
	counters.values["u1"] = 4
	logger := zerolog.Nop()
	manager := NewManager(counters, logger)

	sess := manager.Session(context.Background(), "u1")
	if got := sess.Mirror().Value(); got != 4 {
		t.Fatalf("expected mirror seeded to 4, got %d", got)
	}
	ch, cancel := sess.Subscribe()
	defer cancel()

	manager.Drop("u1")
	if _, open := <-ch; open {
		t.Fatalf("expected subscriber channel closed on drop")
	}

	// A new login starts from the durable value, not the old mirror.
	counters.values["u1"] = 6
	fresh := manager.Session(context.Background(), "u1")
	if fresh == sess {
		t.Fatalf("expected a fresh session after drop")
	}
	if got := fresh.Mirror().Value(); got != 6 {
		t.Fatalf("expected reseeded mirror 6, got %d", got)
	}
}
