package quota

import (
	"sync"

	"github.com/google/uuid"
)

// CounterUpdate is broadcast to every open view of a session whenever the
// local mirror changes.
type CounterUpdate struct {
	UserID string `json:"user_id"`
	Value  int    `json:"value"`
	Seq    uint64 `json:"seq"`
}

// Synchronizer fans counter updates out to the other active views of the
// same session. Delivery is best effort: a subscriber whose buffer is full
// misses the update and re-pulls the authoritative mirror on resume, which
// is also how a stale queued broadcast is prevented from overwriting a newer
// local value (last write wins by sequence, not by arrival order).
type Synchronizer struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]chan CounterUpdate
	closed bool
}

const subscriberBuffer = 8

func NewSynchronizer() *Synchronizer {
	return &Synchronizer{subs: make(map[uuid.UUID]chan CounterUpdate)}
}

// Subscribe registers a view. The returned cancel function must be called
// when the view goes away.
func (s *Synchronizer) Subscribe() (<-chan CounterUpdate, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan CounterUpdate, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := uuid.New()
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// Publish sends the update to every subscriber without blocking the
// publisher. Slow views are skipped; they reconcile on resume.
func (s *Synchronizer) Publish(update CounterUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, ch := range s.subs {
		select {
		case ch <- update:
		default:
		}
	}
}

// Close tears the synchronizer down, closing all subscriber channels.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Subscribers returns the current subscriber count.
func (s *Synchronizer) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
