package quota

import "sync"

// Mirror is the session-local copy of the durable download counter. It gives
// the UI an instant answer while the durable write happens in the
// background. All mutations are atomic with respect to reads, so two
// back-to-back consume attempts can never observe the same pre-increment
// value.
type Mirror struct {
	mu       sync.Mutex
	value    int
	seq      uint64
	loaded   bool
	inflight int
}

func NewMirror() *Mirror {
	return &Mirror{}
}

// Value returns the current counter value.
func (m *Mirror) Value() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// Seq returns the sequence number of the most recent local write. Consumers
// use it to discard stale broadcasts: a queued update with a lower sequence
// never wins over the value read here.
func (m *Mirror) Seq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// Snapshot returns the value together with its sequence number.
func (m *Mirror) Snapshot() (int, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.seq
}

// Dirty reports whether a background persist is still in flight.
func (m *Mirror) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight > 0
}

// Reconcile merges a durable counter value into the mirror. The mirror never
// regresses below what this session already observed: an optimistic local
// increment whose persist is still pending (or failed) stays visible, while
// a higher durable value from another device wins.
func (m *Mirror) Reconcile(durable int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded || durable > m.value {
		m.value = durable
		m.seq++
	}
	m.loaded = true
	return m.value
}

// TryConsume atomically increments the counter when it is below limit. The
// increment is applied synchronously, before any durable write starts, so
// the caller (and any concurrent caller) immediately observes the new value.
func (m *Mirror) TryConsume(limit int) (value int, seq uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.value >= limit {
		return m.value, m.seq, false
	}
	m.value++
	m.seq++
	m.inflight++
	m.loaded = true
	return m.value, m.seq, true
}

// PersistDone marks one in-flight durable write as finished, successful or
// not. A failed persist does not roll the value back; the drift is repaired
// on the next Reconcile against a successful read.
func (m *Mirror) PersistDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight > 0 {
		m.inflight--
	}
}
