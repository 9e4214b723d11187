package token

import "sync"

// Metrics tracks operational statistics for a Store. It exists purely for
// logging/observability; no operation in spec §4.1 depends on it, and no
// endpoint in spec §6 surfaces it directly.
//
// Grounded on the mutex-guarded counter struct in
// auth/token/robust_store.go's Metrics type.
type Metrics struct {
	mu             sync.Mutex
	Created        int64
	Rotated        int64
	RotateRejected int64
	Removed        int64
	Purged         int64
}

func (m *Metrics) incCreated() {
	m.mu.Lock()
	m.Created++
	m.mu.Unlock()
}

func (m *Metrics) incRotated() {
	m.mu.Lock()
	m.Rotated++
	m.mu.Unlock()
}

func (m *Metrics) incRotateRejected() {
	m.mu.Lock()
	m.RotateRejected++
	m.mu.Unlock()
}

func (m *Metrics) incRemoved() {
	m.mu.Lock()
	m.Removed++
	m.mu.Unlock()
}

func (m *Metrics) addPurged(n int64) {
	if n == 0 {
		return
	}
	m.mu.Lock()
	m.Purged += n
	m.mu.Unlock()
}

// MetricsSnapshot is a lock-free, point-in-time copy of Metrics' counters,
// safe to pass around and copy freely since it carries no mutex.
type MetricsSnapshot struct {
	Created        int64
	Rotated        int64
	RotateRejected int64
	Removed        int64
	Purged         int64
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Created:        m.Created,
		Rotated:        m.Rotated,
		RotateRejected: m.RotateRejected,
		Removed:        m.Removed,
		Purged:         m.Purged,
	}
}
