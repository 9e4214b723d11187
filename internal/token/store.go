// Package token implements the one-shot token store described in spec §3
// and §4.1 (components C1-C4): opaque token identifiers, caller-supplied
// metadata, and a concurrency-safe map from token to entry with
// create/rotate/remove/purge/dump operations.
package token

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/HaKr/token-server/logger"
)

// numShards partitions the store the way spec §9 recommends ("a sharded
// map (bucket by hash of token) is a natural way to scale write
// throughput"), generalizing the single sync.RWMutex-guarded map of
// physical/inmem/inmem.go to N independently-locked buckets.
const numShards = 32

type shard struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// Store is the concurrent token → entry mapping of spec §3/§4.1 (C4). All
// mutating operations complete synchronously inside a shard's critical
// section, never suspending mid-operation, per spec §5's "mutation of the
// store's in-memory structures MUST NOT suspend mid-operation."
type Store struct {
	shards   [numShards]*shard
	lifetime time.Duration
	log      *logger.GatedLogger
	metrics  Metrics
}

// New constructs an empty Store with the given per-token lifetime (the TTL
// applied to every newly created or rotated entry, per spec §3). log
// follows the teacher's convention of threading the concrete
// *logger.GatedLogger through collaborators (see listener/api.ApiListenerConfig)
// rather than the logger.Logger interface, since GatedLogger's own
// WithSystem/WithSubsystem/WithFields return *GatedLogger and so don't
// satisfy that interface.
func New(lifetime time.Duration, log *logger.GatedLogger) *Store {
	s := &Store{lifetime: lifetime, log: log}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*Entry)}
	}
	return s
}

func (s *Store) indexFor(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % numShards)
}

// lockPair acquires the write locks for shard indices a and b in a fixed,
// ascending order so that two concurrent rotations touching the same two
// shards (in opposite roles) can never deadlock, per spec §9: "take both
// shards' locks in a deterministic order." It returns an unlock function
// that releases them in the reverse order.
func (s *Store) lockPair(a, b int) func() {
	if a == b {
		s.shards[a].mu.Lock()
		return func() { s.shards[a].mu.Unlock() }
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	s.shards[lo].mu.Lock()
	s.shards[hi].mu.Lock()
	return func() {
		s.shards[hi].mu.Unlock()
		s.shards[lo].mu.Unlock()
	}
}

// assertOwnKey enforces invariant I1 (spec §3: "every key in the store is
// the token field of its value"). A violation here is a programmer error,
// not an operational condition, so the process aborts rather than limping
// on with a corrupted store (spec §7: "Invariant violations... Fatal; the
// process aborts.").
func (s *Store) assertOwnKey(key string, e *Entry) {
	if e.ID != key {
		if s.log != nil {
			s.log.Fatal("token store invariant I1 violated: map key does not match entry token",
				logger.String("key", key), logger.String("entry_token", e.ID))
		}
		panic(fmt.Sprintf("token store invariant I1 violated: key=%s entry.ID=%s", key, e.ID))
	}
}

// Create generates a fresh token bound to meta and inserts it with a fresh
// expiry (spec §4.1: create). It does not fail under normal conditions;
// the only failure mode is entropy exhaustion or exhausting the collision
// retry budget, both of which are treated as ordinary errors here rather
// than invariant violations.
func (s *Store) Create(meta Metadata) (string, error) {
	clone := meta.Clone()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate, err := newID()
		if err != nil {
			return "", err
		}

		idx := s.indexFor(candidate)
		sh := s.shards[idx]

		sh.mu.Lock()
		if _, exists := sh.entries[candidate]; exists {
			sh.mu.Unlock()
			continue
		}

		entry := &Entry{ID: candidate, Meta: clone, ExpiresAt: time.Now().Add(s.lifetime)}
		s.assertOwnKey(candidate, entry)
		sh.entries[candidate] = entry
		sh.mu.Unlock()

		s.metrics.incCreated()
		return candidate, nil
	}

	return "", fmt.Errorf("create token: exhausted id generation attempts")
}

// Rotate implements the one-shot exchange of spec §4.1: it looks up
// oldID, and if it is live, atomically removes it and inserts a
// freshly-minted replacement carrying the merged metadata. Concurrent
// rotations of the same token race for the old entry; exactly one wins and
// the rest observe ErrInvalidToken (spec §4.1 and property P1).
//
// hasOverlay distinguishes "no meta field in the request" from "meta: {}"
// — only the former leaves the existing metadata completely untouched,
// matching spec §4.1 step 3 ("new_meta = merge(old.meta, meta) if meta is
// provided; else new_meta = old.meta").
func (s *Store) Rotate(oldID string, overlay Metadata, hasOverlay bool) (string, Metadata, error) {
	oldIdx := s.indexFor(oldID)

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate, err := newID()
		if err != nil {
			return "", nil, err
		}
		newIdx := s.indexFor(candidate)

		unlock := s.lockPair(oldIdx, newIdx)

		old, ok := s.shards[oldIdx].entries[oldID]
		now := time.Now()
		if !ok || old.expired(now) {
			unlock()
			s.metrics.incRotateRejected()
			return "", nil, ErrInvalidToken
		}

		if _, collide := s.shards[newIdx].entries[candidate]; collide {
			unlock()
			continue
		}

		delete(s.shards[oldIdx].entries, oldID)

		merged := old.Meta
		if hasOverlay {
			merged = Merge(old.Meta, overlay)
		}

		entry := &Entry{ID: candidate, Meta: merged, ExpiresAt: now.Add(s.lifetime)}
		s.assertOwnKey(candidate, entry)
		s.shards[newIdx].entries[candidate] = entry

		unlock()

		s.metrics.incRotated()
		return candidate, merged.Clone(), nil
	}

	return "", nil, fmt.Errorf("rotate %s: exhausted id generation attempts", oldID)
}

// Remove atomically deletes the entry for id if present. It is idempotent
// from the caller's point of view: absence and presence both yield a
// successful, silent no-op-or-delete (spec §4.1: remove, property P6).
func (s *Store) Remove(id string) {
	sh := s.shards[s.indexFor(id)]

	sh.mu.Lock()
	_, existed := sh.entries[id]
	delete(sh.entries, id)
	sh.mu.Unlock()

	if existed {
		s.metrics.incRemoved()
	}
}

// Purge removes every entry with ExpiresAt <= now and returns the number
// removed (spec §4.1: purge, invariant I5). Each shard is locked and
// swept independently so a long sweep never holds up handlers working a
// different shard (spec §5: "purge may operate in bounded batches to
// avoid starving handlers").
func (s *Store) Purge(now time.Time) int {
	var removed int

	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, e := range sh.entries {
			if e.expired(now) {
				delete(sh.entries, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	s.metrics.addPurged(int64(removed))
	return removed
}

// Dump returns a snapshot of every still-live entry (spec §4.1: dump).
// Per spec §9 open question (b), expired-but-not-yet-purged entries are
// filtered out (e.ExpiresAt.After(now)); the snapshot is consistent
// per-entry, not point-in-time across the whole store, which spec §4.1
// explicitly allows.
func (s *Store) Dump(now time.Time) []DumpEntry {
	var out []DumpEntry

	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, e := range sh.entries {
			if e.ExpiresAt.After(now) {
				out = append(out, DumpEntry{Token: e.ID, ExpiresAt: e.ExpiresAt, Meta: e.Meta.Clone()})
			}
		}
		sh.mu.RUnlock()
	}

	return out
}

// Len returns the current number of entries held across all shards,
// including expired entries that have not been purged yet.
func (s *Store) Len() int {
	var n int
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Metrics returns a point-in-time snapshot of operational counters.
func (s *Store) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}
