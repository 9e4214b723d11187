package token

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(lifetime time.Duration) *Store {
	return New(lifetime, nil)
}

func TestCreateThenRotate(t *testing.T) {
	s := newTestStore(time.Hour)

	id1, err := s.Create(Metadata{"user": "alice", "year": 2022.0})
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, meta, err := s.Rotate(id1, Metadata{"period": 11.0}, true)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
	assert.Equal(t, Metadata{"user": "alice", "year": 2022.0, "period": 11.0}, meta)

	_, _, err = s.Rotate(id1, nil, false)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotateWithoutMetadataKeepsOldMeta(t *testing.T) {
	s := newTestStore(time.Hour)

	id1, err := s.Create(Metadata{"k": 1.0})
	require.NoError(t, err)

	_, meta, err := s.Rotate(id1, nil, false)
	require.NoError(t, err)
	assert.Equal(t, Metadata{"k": 1.0}, meta)
}

func TestRemoveThenRotateIsInvalid(t *testing.T) {
	s := newTestStore(time.Hour)

	id1, err := s.Create(Metadata{})
	require.NoError(t, err)

	s.Remove(id1)

	_, _, err = s.Rotate(id1, nil, false)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// TestIdempotentRemove exercises property P6: removing twice is harmless
// and has no observable effect beyond the first call.
func TestIdempotentRemove(t *testing.T) {
	s := newTestStore(time.Hour)

	id1, err := s.Create(Metadata{})
	require.NoError(t, err)

	before := s.Len()
	s.Remove(id1)
	s.Remove(id1)
	assert.Equal(t, before-1, s.Len())
}

// TestConcurrentRotationIsSingleWinner exercises property P1 under
// concurrency: of N concurrent rotations of the same token, exactly one
// succeeds.
func TestConcurrentRotationIsSingleWinner(t *testing.T) {
	s := newTestStore(time.Hour)

	id1, err := s.Create(Metadata{})
	require.NoError(t, err)

	const concurrency = 100
	var wg sync.WaitGroup
	var successes atomic.Int64
	var rejections atomic.Int64

	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			_, _, err := s.Rotate(id1, nil, false)
			if err == nil {
				successes.Add(1)
			} else {
				rejections.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, concurrency-1, rejections.Load())
}

// TestChainContinuity exercises property P2: repeated rotation forms a
// strictly linear chain, and at any moment at most one token in the chain
// is live.
func TestChainContinuity(t *testing.T) {
	s := newTestStore(time.Hour)

	current, err := s.Create(Metadata{})
	require.NoError(t, err)

	seen := map[string]bool{current: true}
	for i := 0; i < 25; i++ {
		next, _, err := s.Rotate(current, nil, false)
		require.NoError(t, err)
		require.False(t, seen[next], "rotated token must be fresh")
		seen[next] = true

		_, _, err = s.Rotate(current, nil, false)
		assert.ErrorIs(t, err, ErrInvalidToken, "superseded token must now be invalid")

		current = next
	}
	assert.Equal(t, 1, s.Len())
}

// TestMergePreservation exercises property P3: the current metadata equals
// the fold of every metadata delta applied across a rotation chain.
func TestMergePreservation(t *testing.T) {
	s := newTestStore(time.Hour)

	current, err := s.Create(Metadata{"a": 1.0})
	require.NoError(t, err)

	deltas := []Metadata{
		{"b": 2.0},
		{"a": 3.0},
		{"c": 4.0},
	}

	expect := Metadata{"a": 1.0}
	for _, d := range deltas {
		var meta Metadata
		current, meta, err = s.Rotate(current, d, true)
		require.NoError(t, err)
		expect = Merge(expect, d)
		assert.Equal(t, expect, meta)
	}
}

func TestPurgeRemovesExpiredEntries(t *testing.T) {
	s := newTestStore(time.Millisecond)

	liveID, err := s.Create(Metadata{})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	freshLifetimeStore := newTestStore(time.Hour)
	stillLiveID, err := freshLifetimeStore.Create(Metadata{})
	require.NoError(t, err)

	purged := s.Purge(time.Now())
	assert.Equal(t, 1, purged)
	assert.Equal(t, 0, s.Len())

	_, _, err = s.Rotate(liveID, nil, false)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// sanity: an unrelated store with a long lifetime is unaffected.
	assert.Equal(t, 1, freshLifetimeStore.Len())
	_, _, err = freshLifetimeStore.Rotate(stillLiveID, nil, false)
	assert.NoError(t, err)
}

func TestDumpFiltersExpiredEntries(t *testing.T) {
	s := newTestStore(time.Millisecond)

	_, err := s.Create(Metadata{"x": 1.0})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	entries := s.Dump(time.Now())
	assert.Empty(t, entries, "expired-but-not-yet-purged entries must not appear in the dump")
}

func TestDumpIncludesLiveEntries(t *testing.T) {
	s := newTestStore(time.Hour)

	id, err := s.Create(Metadata{"x": 1.0})
	require.NoError(t, err)

	entries := s.Dump(time.Now())
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].Token)
	assert.Equal(t, Metadata{"x": 1.0}, entries[0].Meta)
}

func TestConcurrentRotationsOnDisjointTokensProceedIndependently(t *testing.T) {
	s := newTestStore(time.Hour)

	const n = 200
	ids := make([]string, n)
	for i := range ids {
		id, err := s.Create(Metadata{})
		require.NoError(t, err)
		ids[i] = id
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for _, id := range ids {
		id := id
		go func() {
			defer wg.Done()
			_, _, err := s.Rotate(id, nil, false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, n, s.Len())
}
