// Package purge implements the background sweep described in spec §4.2
// (C5): a periodic task that evicts expired entries from the token store
// without racing foreground mutations.
package purge

import (
	"context"
	"time"

	"github.com/HaKr/token-server/logger"
)

// Store is the subset of *token.Store the scheduler needs. Expressed as an
// interface so tests can substitute a fake.
type Store interface {
	Purge(now time.Time) int
	Len() int
}

// Scheduler runs store.Purge on a fixed interval until its context is
// canceled. It is grounded on the tokio::time::sleep loop in
// original_source/src/main.rs, translated to the time.Ticker idiom; a
// Ticker already skips missed ticks rather than accumulating them, which
// is exactly spec §4.2's requirement ("missed ticks... do not
// accumulate; only the next scheduled tick runs").
type Scheduler struct {
	store    Store
	interval time.Duration
	log      *logger.GatedLogger
}

// New constructs a Scheduler that sweeps store every interval. log is the
// concrete *logger.GatedLogger, following the same convention as
// internal/token.New (see its doc comment for why the bare logger.Logger
// interface doesn't fit here).
func New(store Store, interval time.Duration, log *logger.GatedLogger) *Scheduler {
	return &Scheduler{store: store, interval: interval, log: log}
}

// Run blocks, sweeping on every tick, until ctx is canceled. It is meant to
// be launched in its own goroutine by the server lifecycle (spec §4.4,
// C7), which owns the context that ties the scheduler's lifetime to the
// server's.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// sweep mirrors the Display impl for PurgeResult in
// original_source/src/token_server/purging.rs: "PURGED: tokens: <live>,
// purged: <removed>".
func (s *Scheduler) sweep(now time.Time) {
	purged := s.store.Purge(now)

	if s.log == nil {
		return
	}

	fields := []logger.TypedField{
		logger.Int("tokens", s.store.Len()),
		logger.Int("purged", purged),
	}
	if purged > 0 {
		s.log.Debug("PURGED", fields...)
	} else {
		s.log.Trace("PURGED", fields...)
	}
}
