package token

import "time"

// Entry is the token triple of spec §3 (C3): {token, meta, expires_at}.
// Entries are immutable with respect to their own ID; rotation replaces
// an entry wholesale rather than mutating one in place.
type Entry struct {
	ID        string
	Meta      Metadata
	ExpiresAt time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// DumpEntry is the administrative snapshot shape returned by Store.Dump,
// grounded on original_source/src/token_server/token_store.rs's
// DumpEntry/PurgeResult reporting.
type DumpEntry struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Meta      Metadata  `json:"meta"`
}
