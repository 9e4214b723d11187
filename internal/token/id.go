package token

import (
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// maxIDAttempts bounds the retry loop for the astronomically unlikely event
// that a freshly generated token collides with one already live in its
// shard (spec §4.1, create/rotate: "retry on the astronomically unlikely
// collision").
const maxIDAttempts = 5

// newID produces an opaque, URL-safe token identifier backed by 128 bits of
// crypto/rand entropy (spec §3, C1), the same way warden generates entry
// and mount UUIDs in core/mount.go. This is the Go analogue of the Rust
// implementation's Uuid::new_v4() in
// original_source/src/token_server/token_store.rs.
func newID() (string, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	return id, nil
}
