package helper

import (
	"crypto/rand"

	"github.com/oklog/ulid"
)

// GenerateRequestID returns a lexically sortable, time-ordered identifier
// used to correlate one HTTP request's log lines.
func GenerateRequestID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
