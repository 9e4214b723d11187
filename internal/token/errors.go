package token

import "errors"

// ErrInvalidToken is the in-band domain signal described in spec §7: the
// presented token is unknown, already rotated, already removed, or expired.
// It is never an HTTP-layer error; the dispatcher carries it inside the
// response body.
var ErrInvalidToken = errors.New("InvalidToken")

// ErrMetadataNotObject is returned when a caller supplies metadata that is
// not a JSON object (spec §9 open question (a)).
var ErrMetadataNotObject = errors.New("metadata must be a JSON object")
