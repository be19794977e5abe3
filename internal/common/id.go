package common

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Monotonic entropy keeps ids generated within the same millisecond in
// generation order, so sorting by id equals append order.
var entropy = &ulid.LockedMonotonicReader{MonotonicReader: ulid.Monotonic(rand.Reader, 0)}

// NewULID returns a new ULID string.
func NewULID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
