package ids

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces identifiers for entities created locally before the authority
// has confirmed them.
type Generator func() string

// New returns a random (v4) UUID: 122 random bits, unique for the process lifetime
// for all practical purposes.
func New() string {
	return uuid.NewString()
}

// Sequence returns a deterministic generator yielding prefix-1, prefix-2, ...
// It is safe for concurrent use.
func Sequence(prefix string) Generator {
	var n atomic.Uint64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

// Valid reports whether s parses as a UUID. Authority-assigned ids are UUIDs; local
// ids from Sequence are not.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
