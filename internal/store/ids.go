package store

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// idSource produces monotonically increasing ULIDs so ids sort by creation
// order even when minted within the same millisecond. Shared across all
// registries; ulid.Monotonic is not safe for concurrent use on its own.
var (
	idMu   sync.Mutex
	idSeed = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new opaque, lexicographically-sortable identifier used for
// every registry row's surrogate id and for operation_id.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), idSeed)
	if err != nil {
		// ulid.New only fails on entropy exhaustion; crypto/rand never does
		// in practice, so fall back to a fresh monotonic source rather than
		// returning an error none of our callers are set up to check.
		idSeed = ulid.Monotonic(rand.Reader, 0)
		id, _ = ulid.New(ulid.Timestamp(time.Now().UTC()), idSeed)
	}
	return id.String()
}
