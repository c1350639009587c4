// Package idgen generates time-sortable identifiers for channels and
// messages. A single monotonic entropy source is shared across all calls so
// IDs stay lexicographically ordered even when minted within the same
// millisecond.
package idgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	monoMu      sync.Mutex
	monoEntropy io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// New generates a fresh ULID string.
func New() (string, error) {
	monoMu.Lock()
	defer monoMu.Unlock()
	ms := ulid.Timestamp(time.Now())
	id, err := ulid.New(ms, monoEntropy)
	if err != nil {
		return "", fmt.Errorf("idgen: generate ulid: %w", err)
	}
	return id.String(), nil
}

// Must is like New but panics on error. Use only in tests or init code.
func Must() string {
	id, err := New()
	if err != nil {
		panic(fmt.Sprintf("idgen.Must: %v", err))
	}
	return id
}
