// Package idgen produces monotonic ULIDs for card identifiers.
//
// ulid.Monotonic already guarantees a strictly increasing random tail for
// ids requested within the same millisecond, incrementing with carry the
// same way spec §4.2 describes. When that tail would overflow, the
// library's Monotonic reader returns ulid.ErrMonotonicOverflow instead of
// an id; Generator handles that edge with a mutex-guarded retry loop that
// sleeps until the next millisecond.
package idgen

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces monotonic ULIDs for a single process.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New creates a Generator with a fresh monotonic entropy source.
func New() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Next returns a new 26-character upper-case Crockford Base32 ULID. If
// the monotonic entropy source is exhausted within one millisecond (the
// random tail would overflow), Next stalls until the clock advances
// rather than silently resetting the tail, preserving strict ordering.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
		if err == nil {
			return strings.ToUpper(id.String())
		}
		// ulid.ErrMonotonicOverflow: entropy tail exhausted for this ms.
		time.Sleep(time.Millisecond)
	}
}

// Parse validates that s is a well-formed 26-character Crockford Base32
// ULID and returns it upper-cased.
func Parse(s string) (string, bool) {
	up := strings.ToUpper(strings.TrimSpace(s))
	if _, err := ulid.ParseStrict(up); err != nil {
		return "", false
	}
	return up, true
}

// ShortID returns the last 8 characters of id, for display only.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}
