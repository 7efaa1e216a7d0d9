// Package id mints stable, lexically-sortable identifiers for the entities
// the knowledge store owns (individuals, categories, sentences). Adapted
// from the card-ID generator pattern used elsewhere in this codebase: the
// same monotonic-entropy ULID source, generalized to a single shared
// generator instead of one per call site.
package id

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Generator mints monotonically increasing opaque IDs. Safe for concurrent
// use: ulid.MonotonicEntropy is not goroutine-safe on its own, so calls are
// serialized behind a mutex.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator creates a new ID generator.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// New mints a new opaque ID string.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Now(), g.entropy).String()
}

// defaultGen is used by package-level New for callers that don't need a
// dedicated generator (tests, one-off construction).
var defaultGen = NewGenerator()

// New mints an opaque ID using the package-level default generator.
func New() string {
	return defaultGen.New()
}
