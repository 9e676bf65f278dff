package id

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out ULIDs whose timestamp part is the simulated time
// passed in, and whose entropy comes from a seeded PRNG. Two generators
// with the same seed fed the same times produce the same ids, so replays
// are reproducible down to order and fill ids.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
	}
}

// New returns a ULID string stamped with t. Times before the Unix epoch
// are clamped to it.
func (g *Generator) New(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t.Before(time.Unix(0, 0)) {
		t = time.Unix(0, 0)
	}
	id, err := ulid.New(ulid.Timestamp(t.UTC()), g.entropy)
	if err != nil {
		// Only reachable when the monotonic entropy overflows within one
		// millisecond or t is past year 10889.
		panic(err)
	}
	return id.String()
}
