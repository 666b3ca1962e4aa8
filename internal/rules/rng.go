package rules

import (
	"math/rand"
	"sync"
)

// RNG is the process randomness source. A single instance is threaded into
// the shuffle, room-code, and banker-variance call sites so tests can seed
// the whole server deterministically.
type RNG struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRNG returns an RNG seeded with the given value.
func NewRNG(seed int64) *RNG {
	return &RNG{r: rand.New(rand.NewSource(seed))}
}

// Shuffle performs an unbiased Fisher-Yates shuffle of vals in place.
func (g *RNG) Shuffle(vals []float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.r.Shuffle(len(vals), func(i, j int) {
		vals[i], vals[j] = vals[j], vals[i]
	})
}

// Intn returns a uniform int in [0, n).
func (g *RNG) Intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.r.Intn(n)
}

// Float64Between returns a uniform float in [lo, hi).
func (g *RNG) Float64Between(lo, hi float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.r.Float64()*(hi-lo)
}

// RoomCode returns a fresh room code: RoomCodeLen characters drawn uniformly
// from RoomCodeAlphabet. Uniqueness is the caller's concern.
func (g *RNG) RoomCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := make([]byte, RoomCodeLen)
	for i := range b {
		b[i] = RoomCodeAlphabet[g.r.Intn(len(RoomCodeAlphabet))]
	}
	return string(b)
}
