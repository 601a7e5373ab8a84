// Package sim provides a deterministic stand-in for a fragment script: a
// generator reproducing V8's Math.random and the script's text synthesis.
package sim

import (
	"math"
	"sync"

	"github.com/ast-ral/divine/hostfuncs"
)

const cacheSize = 64

// RNG is xorshift128+ as used by V8's Math.random. Values are produced in
// blocks of 64 and handed out last-first, matching the engine's cache.
// It is safe for concurrent use.
type RNG struct {
	s0, s1 uint64
	cache  [cacheSize]float64
	n      int
	mu     sync.Mutex
}

var _ hostfuncs.RandomSource = (*RNG)(nil)

// NewRNG creates a generator from raw state. The first value is consumed,
// as the engine does when it seeds.
func NewRNG(s0, s1 uint64) *RNG {
	r := &RNG{s0: s0, s1: s1}
	r.Float64()
	return r
}

// Float64 returns the next value in [0, 1).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n == 0 {
		r.refill()
	}
	r.n--
	return r.cache[r.n]
}

func (r *RNG) refill() {
	for i := range r.cache {
		r.cache[i] = toFloat(r.s0)
		r.s0, r.s1 = r.s1, step(r.s0, r.s1)
	}
	r.n = cacheSize
}

// step advances the xorshift128+ state by one.
func step(s0, s1 uint64) uint64 {
	x := s0
	x ^= x << 23
	x ^= x >> 17
	return s1 ^ (s1 >> 26) ^ x
}

// toFloat maps the top 52 bits of state onto [0, 1).
func toFloat(state uint64) float64 {
	return math.Float64frombits(state>>12|0x3ff0000000000000) - 1
}

// DriverSeed returns the state used for simulation run i.
func DriverSeed(i uint64) (s0, s1 uint64) {
	return 0x0123456789abcdef, 1337 * i
}
