package hostfuncs

import "math/rand/v2"

// RandomSource backs the guest's js.random import. Float64 must return a
// value in [0, 1).
type RandomSource interface {
	Float64() float64
}

// RandomFunc adapts a function to RandomSource.
type RandomFunc func() float64

// Float64 implements RandomSource.
func (f RandomFunc) Float64() float64 {
	return f()
}

// DefaultRandom draws from the process-wide math/rand/v2 generator.
var DefaultRandom RandomSource = RandomFunc(rand.Float64)
