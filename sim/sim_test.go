package sim

import (
	"context"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reference returns the first n raw xorshift128+ outputs without caching.
func reference(s0, s1 uint64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = toFloat(s0)
		s0, s1 = s1, step(s0, s1)
	}
	return out
}

func TestRNG_CacheOrder(t *testing.T) {
	s0, s1 := DriverSeed(3)
	raw := reference(s0, s1, 3*cacheSize)
	rng := NewRNG(s0, s1)

	// Each block of 64 is handed out in reverse; the seed draw took raw[63].
	var want []float64
	for i := cacheSize - 2; i >= 0; i-- {
		want = append(want, raw[i])
	}
	for i := 2*cacheSize - 1; i >= cacheSize; i-- {
		want = append(want, raw[i])
	}

	got := make([]float64, len(want))
	for i := range got {
		got[i] = rng.Float64()
	}
	assert.Equal(t, want, got)
}

func TestRNG_Range(t *testing.T) {
	rng := NewRNG(DriverSeed(1))
	for range 10000 {
		v := rng.Float64()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(DriverSeed(7))
	b := NewRNG(DriverSeed(7))
	c := NewRNG(DriverSeed(8))

	same := true
	for range 200 {
		va, vb, vc := a.Float64(), b.Float64(), c.Float64()
		assert.Equal(t, va, vb)
		same = same && va == vc
	}
	assert.False(t, same)
}

func TestToFloat(t *testing.T) {
	assert.Equal(t, 0.0, toFloat(0))
	assert.Equal(t, 0.5, toFloat(1<<63))
	assert.Less(t, toFloat(^uint64(0)), 1.0)
}

// sequence replays fixed values.
type sequence struct {
	values []float64
	i      int
}

func (s *sequence) Float64() float64 {
	v := s.values[s.i]
	s.i++
	return v
}

func TestScript_Generate(t *testing.T) {
	base := []uint16{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	fragments := [][]uint16{{50, 51}, {60, 61, 62}}

	seq := &sequence{values: []float64{
		0.5,        // 2 of 4 corruption characters
		0.0, 0.0,   // index 0 <- Corruption[0]
		0.95, 0.95, // index 9 <- Corruption[9]
		0.5,        // fragment 1
		0.0,        // placed at 0
	}}
	s, err := NewScript(seq, base, 4, fragments)
	require.NoError(t, err)

	got := s.Generate()
	assert.Equal(t, []uint16{60, 61, 62, 3, 4, 5, 6, 7, 8, 170}, got)
	assert.Equal(t, len(seq.values), seq.i)
	assert.Equal(t, []uint16{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, base, "base is not modified")
}

func TestScript_FragmentPlacement(t *testing.T) {
	base := make([]uint16, 10)
	seq := &sequence{values: []float64{0.0, 0.0, 0.99}}
	s, err := NewScript(seq, base, 1, [][]uint16{{7, 7, 7}})
	require.NoError(t, err)

	// Start is below len(base)-len(fragment), so the fragment ends in bounds.
	assert.Equal(t, []uint16{0, 0, 0, 0, 0, 0, 7, 7, 7, 0}, s.Generate())
}

func TestNewScript_Invalid(t *testing.T) {
	rng := NewRNG(DriverSeed(0))
	base := []uint16{1, 2, 3}

	_, err := NewScript(rng, base, 4, nil)
	assert.ErrorIs(t, err, ErrEmptyFragments)

	_, err = NewScript(rng, base, 0, [][]uint16{{1}})
	assert.ErrorContains(t, err, "corruption bound")

	_, err = NewScript(rng, base, 4, [][]uint16{{1, 2, 3, 4}})
	assert.ErrorContains(t, err, "fragment 0 has length 4")

	_, err = NewScript(rng, base, 4, [][]uint16{{}})
	assert.Error(t, err)
}

func TestDriverScript_Target(t *testing.T) {
	script := NewDriverScript(NewRNG(DriverSeed(2)))
	target := script.Target()

	for range 50 {
		text, err := target(context.Background())
		require.NoError(t, err)

		units := utf16.Encode([]rune(text))
		require.Len(t, units, 100)

		found := false
		for _, f := range DriverFragments() {
			if containsAt(units, f) {
				found = true
				break
			}
		}
		assert.True(t, found, "output carries a fragment")
	}
}

func containsAt(units, fragment []uint16) bool {
	for i := 0; i+len(fragment) <= len(units); i++ {
		match := true
		for j, u := range fragment {
			if units[i+j] != u {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
