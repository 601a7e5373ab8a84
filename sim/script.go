package sim

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/hostfuncs"
)

// Corruption holds the code units a script scatters over its base text.
var Corruption = []uint16{161, 162, 193, 164, 195, 166, 167, 168, 169, 170}

// ErrEmptyFragments is returned for a script without fragments.
var ErrEmptyFragments = errors.New("script has no fragments")

// Script produces a corrupted copy of Base with one of Fragments pasted at a
// random offset.
type Script struct {
	random          hostfuncs.RandomSource
	base            []uint16
	fragments       [][]uint16
	corruptionBound int
}

// NewScript creates a Script. Every fragment must fit inside base and
// corruptionBound must be positive.
func NewScript(random hostfuncs.RandomSource, base []uint16, corruptionBound int, fragments [][]uint16) (*Script, error) {
	if len(fragments) == 0 {
		return nil, ErrEmptyFragments
	}
	if corruptionBound < 1 {
		return nil, fmt.Errorf("corruption bound must be positive, got %d", corruptionBound)
	}
	for i, f := range fragments {
		if len(f) == 0 || len(f) > len(base) {
			return nil, fmt.Errorf("fragment %d has length %d, base has %d", i, len(f), len(base))
		}
	}
	return &Script{random: random, base: base, fragments: fragments, corruptionBound: corruptionBound}, nil
}

// NewDriverScript creates the script of the reference simulation: base
// 0..99, corruption bound 4 and the DriverFragments.
func NewDriverScript(random hostfuncs.RandomSource) *Script {
	base := make([]uint16, 100)
	for i := range base {
		base[i] = uint16(i)
	}
	s, err := NewScript(random, base, 4, DriverFragments())
	if err != nil {
		panic(err)
	}
	return s
}

// DriverFragments returns the fragments of the reference simulation.
func DriverFragments() [][]uint16 {
	return [][]uint16{
		{100, 101, 102, 103, 104, 105, 106, 107},
		{500, 501, 502, 503, 504, 505, 506},
		{500, 501, 502, 503, 504},
		{500, 501, 502, 503, 504, 505, 506},
		{102, 103, 104, 105, 106, 107},
		{400},
		{887, 400},
	}
}

// Generate returns one output. It draws one value for the corruption count,
// two per corruption character, and two to choose and place the fragment.
func (s *Script) Generate() []uint16 {
	out := append([]uint16(nil), s.base...)

	n := randUnder(s.random.Float64(), s.corruptionBound)
	for range n {
		i := randUnder(s.random.Float64(), len(s.base))
		out[i] = Corruption[randUnder(s.random.Float64(), len(Corruption))]
	}

	fragment := s.fragments[randUnder(s.random.Float64(), len(s.fragments))]
	start := randUnder(s.random.Float64(), len(s.base)-len(fragment))
	copy(out[start:], fragment)
	return out
}

// Target adapts the script to a target generator.
func (s *Script) Target() entities.TargetFunc {
	return func(context.Context) (string, error) {
		return string(utf16.Decode(s.Generate())), nil
	}
}

// randUnder scales a value in [0, 1) to an index below n.
func randUnder(v float64, n int) int {
	return int(v * float64(n))
}
