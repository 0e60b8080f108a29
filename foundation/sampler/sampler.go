// Package sampler provides fixed length supervised training targets drawn
// uniformly from a collection of sentence units.
package sampler

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/Strideradu/sequence-gan/foundation/vocab"
)

// Pad is appended to units shorter than the sequence length.
const Pad = ' '

// Set of sampler construction errors.
var (
	ErrNoUnits   = errors.New("no sentence units to sample from")
	ErrNoPadding = errors.New("padding character not in vocabulary")
)

// Sampler draws random units and encodes them to a fixed length.
type Sampler struct {
	units  []string
	vocab  *vocab.Vocabulary
	length int
	rng    *rand.Rand
}

// New constructs a sampler. It fails when there is nothing to sample or
// when a unit would need padding the vocabulary cannot encode.
func New(units []string, v *vocab.Vocabulary, length int, rng *rand.Rand) (*Sampler, error) {
	if len(units) == 0 {
		return nil, ErrNoUnits
	}

	if length <= 0 {
		return nil, fmt.Errorf("sequence length %d must be positive", length)
	}

	if _, ok := v.Index(Pad); !ok {
		for _, u := range units {
			if utf8.RuneCountInString(u) < length {
				return nil, fmt.Errorf("unit %q: %w", u, ErrNoPadding)
			}
		}
	}

	s := Sampler{
		units:  units,
		vocab:  v,
		length: length,
		rng:    rng,
	}

	return &s, nil
}

// Next picks a unit uniformly at random and returns its encoding.
func (s *Sampler) Next() ([]int, error) {
	unit := s.units[s.rng.IntN(len(s.units))]

	seq, err := s.Sequence(unit)
	if err != nil {
		return nil, fmt.Errorf("sequence: %w", err)
	}

	return seq, nil
}

// Sequence truncates or right pads unit to the sequence length and encodes
// it through the vocabulary.
func (s *Sampler) Sequence(unit string) ([]int, error) {
	runes := []rune(unit)

	var text string

	switch {
	case len(runes) >= s.length:
		text = string(runes[:s.length])

	default:
		text = unit + strings.Repeat(string(Pad), s.length-len(runes))
	}

	return s.vocab.Encode(text)
}
