// Package ngram provides a 3-gram oracle built from a character stream. It
// answers whether a sequence of vocabulary indices is locally plausible,
// meaning every contiguous 3 character window was observed in the corpus.
// It says nothing about global grammar or meaning.
package ngram

import (
	"errors"
	"fmt"

	"github.com/Strideradu/sequence-gan/foundation/vocab"
)

// Size is the window length of the oracle.
const Size = 3

// ErrCorpusTooShort is returned when the stream has no complete window.
var ErrCorpusTooShort = errors.New("character stream shorter than one 3-gram")

type gram [Size]int

// Oracle holds the set of observed windows.
type Oracle struct {
	grams map[gram]struct{}
}

// New builds the oracle from every window of the stream, mapped through v.
func New(stream []rune, v *vocab.Vocabulary) (*Oracle, error) {
	if len(stream) < Size {
		return nil, fmt.Errorf("stream length %d: %w", len(stream), ErrCorpusTooShort)
	}

	idx := make([]int, len(stream))
	for i, r := range stream {
		n, ok := v.Index(r)
		if !ok {
			return nil, fmt.Errorf("position %d %q: %w", i, r, vocab.ErrUnknownCharacter)
		}

		idx[i] = n
	}

	o := Oracle{
		grams: make(map[gram]struct{}),
	}

	for i := 0; i+Size <= len(idx); i++ {
		o.grams[gram(idx[i:i+Size])] = struct{}{}
	}

	return &o, nil
}

// Len returns the number of distinct windows.
func (o *Oracle) Len() int {
	return len(o.grams)
}

// Contains reports whether the window was observed.
func (o *Oracle) Contains(a, b, c int) bool {
	_, ok := o.grams[gram{a, b, c}]
	return ok
}

// Verify reports whether every contiguous window of seq was observed.
// Sequences shorter than a window are always accepted.
func (o *Oracle) Verify(seq []int) bool {
	for i := 0; i+Size <= len(seq); i++ {
		if _, ok := o.grams[gram(seq[i:i+Size])]; !ok {
			return false
		}
	}

	return true
}
