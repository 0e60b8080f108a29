// Package vocab provides a closed character vocabulary with a reserved
// start symbol at index 0.
package vocab

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// StartSymbol is the word stored at index StartIndex. It never matches a
// corpus character.
const (
	StartSymbol = "_START"
	StartIndex  = 0
)

// ErrUnknownCharacter is returned when a character is not in the vocabulary.
var ErrUnknownCharacter = errors.New("character not in vocabulary")

// Vocabulary maps characters to indices and back.
type Vocabulary struct {
	words []string
	index map[rune]int
	runes []rune
}

// Build constructs the vocabulary for the specified character stream. The
// distinct characters are sorted by code point so the same corpus always
// yields the same indices.
func Build(stream []rune) *Vocabulary {
	distinct := slices.Clone(stream)
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	v := Vocabulary{
		words: make([]string, 0, len(distinct)+1),
		index: make(map[rune]int, len(distinct)),
		runes: make([]rune, 0, len(distinct)+1),
	}

	v.words = append(v.words, StartSymbol)
	v.runes = append(v.runes, 0)

	for _, r := range distinct {
		v.index[r] = len(v.words)
		v.words = append(v.words, string(r))
		v.runes = append(v.runes, r)
	}

	return &v
}

// Len returns the number of words including the start symbol.
func (v *Vocabulary) Len() int {
	return len(v.words)
}

// Words returns the word list. Index i of the slice is the word for
// vocabulary index i.
func (v *Vocabulary) Words() []string {
	return slices.Clone(v.words)
}

// Index returns the vocabulary index for r.
func (v *Vocabulary) Index(r rune) (int, bool) {
	idx, ok := v.index[r]
	return idx, ok
}

// Word returns the word at idx, or an empty string when idx is out of range.
func (v *Vocabulary) Word(idx int) string {
	if idx < 0 || idx >= len(v.words) {
		return ""
	}

	return v.words[idx]
}

// Rune returns the character at idx. The start symbol has no character.
func (v *Vocabulary) Rune(idx int) (rune, bool) {
	if idx <= StartIndex || idx >= len(v.runes) {
		return 0, false
	}

	return v.runes[idx], true
}

// Encode maps every character of s to its index.
func (v *Vocabulary) Encode(s string) ([]int, error) {
	seq := make([]int, 0, len(s))

	for _, r := range s {
		idx, ok := v.index[r]
		if !ok {
			return nil, fmt.Errorf("encode %q: %w", r, ErrUnknownCharacter)
		}

		seq = append(seq, idx)
	}

	return seq, nil
}

// Decode maps the indices back to text. The start symbol and out of range
// indices are dropped.
func (v *Vocabulary) Decode(seq []int) string {
	var b strings.Builder

	for _, idx := range seq {
		if r, ok := v.Rune(idx); ok {
			b.WriteRune(r)
		}
	}

	return b.String()
}
