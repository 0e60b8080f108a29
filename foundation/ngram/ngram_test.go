package ngram

import (
	"errors"
	"testing"

	"github.com/Strideradu/sequence-gan/foundation/vocab"
)

func TestVerify(t *testing.T) {
	v := vocab.Build([]rune("abcabc"))

	for i, r := range "abc" {
		if idx, _ := v.Index(r); idx != i+1 {
			t.Fatalf("index %q: got %d, want %d", r, idx, i+1)
		}
	}

	o, err := New([]rune("abcabc"), v)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if o.Len() != 3 {
		t.Fatalf("len: got %d, want 3", o.Len())
	}

	if !o.Contains(1, 2, 3) || !o.Contains(2, 3, 1) {
		t.Fatalf("observed windows missing")
	}

	if o.Contains(3, 2, 1) {
		t.Fatalf("reversed window should not be present")
	}

	tests := []struct {
		name string
		seq  []int
		want bool
	}{
		{"empty", nil, true},
		{"one", []int{3}, true},
		{"two unseen", []int{3, 3}, true},
		{"observed", []int{1, 2, 3, 1}, true},
		{"full cycle", []int{1, 2, 3, 1, 2, 3}, true},
		{"unseen", []int{1, 1, 2}, false},
		{"unseen tail", []int{1, 2, 3, 3}, false},
		{"reversed", []int{3, 2, 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.Verify(tt.seq); got != tt.want {
				t.Fatalf("verify %v: got %v, want %v", tt.seq, got, tt.want)
			}
		})
	}
}

func TestNewTooShort(t *testing.T) {
	v := vocab.Build([]rune("ab"))

	if _, err := New([]rune("ab"), v); !errors.Is(err, ErrCorpusTooShort) {
		t.Fatalf("expected ErrCorpusTooShort, got %v", err)
	}
}

func TestNewUnknownCharacter(t *testing.T) {
	v := vocab.Build([]rune("abc"))

	if _, err := New([]rune("abcd"), v); !errors.Is(err, vocab.ErrUnknownCharacter) {
		t.Fatalf("expected ErrUnknownCharacter, got %v", err)
	}
}
