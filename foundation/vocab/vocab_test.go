package vocab

import (
	"errors"
	"slices"
	"testing"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name     string
		stream   string
		distinct int
	}{
		{"empty", "", 0},
		{"single", "aaaa", 1},
		{"ascii", "abcabc", 3},
		{"poem", "四时运灰琯 abc。def。ghi。", 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Build([]rune(tt.stream))

			if v.Len() != tt.distinct+1 {
				t.Fatalf("len: got %d, want %d", v.Len(), tt.distinct+1)
			}

			if v.Word(StartIndex) != StartSymbol {
				t.Fatalf("index 0: got %q, want %q", v.Word(StartIndex), StartSymbol)
			}

			for _, r := range tt.stream {
				idx, ok := v.Index(r)
				if !ok {
					t.Fatalf("missing %q", r)
				}

				if idx == StartIndex {
					t.Fatalf("%q mapped to the start index", r)
				}
			}
		})
	}
}

func TestBuildDeterministic(t *testing.T) {
	a := Build([]rune("cabbage"))
	b := Build([]rune("bagcabe"))

	if !slices.Equal(a.Words(), b.Words()) {
		t.Fatalf("words differ: %q vs %q", a.Words(), b.Words())
	}

	want := []string{StartSymbol, "a", "b", "c", "e", "g"}
	if !slices.Equal(a.Words(), want) {
		t.Fatalf("words: got %q, want %q", a.Words(), want)
	}
}

func TestRoundTrip(t *testing.T) {
	v := Build([]rune("四时运灰琯 abc。def。"))

	for i, w := range v.Words() {
		if i == StartIndex {
			continue
		}

		r := []rune(w)[0]

		idx, ok := v.Index(r)
		if !ok || idx != i {
			t.Fatalf("index %q: got %d %v, want %d", r, idx, ok, i)
		}

		back, ok := v.Rune(idx)
		if !ok || back != r {
			t.Fatalf("rune %d: got %q, want %q", idx, back, r)
		}
	}

	seq, err := v.Encode("abc。")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if got := v.Decode(append([]int{StartIndex}, seq...)); got != "abc。" {
		t.Fatalf("decode: got %q", got)
	}
}

func TestEncodeUnknown(t *testing.T) {
	v := Build([]rune("abc"))

	if _, err := v.Encode("abz"); !errors.Is(err, ErrUnknownCharacter) {
		t.Fatalf("expected ErrUnknownCharacter, got %v", err)
	}
}
