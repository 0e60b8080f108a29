// Package corpus provides support for loading a line oriented text corpus
// into sentence units and a flat character stream.
package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
)

// Defaults used when a Config field is left at its zero value.
const (
	DefaultMarker     = "四时运灰琯"
	DefaultTerminator = '。'
	DefaultSeqLength  = 12
	DefaultMaxUnits   = 100000 * DefaultSeqLength
)

// ErrInvalidUTF8 is returned when a line of the corpus is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("invalid utf-8")

// Config controls how lines are accepted and split.
type Config struct {
	Marker     string
	Terminator rune
	MaxUnits   int
}

func (cfg *Config) normalize() {
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}

	if cfg.Terminator == 0 {
		cfg.Terminator = DefaultTerminator
	}

	if cfg.MaxUnits <= 0 {
		cfg.MaxUnits = DefaultMaxUnits
	}
}

// Corpus is the result of loading a file. Units holds the sentence units,
// each ending in the terminator. Stream holds every character of every
// accepted line, lower cased, in file order.
type Corpus struct {
	Units       []string
	Stream      []rune
	MarkerFound bool
	Gzip        bool
}

// =============================================================================

// Load reads the file at path, plain UTF-8 or gzip compressed UTF-8, and
// collects the corpus. Nothing is collected until a line containing the
// marker has been seen.
func Load(path string, cfg Config) (Corpus, error) {
	cfg.normalize()

	f, err := os.Open(path)
	if err != nil {
		return Corpus{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)

	var r io.Reader = br

	isGzip, err := detectGzip(br)
	if err != nil {
		return Corpus{}, fmt.Errorf("detect encoding: %w", err)
	}

	if isGzip {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return Corpus{}, fmt.Errorf("gzip reader: %w", err)
		}
		defer zr.Close()

		r = zr
	}

	c, err := read(r, cfg)
	if err != nil {
		return Corpus{}, fmt.Errorf("read: %w", err)
	}

	c.Gzip = isGzip

	return c, nil
}

// detectGzip reports whether the head of the stream fails to decode as two
// UTF-8 characters. Two characters never need more than 8 bytes.
func detectGzip(br *bufio.Reader) (bool, error) {
	head, err := br.Peek(2 * utf8.UTFMax)
	if err != nil && err != io.EOF {
		return false, err
	}

	for range 2 {
		if len(head) == 0 {
			break
		}

		r, size := utf8.DecodeRune(head)
		if r == utf8.RuneError && size <= 1 {
			return true, nil
		}

		head = head[size:]
	}

	return false, nil
}

func read(r io.Reader, cfg Config) (Corpus, error) {
	var c Corpus

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	term := string(cfg.Terminator)

	var lineNum int

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if !utf8.ValidString(line) {
			return Corpus{}, fmt.Errorf("line %d: %w", lineNum, ErrInvalidUTF8)
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		text := trimmed

		if !c.MarkerFound {
			_, after, found := strings.Cut(line, cfg.Marker)
			if !found {
				continue
			}

			// Units on the marker line start after the marker itself.
			c.MarkerFound = true
			text = strings.TrimSpace(after)
		}

		for _, frag := range strings.Split(strings.ToLower(text), term) {
			if frag == "" {
				continue
			}

			if len(c.Units) >= cfg.MaxUnits {
				break
			}

			c.Units = append(c.Units, frag+term)
		}

		c.Stream = append(c.Stream, []rune(strings.ToLower(trimmed))...)

		if len(c.Units) >= cfg.MaxUnits {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return Corpus{}, fmt.Errorf("scan: %w", err)
	}

	return c, nil
}
