package corpus

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	return path
}

func writeGzip(t *testing.T, name string, text string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(text)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	return path
}

// =============================================================================

const poems = "四时运灰琯 abc。def。\nghi。\n"

func TestLoadPlain(t *testing.T) {
	path := writeFile(t, "wuyan.txt", []byte(poems))

	c, err := Load(path, Config{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	wantUnits := []string{"abc。", "def。", "ghi。"}
	if !slices.Equal(c.Units, wantUnits) {
		t.Fatalf("units: got %q, want %q", c.Units, wantUnits)
	}

	wantStream := []rune("四时运灰琯 abc。def。" + "ghi。")
	if !slices.Equal(c.Stream, wantStream) {
		t.Fatalf("stream: got %q, want %q", string(c.Stream), string(wantStream))
	}

	if !c.MarkerFound {
		t.Fatalf("marker should be found")
	}

	if c.Gzip {
		t.Fatalf("plain file detected as gzip")
	}
}

func TestLoadGzip(t *testing.T) {
	path := writeGzip(t, "wuyan.txt.gz", poems)

	c, err := Load(path, Config{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !c.Gzip {
		t.Fatalf("gzip file not detected")
	}

	wantUnits := []string{"abc。", "def。", "ghi。"}
	if !slices.Equal(c.Units, wantUnits) {
		t.Fatalf("units: got %q, want %q", c.Units, wantUnits)
	}
}

func TestLoadGate(t *testing.T) {
	text := strings.Join([]string{
		"preface line。",
		"   ",
		"MARK Hello。World。",
		"",
		"  Second Line。  ",
		"\t",
		"third。",
	}, "\n")

	path := writeFile(t, "book.txt", []byte(text))

	c, err := Load(path, Config{Marker: "MARK"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	wantUnits := []string{"hello。", "world。", "second line。", "third。"}
	if !slices.Equal(c.Units, wantUnits) {
		t.Fatalf("units: got %q, want %q", c.Units, wantUnits)
	}

	wantStream := "mark hello。world。" + "second line。" + "third。"
	if string(c.Stream) != wantStream {
		t.Fatalf("stream: got %q, want %q", string(c.Stream), wantStream)
	}
}

func TestLoadMarkerMissing(t *testing.T) {
	path := writeFile(t, "book.txt", []byte("no marker here。\nnone here either。\n"))

	c, err := Load(path, Config{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.MarkerFound {
		t.Fatalf("marker should not be found")
	}

	if len(c.Units) != 0 || len(c.Stream) != 0 {
		t.Fatalf("expected empty corpus, got %d units %d chars", len(c.Units), len(c.Stream))
	}
}

func TestLoadCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("四时运灰琯\n")
	for range 10 {
		b.WriteString("a。b。c。\n")
	}

	path := writeFile(t, "wuyan.txt", []byte(b.String()))

	for _, max := range []int{1, 2, 3, 4, 7} {
		c, err := Load(path, Config{MaxUnits: max})
		if err != nil {
			t.Fatalf("load: %v", err)
		}

		if len(c.Units) != max {
			t.Errorf("max %d: got %d units", max, len(c.Units))
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"), Config{})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not exist error, got %v", err)
	}
}

func TestLoadCorruptGzip(t *testing.T) {
	data := []byte{0x1f, 0x8b, 0x08, 0x00, 0xde, 0xad}

	path := writeFile(t, "bad.gz", data)

	if _, err := Load(path, Config{}); err == nil {
		t.Fatalf("expected error for corrupt gzip")
	}
}

func TestLoadInvalidUTF8(t *testing.T) {
	tests := []struct {
		name string
		data string
		line string
	}{
		{"after marker", "四时运灰琯\nab\xffc。\n", "line 2"},
		{"before marker", "春眠\nx\xfe\n四时运灰琯 abc。\n", "line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "wuyan.txt", []byte(tt.data))

			_, err := Load(path, Config{})
			if !errors.Is(err, ErrInvalidUTF8) {
				t.Fatalf("got %v, want ErrInvalidUTF8", err)
			}

			if !strings.Contains(err.Error(), tt.line) {
				t.Fatalf("error %q does not name %s", err, tt.line)
			}
		})
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.txt", nil)

	c, err := Load(path, Config{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Gzip || len(c.Units) != 0 {
		t.Fatalf("unexpected corpus: %+v", c)
	}
}
