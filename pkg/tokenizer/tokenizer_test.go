package tokenizer

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
)

// splitModel splits on whitespace and prefixes each word with the marker,
// the way SentencePiece presents word starts.
type splitModel struct {
	calls int
	short bool
}

func (m *splitModel) EncodeBatch(_ context.Context, texts []string) ([][]string, error) {
	m.calls++
	out := make([][]string, 0, len(texts))
	for _, t := range texts {
		var pieces []string
		for _, w := range strings.Fields(t) {
			pieces = append(pieces, DefaultMarker, w)
		}
		out = append(out, pieces)
	}
	if m.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *splitModel) Vocab() []string { return nil }
func (m *splitModel) Marker() string  { return DefaultMarker }
func (m *splitModel) Path() string    { return "split" }

func TestStripMarkers(t *testing.T) {
	tests := []struct {
		name   string
		pieces []string
		marker string
		want   []string
	}{
		{"drops marker pieces", []string{"▁", "ab", "▁", "c"}, DefaultMarker, []string{"ab", "c"}},
		{"strips embedded marker", []string{"▁ab", "c▁d"}, DefaultMarker, []string{"ab", "cd"}},
		{"empty marker keeps pieces", []string{"▁ab"}, "", []string{"▁ab"}},
		{"all markers", []string{"▁", "▁▁"}, DefaultMarker, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripMarkers(tt.pieces, tt.marker)
			if !slices.Equal(got, tt.want) {
				t.Errorf("StripMarkers(%q) = %q, want %q", tt.pieces, got, tt.want)
			}
		})
	}
}

func TestUnitsBatch(t *testing.T) {
	ctx := context.Background()
	m := &splitModel{}
	got, err := UnitsBatch(ctx, m, []string{"k ae t", "d ao g"})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got[0], []string{"k", "ae", "t"}) || !slices.Equal(got[1], []string{"d", "ao", "g"}) {
		t.Errorf("UnitsBatch = %q", got)
	}

	m.short = true
	if _, err := UnitsBatch(ctx, m, []string{"a", "b"}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	inner := &splitModel{}
	c := NewCache(inner)

	if err := c.Warm(ctx, []string{"a b", "c", "a b"}); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 || c.Len() != 2 {
		t.Fatalf("calls = %d, len = %d; want 1, 2", inner.calls, c.Len())
	}

	u, err := Units(ctx, c, "a b")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(u, []string{"a", "b"}) || inner.calls != 1 {
		t.Errorf("cached Units = %q after %d calls", u, inner.calls)
	}

	u, _ = c.Units(ctx, "d e")
	if !slices.Equal(u, []string{"d", "e"}) || inner.calls != 2 {
		t.Errorf("miss Units = %q after %d calls", u, inner.calls)
	}

	// Warming with nothing new never calls the backend.
	_ = c.Warm(ctx, []string{"c", "d e"})
	if inner.calls != 2 {
		t.Errorf("calls = %d, want 2", inner.calls)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	c := Config{VocabSize: 300}.WithDefaults()
	if c.VocabSize != 300 || c.ModelType != DefaultModelType ||
		c.MaxSentenceLength != DefaultMaxSentenceLength || c.Normalization != DefaultNormalization {
		t.Errorf("WithDefaults = %+v", c)
	}
}

func TestReadVocab(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.vocab")
	data := "<unk>\t0\n<s>\t0\n</s>\t0\n▁\t-1\n▁ab\t-2\nab\t-3\nc\t-4\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := readVocab(path)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"ab", "c"}) {
		t.Errorf("readVocab = %q", got)
	}
}

// writeScript creates an executable shell script standing in for a
// SentencePiece tool.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSentencePieceWithFakeTools(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	train := writeScript(t, dir, "spm_train", `for a in "$@"; do
  case "$a" in --model_prefix=*) p="${a#--model_prefix=}";; esac
done
printf '<unk>\t0\n▁ab\t-1\nc\t-2\n' > "$p.vocab"
: > "$p.model"
`)
	encode := writeScript(t, dir, "spm_encode", `while IFS= read -r line; do echo "▁$line"; done
`)

	tr := NewSentencePieceTrainer(SentencePieceOptions{TrainBin: train, EncodeBin: encode})
	ctx := context.Background()
	m, err := tr.Train(ctx, filepath.Join(dir, "corpus.txt"), filepath.Join(dir, "tok"), Config{})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if m.Path() != filepath.Join(dir, "tok.model") {
		t.Errorf("Path = %q", m.Path())
	}
	if !slices.Equal(m.Vocab(), []string{"ab", "c"}) {
		t.Errorf("Vocab = %q", m.Vocab())
	}

	units, err := UnitsBatch(ctx, m, []string{"ab c", "", "x\ny"})
	if err != nil {
		t.Fatalf("UnitsBatch: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("got %d encodings, want 3", len(units))
	}
	if !slices.Equal(units[0], []string{"ab", "c"}) || len(units[1]) != 0 || !slices.Equal(units[2], []string{"x", "y"}) {
		t.Errorf("units = %q", units)
	}

	failing := writeScript(t, dir, "spm_fail", "echo 'bad model' >&2\nexit 3\n")
	tr = NewSentencePieceTrainer(SentencePieceOptions{TrainBin: failing})
	if _, err := tr.Train(ctx, "in", filepath.Join(dir, "x"), Config{}); err == nil || !strings.Contains(err.Error(), "bad model") {
		t.Errorf("expected trainer error carrying stderr, got %v", err)
	}
}
