package utterance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/nachokelkar/audio-semantics/pkg/cluster"
)

// spaceTokenizer emits one marked piece per space-separated field.
type spaceTokenizer struct{}

func (spaceTokenizer) EncodeBatch(_ context.Context, texts []string) ([][]string, error) {
	out := make([][]string, len(texts))
	for i, t := range texts {
		for _, f := range strings.Fields(t) {
			out[i] = append(out[i], "▁"+f)
		}
	}
	return out, nil
}

func (spaceTokenizer) Vocab() []string { return nil }
func (spaceTokenizer) Marker() string  { return "▁" }
func (spaceTokenizer) Path() string    { return "space" }

func mustRead(t *testing.T, in string) *Store {
	t.Helper()
	s, _, err := ReadFrom(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPartition(t *testing.T) {
	s := mustRead(t, "ls_cat\tk ae t\nsy_cat\tk a t\n")
	p := s.Partition()

	if got := p.Librispeech.Get("ls_cat"); !slices.Equal(got, []string{"k ae t"}) {
		t.Errorf("ls view = %v", got)
	}
	if p.Librispeech.Len() != 1 {
		t.Errorf("ls view has %d words", p.Librispeech.Len())
	}
	if got := p.Synthetic.Get("sy_cat"); !slices.Equal(got, []string{"k a t"}) {
		t.Errorf("sy view = %v", got)
	}
	if p.Synthetic.Len() != 1 {
		t.Errorf("sy view has %d words", p.Synthetic.Len())
	}
	if got := p.Mixed.Get("cat"); !slices.Equal(got, []string{"k ae t", "k a t"}) {
		t.Errorf("mixed view = %v", got)
	}
	if p.Mixed.Len() != 1 {
		t.Errorf("mixed view has %d words", p.Mixed.Len())
	}
	if p.Mixed.Get("ls_cat") != nil {
		t.Error("mixed view kept a prefixed key")
	}
}

func TestPartitionIsDerived(t *testing.T) {
	s := mustRead(t, "ls_dog\td o g\n")
	p := s.Partition()
	p.Librispeech.Add("ls_dog", "extra")
	if got := s.Get("ls_dog"); len(got) != 1 {
		t.Errorf("store changed through view: %v", got)
	}
}

func TestReadFromSkips(t *testing.T) {
	in := "ls_cat\tk ae t\n\nbroken line\nls_cat\tk ae t\na\tb\tc\n\tnoword\nsy_dog\td o g\r\n"
	s, st, err := ReadFrom(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if st.Lines != 6 || st.Skipped != 3 {
		t.Errorf("stats = %+v, want 6 lines, 3 skipped", st)
	}
	if got := s.Get("ls_cat"); len(got) != 2 {
		t.Errorf("duplicates not kept: %v", got)
	}
	if !slices.Equal(s.Words(), []string{"ls_cat", "sy_dog"}) {
		t.Errorf("Words = %v", s.Words())
	}
	if got := s.Get("sy_dog"); !slices.Equal(got, []string{"d o g"}) {
		t.Errorf("sy_dog = %q", got)
	}
}

func TestSaveLoad(t *testing.T) {
	s := mustRead(t, "ls_cat\tk ae t\nsy_cat\tk a t\nls_cat\tk a t\n")
	path := filepath.Join(t.TempDir(), "level0", "utterances.txt")
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	got, st, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if st.Skipped != 0 {
		t.Errorf("skipped %d lines", st.Skipped)
	}
	var a, b bytes.Buffer
	s.WriteTo(&a)
	got.WriteTo(&b)
	if a.String() != b.String() {
		t.Errorf("round trip:\n%s\nvs\n%s", b.String(), a.String())
	}
	if want := "ls_cat\tk ae t\nls_cat\tk a t\nsy_cat\tk a t\n"; a.String() != want {
		t.Errorf("WriteTo = %q, want %q", a.String(), want)
	}
}

func TestRelabel(t *testing.T) {
	s := mustRead(t, "ls_cat\tk ae t\nsy_cat\tk a t\n")
	idx, err := cluster.ReadFrom(strings.NewReader("A\tk\nB\tae,a\nC\tt\n"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Relabel(context.Background(), spaceTokenizer{}, idx)
	if err != nil {
		t.Fatal(err)
	}
	if v := got.Get("ls_cat"); !slices.Equal(v, []string{"ABC"}) {
		t.Errorf("ls_cat = %v", v)
	}
	if v := got.Get("sy_cat"); !slices.Equal(v, []string{"ABC"}) {
		t.Errorf("sy_cat = %v", v)
	}
	if v := s.Get("ls_cat"); !slices.Equal(v, []string{"k ae t"}) {
		t.Errorf("receiver mutated: %v", v)
	}
}

func TestRelabelUnmapped(t *testing.T) {
	s := mustRead(t, "ls_cat\tk ae t\nls_dog\td o g\n")
	idx, err := cluster.ReadFrom(strings.NewReader("A\tk,ae,t\n"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Relabel(context.Background(), spaceTokenizer{}, idx)
	if !errors.Is(err, cluster.ErrUnmapped) {
		t.Fatalf("err = %v, want ErrUnmapped", err)
	}
	if v := s.Get("ls_dog"); !slices.Equal(v, []string{"d o g"}) {
		t.Errorf("receiver mutated: %v", v)
	}
}

func TestStats(t *testing.T) {
	s := mustRead(t, "ls_cat\tk ae t\nls_cat\tk t\nsy_a\ta\n")
	st, err := s.Stats(context.Background(), spaceTokenizer{})
	if err != nil {
		t.Fatal(err)
	}
	if st.Words != 2 || st.Utterances != 3 || st.MaxUnits != 3 {
		t.Errorf("stats = %+v", st)
	}
	if st.MeanUnits != 2 {
		t.Errorf("MeanUnits = %v, want 2", st.MeanUnits)
	}
	if !slices.Equal(st.Units["ls_cat"], []int{3, 2}) {
		t.Errorf("Units[ls_cat] = %v", st.Units["ls_cat"])
	}

	path := filepath.Join(t.TempDir(), "level1", "utterance_stats.json")
	if err := SaveStats(st, path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got Stats
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Words != st.Words || got.MaxUnits != st.MaxUnits || got.MeanUnits != st.MeanUnits {
		t.Errorf("loaded stats = %+v, want %+v", got, st)
	}
	if !slices.Equal(got.Units["sy_a"], []int{1}) {
		t.Errorf("loaded Units[sy_a] = %v", got.Units["sy_a"])
	}
}

func TestSource(t *testing.T) {
	tests := []struct {
		word, src, bare string
	}{
		{"ls_cat", PrefixLibrispeech, "cat"},
		{"sy_cat", PrefixSynthetic, "cat"},
		{"cat", "", "cat"},
		{"lsx", "", "lsx"},
	}
	for _, tt := range tests {
		if got := Source(tt.word); got != tt.src {
			t.Errorf("Source(%q) = %q, want %q", tt.word, got, tt.src)
		}
		if got := StripSource(tt.word); got != tt.bare {
			t.Errorf("StripSource(%q) = %q, want %q", tt.word, got, tt.bare)
		}
	}
}
