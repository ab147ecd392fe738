package embedding

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nachokelkar/audio-semantics/pkg/vecstore"
)

// Table is an in-memory Model. Neighbor queries go through a
// [vecstore.Memory] so rankings are exact and deterministic.
type Table struct {
	units   []string
	vectors map[string][]float32
	dim     int
	index   vecstore.Index
}

var _ Model = (*Table)(nil)

// NewTable builds a table from parallel unit and vector slices. Every
// vector must have the same length and units must be unique.
func NewTable(units []string, vectors [][]float32) (*Table, error) {
	if len(units) != len(vectors) {
		return nil, fmt.Errorf("embedding: %d units, %d vectors", len(units), len(vectors))
	}
	t := &Table{
		units:   make([]string, 0, len(units)),
		vectors: make(map[string][]float32, len(units)),
		index:   vecstore.NewMemory(),
	}
	for i, u := range units {
		if _, dup := t.vectors[u]; dup {
			return nil, fmt.Errorf("embedding: duplicate unit %q", u)
		}
		if i == 0 {
			t.dim = len(vectors[i])
		} else if len(vectors[i]) != t.dim {
			return nil, fmt.Errorf("embedding: unit %q has %d dims, want %d", u, len(vectors[i]), t.dim)
		}
		cp := make([]float32, len(vectors[i]))
		copy(cp, vectors[i])
		t.units = append(t.units, u)
		t.vectors[u] = cp
	}
	if err := t.index.BatchInsert(t.units, vectors); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) Vocab() []string { return t.units }
func (t *Table) Dim() int        { return t.dim }
func (t *Table) Len() int        { return len(t.units) }

func (t *Table) Vector(unit string) ([]float32, bool) {
	v, ok := t.vectors[unit]
	return v, ok
}

func (t *Table) Neighbors(unit string, k int) ([]Neighbor, error) {
	v, ok := t.vectors[unit]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	if k <= 0 {
		return nil, nil
	}
	// One extra slot for unit itself, which ranks first.
	matches, err := t.index.Search(v, k+1)
	if err != nil {
		return nil, err
	}
	out := make([]Neighbor, 0, k)
	for _, m := range matches {
		if m.ID == unit {
			continue
		}
		if len(out) == k {
			break
		}
		// Exact cosine; 1-Distance drifts by an ulp near thresholds.
		out = append(out, Neighbor{Unit: m.ID, Similarity: vecstore.CosineSimilarity(v, t.vectors[m.ID])})
	}
	return out, nil
}

// WriteTo writes the table in word2vec text format: a "count dim" header,
// then one "unit v1 v2 ..." line per unit.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	c, err := fmt.Fprintf(bw, "%d %d\n", len(t.units), t.dim)
	n += int64(c)
	if err != nil {
		return n, err
	}
	for _, u := range t.units {
		c, err := bw.WriteString(u)
		n += int64(c)
		if err != nil {
			return n, err
		}
		for _, x := range t.vectors[u] {
			c, err := bw.WriteString(" " + strconv.FormatFloat(float64(x), 'g', -1, 32))
			n += int64(c)
			if err != nil {
				return n, err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return n, err
		}
		n++
	}
	return n, bw.Flush()
}

// Save writes the table to path.
func (t *Table) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := t.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("embedding: save %s: %w", path, err)
	}
	return f.Close()
}

// ReadTable parses word2vec text format. The "count dim" header is
// optional, so headerless trainer output loads as well.
func ReadTable(r io.Reader) (*Table, error) {
	var (
		units   []string
		vectors [][]float32
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && isHeader(fields) {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("embedding: line %d: no vector", line)
		}
		vec := make([]float32, len(fields)-1)
		for i, f := range fields[1:] {
			x, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, fmt.Errorf("embedding: line %d: %w", line, err)
			}
			vec[i] = float32(x)
		}
		units = append(units, fields[0])
		vectors = append(vectors, vec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return NewTable(units, vectors)
}

// LoadTable reads a table from path.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("embedding: load %s: %w", path, err)
	}
	defer f.Close()
	return ReadTable(f)
}

func isHeader(fields []string) bool {
	if len(fields) != 2 {
		return false
	}
	_, err1 := strconv.Atoi(fields[0])
	_, err2 := strconv.Atoi(fields[1])
	return err1 == nil && err2 == nil
}
