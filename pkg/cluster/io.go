package cluster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// WriteTo writes one line per cluster in allocation order:
// the ID, a tab, then the comma-joined members.
func (x *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, id := range x.order {
		c, err := fmt.Fprintf(bw, "%c\t%s\n", rune(id), strings.Join(x.members[id], ","))
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Save writes the index to path, creating parent directories.
func (x *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := x.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("cluster: save %s: %w", path, err)
	}
	return f.Close()
}

// ReadFrom parses the format written by WriteTo. Blank lines are skipped;
// a unit listed twice is rejected.
func ReadFrom(r io.Reader) (*Index, error) {
	x := New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		key, list, ok := strings.Cut(text, "\t")
		if !ok || utf8.RuneCountInString(key) != 1 {
			return nil, fmt.Errorf("%w: line %d", ErrMalformed, line)
		}
		r, _ := utf8.DecodeRuneInString(key)
		id := ID(r)
		if err := x.open(id); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for _, unit := range strings.Split(list, ",") {
			if unit == "" {
				continue
			}
			if !x.assign(unit, id) {
				return nil, fmt.Errorf("%w: line %d: unit %q already in cluster %q",
					ErrMalformed, line, unit, x.of[unit])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return x, nil
}

// Load reads an index from path.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cluster: load %s: %w", path, err)
	}
	defer f.Close()
	return ReadFrom(f)
}
