package utterance

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LoadStats reports what ReadFrom saw.
type LoadStats struct {
	Lines   int `json:"lines"`
	Skipped int `json:"skipped"`
}

// ReadFrom parses word/utterance lines. Blank lines are ignored; lines
// that do not split into exactly a word and an utterance are skipped and
// counted.
func ReadFrom(r io.Reader) (*Store, LoadStats, error) {
	s := New()
	var st LoadStats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		st.Lines++
		parts := strings.Split(line, "\t")
		if len(parts) != 2 || parts[0] == "" {
			st.Skipped++
			continue
		}
		s.Add(parts[0], parts[1])
	}
	if err := sc.Err(); err != nil {
		return nil, st, fmt.Errorf("utterance: read: %w", err)
	}
	return s, st, nil
}

// Load reads a store from path.
func Load(path string) (*Store, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("utterance: load: %w", err)
	}
	defer f.Close()
	return ReadFrom(f)
}

// WriteTo writes one line per utterance, grouped by word in store order.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, word := range s.words {
		for _, u := range s.utts[word] {
			c, err := fmt.Fprintf(bw, "%s\t%s\n", word, u)
			n += int64(c)
			if err != nil {
				return n, err
			}
		}
	}
	return n, bw.Flush()
}

// Save writes the store to path, creating parent directories.
func (s *Store) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("utterance: save %s: %w", path, err)
	}
	return f.Close()
}
