package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Concat joins the lines of inputs into out, skipping blank lines, and
// returns the number of lines written.
func Concat(out string, inputs []string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(f)
	n := 0
	for _, in := range inputs {
		c, err := copyLines(w, in)
		n += c
		if err != nil {
			f.Close()
			return n, fmt.Errorf("corpus: concat %s: %w", in, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}

func copyLines(w io.Writer, path string) (int, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range lines {
		if l == "" {
			continue
		}
		if _, err := fmt.Fprintln(w, l); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
