package corpus

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

// Result is the outcome of one document.
type Result struct {
	Doc    string `json:"doc"`
	Output string `json:"output,omitempty"`
	Lines  int    `json:"lines"`
	Err    error  `json:"-"`
}

// Report collects the results of Prepare in document order.
type Report struct {
	Results []Result `json:"results"`
	Failed  int      `json:"failed"`
	Lines   int      `json:"lines"`
}

// Outputs returns the output files of the successful documents.
func (r *Report) Outputs() []string {
	var out []string
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res.Output)
		}
	}
	return out
}

// OutputPath returns the output file of doc: its base name prefixed with
// an underscore, in outDir or next to doc when outDir is empty.
func OutputPath(doc, outDir string) string {
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(doc)
	}
	return filepath.Join(dir, "_"+filepath.Base(doc))
}

// Prepare converts every document in docs. Per-document failures are
// reported in the Report; the returned error is only set for an invalid
// configuration or a cancelled context.
func Prepare(ctx context.Context, docs []string, outDir string, cfg Config) (*Report, error) {
	cfg.defaults()
	if cfg.Mode != ModeChar && cfg.Mode != ModeNoisy {
		return nil, fmt.Errorf("%w: %q", ErrMode, cfg.Mode)
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, fmt.Errorf("corpus: %w", err)
		}
	}

	rep := &Report{Results: make([]Result, len(docs))}
	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i, doc := range docs {
		g.Go(func() error {
			res := Result{Doc: doc, Output: OutputPath(doc, outDir)}
			if err := ctx.Err(); err != nil {
				res.Err = err
			} else {
				res.Lines, res.Err = prepareDoc(ctx, doc, res.Output, uint64(i), &cfg)
			}
			if res.Err != nil {
				cfg.Logger.Warn("document failed", "doc", doc, "err", res.Err)
			} else {
				cfg.Logger.Debug("document prepared", "doc", doc, "output", res.Output, "lines", res.Lines)
			}
			rep.Results[i] = res
			return nil
		})
	}
	g.Wait()

	for _, res := range rep.Results {
		if res.Err != nil {
			rep.Failed++
			continue
		}
		rep.Lines += res.Lines
	}
	return rep, ctx.Err()
}

func prepareDoc(ctx context.Context, doc, output string, stream uint64, cfg *Config) (int, error) {
	data, err := os.ReadFile(doc)
	if err != nil {
		return 0, err
	}
	text := norm.NFKC.String(strings.ToValidUTF8(string(data), ""))
	if cfg.Transliterator != nil {
		if text, err = cfg.Transliterator.Transliterate(ctx, text); err != nil {
			return 0, fmt.Errorf("transliterate: %w", err)
		}
	}
	if cfg.Mode == ModeNoisy {
		text = addNoise(text, cfg.NoiseProb, rand.New(rand.NewPCG(cfg.Seed, stream)))
	}

	out, lines := Segment(text, cfg.Delimiters, cfg.SentenceLimit, cfg.LineLimit)
	if err := os.WriteFile(output, []byte(out+"\n"), 0o644); err != nil {
		return 0, err
	}
	return lines, nil
}

// Segment keeps the letters of text, lowercased, and breaks lines at
// delimiters. A sentence running past limit letters is broken there and
// the letter that overflowed is dropped. It returns the text and the
// number of lines ended by a break; with a positive lineLimit, output
// stops after that many lines.
func Segment(text, delimiters string, limit, lineLimit int) (string, int) {
	var b strings.Builder
	sentLen, lines := 0, 0
	atBreak := true
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) && sentLen <= limit:
			b.WriteRune(unicode.ToLower(r))
			sentLen++
			atBreak = false
		case strings.ContainsRune(delimiters, r) || sentLen > limit:
			if !atBreak {
				if lineLimit > 0 && lines == lineLimit {
					out := b.String()
					return strings.TrimSpace(out[:strings.LastIndexByte(out, '\n')+1]), lines
				}
				lines++
				b.WriteByte('\n')
				atBreak = true
			}
			sentLen = 0
		}
	}
	if lineLimit > 0 && lines == lineLimit && !atBreak {
		out := b.String()
		return strings.TrimSpace(out[:strings.LastIndexByte(out, '\n')+1]), lines
	}
	return strings.TrimSpace(b.String()), lines
}

// addNoise replaces each letter, with probability p, by a random letter
// of the text's own inventory or by nothing.
func addNoise(text string, p float64, rng *rand.Rand) string {
	seen := make(map[rune]bool)
	for _, r := range text {
		if unicode.IsLetter(r) {
			seen[unicode.ToLower(r)] = true
		}
	}
	inventory := make([]rune, 0, len(seen))
	for r := range seen {
		inventory = append(inventory, r)
	}
	slices.Sort(inventory)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if !unicode.IsLetter(r) || rng.Float64() >= p {
			b.WriteRune(r)
			continue
		}
		// One extra slot stands for deletion.
		if k := rng.IntN(len(inventory) + 1); k < len(inventory) {
			b.WriteRune(inventory[k])
		}
	}
	return b.String()
}
