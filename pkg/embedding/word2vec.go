package embedding

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ynqa/wego/pkg/model/modelutil/vector"
	"github.com/ynqa/wego/pkg/model/word2vec"
)

// Word2Vec trains CBOW word2vec tables with negative sampling.
type Word2Vec struct {
	logger *slog.Logger
}

var _ Trainer = (*Word2Vec)(nil)

// NewWord2Vec creates a trainer. A nil logger means slog.Default().
func NewWord2Vec(logger *slog.Logger) *Word2Vec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Word2Vec{logger: logger}
}

// Train writes the sentences to a scratch file next to path, trains on
// it and saves the resulting vectors to path.
func (w *Word2Vec) Train(ctx context.Context, sentences [][]string, cfg Config, path string) (Model, error) {
	cfg = cfg.WithDefaults()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	input, err := writeSentences(filepath.Dir(path), sentences)
	if err != nil {
		return nil, err
	}
	defer os.Remove(input.Name())
	defer input.Close()

	model, err := word2vec.New(
		word2vec.Dim(cfg.Dim),
		word2vec.Window(cfg.Window),
		word2vec.Iter(cfg.Epochs),
		word2vec.MinCount(cfg.MinCount),
		word2vec.Goroutines(cfg.Workers),
		word2vec.Model(word2vec.Cbow),
		word2vec.Optimizer(word2vec.NegativeSampling),
		word2vec.NegativeSampleSize(5),
	)
	if err != nil {
		return nil, fmt.Errorf("embedding: word2vec: %w", err)
	}

	w.logger.Debug("training word2vec", "sentences", len(sentences), "dim", cfg.Dim, "window", cfg.Window)
	if err := model.Train(input); err != nil {
		return nil, fmt.Errorf("embedding: train: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := model.Save(out, vector.Single); err != nil {
		out.Close()
		return nil, fmt.Errorf("embedding: save: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, err
	}

	// Re-save through Table so every level carries the same header format.
	t, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	if err := checkCoverage(t, sentences, cfg.MinCount); err != nil {
		return nil, err
	}
	if err := t.Save(path); err != nil {
		return nil, err
	}
	return t, nil
}

// Load reads a vector file in word2vec text format.
func (w *Word2Vec) Load(_ context.Context, path string) (Model, error) {
	return LoadTable(path)
}

// checkCoverage reports the first unit seen at least minCount times in
// sentences that has no vector in t.
func checkCoverage(t *Table, sentences [][]string, minCount int) error {
	counts := make(map[string]int)
	var order []string
	for _, s := range sentences {
		for _, u := range s {
			if counts[u] == 0 {
				order = append(order, u)
			}
			counts[u]++
		}
	}
	for _, u := range order {
		if counts[u] < minCount {
			continue
		}
		if _, ok := t.Vector(u); !ok {
			return fmt.Errorf("%w: trainer dropped %q (%d occurrences)", ErrUnknownUnit, u, counts[u])
		}
	}
	return nil
}

// writeSentences stores one space-joined sentence per line and rewinds
// the file for reading.
func writeSentences(dir string, sentences [][]string) (*os.File, error) {
	f, err := os.CreateTemp(dir, "sentences-*.txt")
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriter(f)
	for _, s := range sentences {
		if len(s) == 0 {
			continue
		}
		bw.WriteString(strings.Join(s, " "))
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return f, nil
}
