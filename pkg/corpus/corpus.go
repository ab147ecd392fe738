// Package corpus prepares the initial line-oriented corpus from raw
// source documents and reads and writes corpus files.
//
// # Usage
//
//	rep, err := corpus.Prepare(ctx, docs, "prepared", corpus.Config{Mode: corpus.ModeChar})
//	lines, err := corpus.Concat("corpus.txt", rep.Outputs())
//
// Documents are processed by a bounded worker pool. Each document gets its
// own output file and one document's failure never stops the others.
package corpus

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
)

// Mode selects how documents are turned into sentences.
type Mode string

const (
	// ModeChar keeps lowercase letters only, one sentence per line.
	ModeChar Mode = "char"

	// ModeNoisy is ModeChar with random symbol substitutions and
	// deletions.
	ModeNoisy Mode = "noisy"
)

// Defaults of Config.
const (
	DefaultDelimiters    = ".?!\n"
	DefaultSentenceLimit = 4000
	DefaultNoiseProb     = 0.01
)

// ErrMode is returned for an unknown Mode.
var ErrMode = errors.New("corpus: unknown mode")

// Transliterator rewrites a document before segmentation, e.g. into
// phonemes.
type Transliterator interface {
	Transliterate(ctx context.Context, text string) (string, error)
}

// Config is shared read-only by all workers.
type Config struct {
	Mode Mode `yaml:"mode"`

	// Delimiters end a sentence. Default: ".?!\n".
	Delimiters string `yaml:"delimiters,omitempty"`

	// SentenceLimit is the longest sentence in letters. Default: 4000.
	SentenceLimit int `yaml:"sentence_limit,omitempty"`

	// LineLimit stops a document after this many sentences. 0 means no
	// limit.
	LineLimit int `yaml:"line_limit,omitempty"`

	// NoiseProb is the per-symbol noise probability of ModeNoisy.
	NoiseProb float64 `yaml:"noise_prob,omitempty"`

	// Seed seeds the per-document noise sources.
	Seed uint64 `yaml:"seed,omitempty"`

	// Workers bounds concurrent documents. Default: GOMAXPROCS.
	Workers int `yaml:"workers,omitempty"`

	Transliterator Transliterator `yaml:"-"`
	Logger         *slog.Logger   `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = ModeChar
	}
	if c.Delimiters == "" {
		c.Delimiters = DefaultDelimiters
	}
	if c.SentenceLimit <= 0 {
		c.SentenceLimit = DefaultSentenceLimit
	}
	if c.NoiseProb == 0 {
		c.NoiseProb = DefaultNoiseProb
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
