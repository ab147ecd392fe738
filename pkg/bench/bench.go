// Package bench scores a level against human relatedness judgments and
// with ABX discrimination tests.
//
// # Usage
//
//	b := bench.New(bench.Config{Seed: 1})
//	if err := b.LoadScores("scores.csv"); err != nil { ... }
//	res, err := b.RunSuite(ctx, store, embedding.WordVecFunc(ctx, tok, emb))
//	err = bench.SaveResults(res, "level0/results.json")
//
// Per-item failures (a pair with an unknown word, an ABX triple that
// cannot be formed) never fail a run. They are counted in the errors
// field that every result block carries next to its trials.
package bench

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"

	"github.com/nachokelkar/audio-semantics/pkg/embedding"
	"github.com/nachokelkar/audio-semantics/pkg/utterance"
)

// Partition names used in results.
const (
	Librispeech = "librispeech"
	Synthetic   = "synthetic"
	Mixed       = "mixed"
	Combined    = "combined"
)

// Test set names.
const (
	TestRelatedness = "rel"
	TestSimilarity  = "sim"
)

// DefaultSameWordTrials is the number of same-word ABX trials per partition.
const DefaultSameWordTrials = 700

var (
	// ErrNoScores is returned by RunSuite before LoadScores succeeded.
	ErrNoScores = errors.New("bench: no scores loaded")

	// ErrUnknownTest is returned for a test set name other than rel or sim.
	ErrUnknownTest = errors.New("bench: unknown test set")
)

// Suite is an evaluation protocol.
type Suite interface {
	LoadScores(path string) error
	RunSuite(ctx context.Context, store *utterance.Store, fn embedding.VecFunc) (*Results, error)
}

// Config configures a Bench.
type Config struct {
	// Seed seeds a fresh random source for every RunSuite call when Rand
	// is nil.
	Seed uint64

	// Rand, if set, is used as-is and shared across runs.
	Rand *rand.Rand

	// SameWordTrials is the number of same-word trials per partition.
	SameWordTrials int

	// SyntheticNegatives replaces the least related word of cross-word
	// ABX with a random string of the B utterance's length.
	SyntheticNegatives bool

	// Tests lists the correlation test sets to run. Default: rel.
	Tests []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.SameWordTrials <= 0 {
		c.SameWordTrials = DefaultSameWordTrials
	}
	if len(c.Tests) == 0 {
		c.Tests = []string{TestRelatedness}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Bench is the relatedness correlation and ABX suite.
type Bench struct {
	cfg    Config
	scores *ScoreSet
}

var _ Suite = (*Bench)(nil)

// New creates a bench. Call LoadScores or SetScores before RunSuite.
func New(cfg Config) *Bench {
	cfg.defaults()
	return &Bench{cfg: cfg}
}

// SetScores installs already parsed scores.
func (b *Bench) SetScores(s *ScoreSet) { b.scores = s }

// Scores returns the loaded scores, or nil.
func (b *Bench) Scores() *ScoreSet { return b.scores }

// LoadScores reads the human score file.
func (b *Bench) LoadScores(path string) error {
	s, err := LoadScores(path)
	if err != nil {
		return err
	}
	if s.Errors > 0 {
		b.cfg.Logger.Warn("unparsable score rows", "path", path, "rows", s.Errors)
	}
	b.scores = s
	return nil
}

// RunSuite runs the correlation tests and both ABX protocols.
func (b *Bench) RunSuite(ctx context.Context, store *utterance.Store, fn embedding.VecFunc) (*Results, error) {
	if b.scores == nil {
		return nil, ErrNoScores
	}
	for _, name := range b.cfg.Tests {
		if _, err := b.scores.Test(name); err != nil {
			return nil, err
		}
	}

	rng := b.cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(b.cfg.Seed, 0))
	}
	r := &run{
		cfg:   &b.cfg,
		store: store,
		views: store.Partition(),
		vecs:  newVectorCache(fn),
		rng:   rng,
	}

	res := &Results{Correlation: make(map[string]CorrelationResult, len(b.cfg.Tests))}
	for _, name := range b.cfg.Tests {
		pairs, _ := b.scores.Test(name)
		res.Correlation[name] = r.correlation(pairs)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	res.SameWord = r.sameWord()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.CrossWord = r.crossWord(b.scores.Related())
	return res, nil
}

// run holds the state of one RunSuite call.
type run struct {
	cfg   *Config
	store *utterance.Store
	views utterance.Partitions
	vecs  *vectorCache
	rng   *rand.Rand
}
