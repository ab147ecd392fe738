package levelwise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nachokelkar/audio-semantics/pkg/bench"
	"github.com/nachokelkar/audio-semantics/pkg/cluster"
	"github.com/nachokelkar/audio-semantics/pkg/embedding"
	"github.com/nachokelkar/audio-semantics/pkg/tokenizer"
)

// DefaultClusterThreshold is the neighbor similarity a unit must exceed
// to join a cluster.
const DefaultClusterThreshold = 0.45

// ErrConfiguration is returned by New for a configuration that cannot
// start a run.
var ErrConfiguration = errors.New("levelwise: invalid configuration")

// LevelConfig configures one level.
type LevelConfig struct {
	Tokenizer        tokenizer.Config `yaml:"tokenizer" json:"tokenizer"`
	Embedding        embedding.Config `yaml:"embedding" json:"embedding"`
	ClusterThreshold float32          `yaml:"cluster_threshold" json:"cluster_threshold"`
}

// WithDefaults returns c with zero fields set to their defaults.
func (c LevelConfig) WithDefaults() LevelConfig {
	c.Tokenizer = c.Tokenizer.WithDefaults()
	c.Embedding = c.Embedding.WithDefaults()
	if c.ClusterThreshold == 0 {
		c.ClusterThreshold = DefaultClusterThreshold
	}
	return c
}

// Recorder is told about every committed level.
type Recorder interface {
	RecordLevel(ctx context.Context, l *Level) error
}

// Publisher mirrors committed level directories.
type Publisher interface {
	PublishLevel(ctx context.Context, l *Level) error
}

// Config configures a Model.
type Config struct {
	// Levels is the number of levels to run. When zero, one level runs
	// per entry of PerLevel.
	Levels int

	// PerLevel holds the configuration of the first levels in order.
	// Levels beyond its length use defaults.
	PerLevel []LevelConfig

	// Corpus is the initial corpus file, one sentence per line.
	Corpus string

	// Utterances is the initial word/utterance file.
	Utterances string

	// Output is the directory level directories are created in.
	Output string

	Tokenizers tokenizer.Trainer
	Embeddings embedding.Trainer

	// Bench evaluates each level. Nil skips evaluation.
	Bench bench.Suite

	// TopK and Alphabet override the clustering defaults.
	TopK     int
	Alphabet cluster.Alphabet

	Recorder  Recorder
	Publisher Publisher

	// OnTransition, if set, is called on every state change.
	OnTransition func(Transition)

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.TopK <= 0 {
		c.TopK = cluster.DefaultTopK
	}
	if len(c.Alphabet) == 0 {
		c.Alphabet = cluster.DefaultAlphabet
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c *Config) validate() error {
	switch {
	case c.Levels <= 0 && len(c.PerLevel) == 0:
		return fmt.Errorf("%w: neither a level count nor per-level configs", ErrConfiguration)
	case c.Levels < 0:
		return fmt.Errorf("%w: negative level count %d", ErrConfiguration, c.Levels)
	case c.Corpus == "":
		return fmt.Errorf("%w: no corpus file", ErrConfiguration)
	case c.Utterances == "":
		return fmt.Errorf("%w: no utterance file", ErrConfiguration)
	case c.Output == "":
		return fmt.Errorf("%w: no output directory", ErrConfiguration)
	case c.Tokenizers == nil:
		return fmt.Errorf("%w: no tokenizer trainer", ErrConfiguration)
	case c.Embeddings == nil:
		return fmt.Errorf("%w: no embedding trainer", ErrConfiguration)
	}
	for i, lc := range c.PerLevel {
		if lc.ClusterThreshold < -1 || lc.ClusterThreshold > 1 {
			return fmt.Errorf("%w: level %d: cluster threshold %v outside [-1, 1]",
				ErrConfiguration, i+1, lc.ClusterThreshold)
		}
	}
	return nil
}

// levels returns the number of levels to run.
func (c *Config) levels() int {
	if c.Levels > 0 {
		return c.Levels
	}
	return len(c.PerLevel)
}

// level returns the configuration of level n, counted from 1.
func (c *Config) level(n int) LevelConfig {
	if n-1 < len(c.PerLevel) {
		return c.PerLevel[n-1].WithDefaults()
	}
	return LevelConfig{}.WithDefaults()
}
