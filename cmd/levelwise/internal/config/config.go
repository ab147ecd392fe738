// Package config loads the pipeline file of the levelwise CLI.
//
// A pipeline file is YAML:
//
//	levels: 3
//	corpus: data/corpus.txt
//	utterances: data/utterances.txt
//	scores: data/scores.csv
//	output: out
//	per_level:
//	  - tokenizer: {vocab_size: 20000, model_type: unigram}
//	    embedding: {dim: 100, epochs: 7}
//	    cluster_threshold: 0.45
//	  - cluster_threshold: 0.5
//	publish:
//	  s3: {bucket: my-bucket, prefix: runs}
//
// Relative paths are resolved against the directory of the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/nachokelkar/audio-semantics/pkg/levelwise"
	"github.com/nachokelkar/audio-semantics/pkg/storage"
	"github.com/nachokelkar/audio-semantics/pkg/tokenizer"
)

// DefaultHistory is the run history directory used when none is given.
const DefaultHistory = ".levelwise"

// File is a pipeline file.
type File struct {
	Levels     int    `yaml:"levels,omitempty"`
	Corpus     string `yaml:"corpus"`
	Utterances string `yaml:"utterances"`
	Output     string `yaml:"output"`

	// Scores is the relatedness CSV. Empty disables evaluation.
	Scores string `yaml:"scores,omitempty"`

	Bench Bench `yaml:"bench,omitempty"`

	PerLevel []levelwise.LevelConfig `yaml:"per_level,omitempty"`

	// TopK is the number of neighbors queried per unit when clustering.
	TopK int `yaml:"top_k,omitempty"`

	SentencePiece tokenizer.SentencePieceOptions `yaml:"sentencepiece,omitempty"`

	// History is the badger directory of the run history.
	History string `yaml:"history,omitempty"`

	Publish Publish `yaml:"publish,omitempty"`
}

// Bench configures evaluation.
type Bench struct {
	Seed               uint64   `yaml:"seed,omitempty"`
	SameWordTrials     int      `yaml:"same_word_trials,omitempty"`
	SyntheticNegatives bool     `yaml:"synthetic_negatives,omitempty"`
	Tests              []string `yaml:"tests,omitempty"`
}

// Publish configures where committed levels are mirrored. At most one
// of Dir and S3 may be set.
type Publish struct {
	Dir string            `yaml:"dir,omitempty"`
	S3  *storage.S3Config `yaml:"s3,omitempty"`
}

// Load reads and validates a pipeline file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	f.resolve(filepath.Dir(path))
	return f, nil
}

// Parse decodes and validates a pipeline file without resolving paths.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.Strict()); err != nil {
		return nil, err
	}
	if f.Output == "" {
		f.Output = "out"
	}
	if f.History == "" {
		f.History = DefaultHistory
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	switch {
	case f.Corpus == "":
		return fmt.Errorf("corpus is required")
	case f.Utterances == "":
		return fmt.Errorf("utterances is required")
	case f.Levels < 0:
		return fmt.Errorf("levels must not be negative")
	case f.Levels == 0 && len(f.PerLevel) == 0:
		return fmt.Errorf("either levels or per_level is required")
	case f.Publish.Dir != "" && f.Publish.S3 != nil:
		return fmt.Errorf("publish: dir and s3 are exclusive")
	case f.Publish.S3 != nil && f.Publish.S3.Bucket == "":
		return fmt.Errorf("publish: s3 bucket is required")
	}
	return nil
}

// resolve makes relative paths relative to dir.
func (f *File) resolve(dir string) {
	for _, p := range []*string{&f.Corpus, &f.Utterances, &f.Output, &f.Scores, &f.History, &f.Publish.Dir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	for i := range f.PerLevel {
		lc := &f.PerLevel[i]
		for _, p := range []*string{&lc.Tokenizer.UseModel, &lc.Embedding.UseModel} {
			if *p != "" && !filepath.IsAbs(*p) {
				*p = filepath.Join(dir, *p)
			}
		}
	}
}

// Save writes f as YAML.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal pipeline: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
