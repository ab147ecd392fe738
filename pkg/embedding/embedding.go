// Package embedding is the boundary to the external embedding trainer and
// the nearest-neighbor queries the clustering stage runs on its output.
//
// A trained model is held as a [Table]: units in their defined order, one
// vector per unit, and a [vecstore.Index] answering cosine queries.
// [Word2Vec] trains tables with a CBOW word2vec; [WordVecFunc] turns a
// tokenizer and a model into the string-to-vector function used by
// evaluation.
package embedding

import (
	"context"
	"errors"
)

// Defaults mirror the embedding settings of the first level.
const (
	DefaultDim      = 100
	DefaultWindow   = 5
	DefaultEpochs   = 7
	DefaultMinCount = 1
	DefaultWorkers  = 4
)

// Errors returned by models and vector functions.
var (
	// ErrUnknownUnit is returned when a unit has no vector.
	ErrUnknownUnit = errors.New("embedding: unknown unit")

	// ErrEmptyInput is returned when a string encodes to no units.
	ErrEmptyInput = errors.New("embedding: empty input")
)

// Neighbor is a unit ranked by cosine similarity to a query unit.
type Neighbor struct {
	Unit       string
	Similarity float32
}

// Model is a trained set of unit vectors.
type Model interface {
	// Vocab returns every unit in the model's defined order.
	Vocab() []string

	// Vector returns the vector of unit.
	Vector(unit string) ([]float32, bool)

	// Neighbors returns up to k units most similar to unit, excluding
	// unit itself, by descending cosine similarity.
	Neighbors(unit string, k int) ([]Neighbor, error)

	// Dim returns the vector dimensionality.
	Dim() int
}

// Trainer trains or loads embedding models.
type Trainer interface {
	// Train fits vectors on tokenized sentences and saves them to path.
	Train(ctx context.Context, sentences [][]string, cfg Config, path string) (Model, error)

	// Load reads a model saved by Train.
	Load(ctx context.Context, path string) (Model, error)
}

// Config holds the per-level embedding settings.
type Config struct {
	// Dim is the vector dimensionality. Default: 100.
	Dim int `yaml:"dim,omitempty" json:"dim,omitempty"`

	// Window is the context window. Default: 5.
	Window int `yaml:"window,omitempty" json:"window,omitempty"`

	// Epochs is the number of training passes. Default: 7.
	Epochs int `yaml:"epochs,omitempty" json:"epochs,omitempty"`

	// MinCount drops units seen fewer times. Default: 1 (keep all).
	MinCount int `yaml:"min_count,omitempty" json:"min_count,omitempty"`

	// Workers is the trainer's goroutine count. Default: 4.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`

	// UseModel loads this vector file instead of training.
	UseModel string `yaml:"use_model,omitempty" json:"use_model,omitempty"`
}

// WithDefaults returns c with zero fields set to their defaults.
func (c Config) WithDefaults() Config {
	if c.Dim == 0 {
		c.Dim = DefaultDim
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.Epochs == 0 {
		c.Epochs = DefaultEpochs
	}
	if c.MinCount == 0 {
		c.MinCount = DefaultMinCount
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	return c
}
