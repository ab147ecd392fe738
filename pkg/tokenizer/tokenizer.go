// Package tokenizer is the boundary to the external subword tokenizer.
//
// A [Model] turns text into subword pieces. Pieces may carry the
// tokenizer's word-boundary marker (SentencePiece uses U+2581); the
// pipeline never works on raw pieces but on units, which are pieces with
// the marker removed and marker-only pieces dropped (see [StripMarkers]).
//
// # Usage
//
//	tr := tokenizer.NewSentencePieceTrainer(tokenizer.SentencePieceOptions{})
//	m, err := tr.Train(ctx, "corpus.txt", "level1/tokenizer", tokenizer.Config{VocabSize: 8000})
//
//	units, err := tokenizer.Units(ctx, m, "some text")
package tokenizer

import (
	"context"
	"errors"
	"strings"
)

// DefaultMarker is the SentencePiece word-boundary marker.
const DefaultMarker = "▁"

// Defaults mirror the tokenizer settings of the first level.
const (
	DefaultVocabSize         = 20000
	DefaultModelType         = "unigram"
	DefaultMaxSentenceLength = 5000
	DefaultNormalization     = "identity"
)

// ErrLengthMismatch is returned when a backend answers with a different
// number of encodings than texts it was given.
var ErrLengthMismatch = errors.New("tokenizer: encoding count mismatch")

// Model is a trained subword tokenizer.
type Model interface {
	// EncodeBatch encodes each text into raw pieces (markers included).
	// The result has one entry per input text.
	EncodeBatch(ctx context.Context, texts []string) ([][]string, error)

	// Vocab returns the units of the vocabulary, markers stripped,
	// deduplicated, in vocabulary order.
	Vocab() []string

	// Marker returns the word-boundary marker used by the pieces.
	Marker() string

	// Path returns the model file the tokenizer was loaded from.
	Path() string
}

// Trainer trains or loads tokenizer models.
type Trainer interface {
	// Train fits a model on the corpus file. Artifacts are written next to
	// prefix (e.g. prefix + ".model").
	Train(ctx context.Context, corpusPath, prefix string, cfg Config) (Model, error)

	// Load opens a previously trained model.
	Load(ctx context.Context, modelPath string) (Model, error)
}

// Config holds the per-level tokenizer settings.
type Config struct {
	// VocabSize is the target vocabulary size. Default: 20000.
	VocabSize int `yaml:"vocab_size,omitempty" json:"vocab_size,omitempty"`

	// ModelType is the model family (unigram, bpe, char, word).
	// Default: unigram.
	ModelType string `yaml:"model_type,omitempty" json:"model_type,omitempty"`

	// MaxSentenceLength is the longest input line the trainer accepts,
	// in bytes. Default: 5000.
	MaxSentenceLength int `yaml:"max_sentence_length,omitempty" json:"max_sentence_length,omitempty"`

	// Normalization is the normalization rule applied before training.
	// Default: identity, so cluster symbols reach the trainer unchanged.
	Normalization string `yaml:"normalization,omitempty" json:"normalization,omitempty"`

	// UseModel loads this model file instead of training.
	UseModel string `yaml:"use_model,omitempty" json:"use_model,omitempty"`
}

// WithDefaults returns c with zero fields set to their defaults.
func (c Config) WithDefaults() Config {
	if c.VocabSize == 0 {
		c.VocabSize = DefaultVocabSize
	}
	if c.ModelType == "" {
		c.ModelType = DefaultModelType
	}
	if c.MaxSentenceLength == 0 {
		c.MaxSentenceLength = DefaultMaxSentenceLength
	}
	if c.Normalization == "" {
		c.Normalization = DefaultNormalization
	}
	return c
}

// StripMarkers drops pieces equal to the marker and removes the marker
// from the remaining ones.
func StripMarkers(pieces []string, marker string) []string {
	if marker == "" {
		return pieces
	}
	units := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p == marker {
			continue
		}
		u := strings.ReplaceAll(p, marker, "")
		if u == "" {
			continue
		}
		units = append(units, u)
	}
	return units
}

// Units encodes text and strips markers.
func Units(ctx context.Context, m Model, text string) ([]string, error) {
	if c, ok := m.(*Cache); ok {
		return c.Units(ctx, text)
	}
	out, err := UnitsBatch(ctx, m, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// UnitsBatch encodes texts and strips markers from every encoding.
func UnitsBatch(ctx context.Context, m Model, texts []string) ([][]string, error) {
	pieces, err := m.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(pieces) != len(texts) {
		return nil, ErrLengthMismatch
	}
	out := make([][]string, len(pieces))
	for i, p := range pieces {
		out[i] = StripMarkers(p, m.Marker())
	}
	return out, nil
}
