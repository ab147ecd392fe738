package tokenizer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// SentencePieceOptions locates the SentencePiece command line tools.
type SentencePieceOptions struct {
	// TrainBin is the trainer executable. Default: spm_train.
	TrainBin string `yaml:"train_bin,omitempty"`

	// EncodeBin is the encoder executable. Default: spm_encode.
	EncodeBin string `yaml:"encode_bin,omitempty"`

	// ExportBin exports the vocabulary of a model that was supplied
	// without its .vocab file. Default: spm_export_vocab.
	ExportBin string `yaml:"export_bin,omitempty"`

	// ExtremelyLargeCorpus passes --train_extremely_large_corpus.
	ExtremelyLargeCorpus bool `yaml:"extremely_large_corpus,omitempty"`

	// Logger receives trainer progress. Nil means slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

func (o *SentencePieceOptions) defaults() {
	if o.TrainBin == "" {
		o.TrainBin = "spm_train"
	}
	if o.EncodeBin == "" {
		o.EncodeBin = "spm_encode"
	}
	if o.ExportBin == "" {
		o.ExportBin = "spm_export_vocab"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// SentencePieceTrainer trains SentencePiece models with spm_train.
type SentencePieceTrainer struct {
	opts SentencePieceOptions
}

// NewSentencePieceTrainer creates a trainer. Zero options use the tools
// found on PATH.
func NewSentencePieceTrainer(opts SentencePieceOptions) *SentencePieceTrainer {
	opts.defaults()
	return &SentencePieceTrainer{opts: opts}
}

// Train runs spm_train on the corpus file, producing prefix.model and
// prefix.vocab.
func (t *SentencePieceTrainer) Train(ctx context.Context, corpusPath, prefix string, cfg Config) (Model, error) {
	cfg = cfg.WithDefaults()
	args := []string{
		"--input=" + corpusPath,
		"--model_prefix=" + prefix,
		"--model_type=" + cfg.ModelType,
		"--vocab_size=" + strconv.Itoa(cfg.VocabSize),
		"--max_sentence_length=" + strconv.Itoa(cfg.MaxSentenceLength),
		"--normalization_rule_name=" + cfg.Normalization,
		// Upper levels have small symbol alphabets that cannot reach the
		// requested size.
		"--hard_vocab_limit=false",
	}
	if t.opts.ExtremelyLargeCorpus {
		args = append(args, "--train_extremely_large_corpus")
	}

	t.opts.Logger.Debug("training sentencepiece", "input", corpusPath, "prefix", prefix,
		"model_type", cfg.ModelType, "vocab_size", cfg.VocabSize)
	if _, err := run(ctx, t.opts.TrainBin, args, nil); err != nil {
		return nil, fmt.Errorf("tokenizer: train: %w", err)
	}
	return t.Load(ctx, prefix+".model")
}

// Load opens a trained model. The vocabulary is read from the .vocab file
// next to the model, exporting it first if it is missing.
func (t *SentencePieceTrainer) Load(ctx context.Context, modelPath string) (Model, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("tokenizer: load %s: %w", modelPath, err)
	}
	vocabPath := strings.TrimSuffix(modelPath, ".model") + ".vocab"
	if _, err := os.Stat(vocabPath); errors.Is(err, fs.ErrNotExist) {
		args := []string{"--model=" + modelPath, "--output=" + vocabPath}
		if _, err := run(ctx, t.opts.ExportBin, args, nil); err != nil {
			return nil, fmt.Errorf("tokenizer: export vocab: %w", err)
		}
	}
	vocab, err := readVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	return &SentencePiece{
		encodeBin: t.opts.EncodeBin,
		model:     modelPath,
		vocab:     vocab,
	}, nil
}

var (
	_ Trainer = (*SentencePieceTrainer)(nil)
	_ Model   = (*SentencePiece)(nil)
)

// SentencePiece encodes text with spm_encode.
type SentencePiece struct {
	encodeBin string
	model     string
	vocab     []string
}

// EncodeBatch pipes all texts through one spm_encode process, one text
// per line.
func (s *SentencePiece) EncodeBatch(ctx context.Context, texts []string) ([][]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var in bytes.Buffer
	for _, t := range texts {
		// A newline inside a text would shift every following line.
		in.WriteString(strings.NewReplacer("\r", " ", "\n", " ").Replace(t))
		in.WriteByte('\n')
	}

	args := []string{"--model=" + s.model, "--output_format=piece"}
	out, err := run(ctx, s.encodeBin, args, &in)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: encode: %w", err)
	}

	result := make([][]string, 0, len(texts))
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		result = append(result, strings.Fields(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tokenizer: read encoder output: %w", err)
	}
	if len(result) != len(texts) {
		return nil, fmt.Errorf("%w: %d texts, %d lines", ErrLengthMismatch, len(texts), len(result))
	}
	return result, nil
}

func (s *SentencePiece) Vocab() []string { return s.vocab }
func (s *SentencePiece) Marker() string  { return DefaultMarker }
func (s *SentencePiece) Path() string    { return s.model }

// readVocab parses a SentencePiece .vocab file (piece TAB score).
func readVocab(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: open vocab: %w", err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	var vocab []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		piece, _, _ := strings.Cut(sc.Text(), "\t")
		switch piece {
		case "<unk>", "<s>", "</s>", "<pad>":
			continue
		}
		u := strings.ReplaceAll(piece, DefaultMarker, "")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		vocab = append(vocab, u)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tokenizer: read vocab: %w", err)
	}
	return vocab, nil
}

// run executes a tool and returns its stdout. Stderr is folded into the
// error on failure.
func run(ctx context.Context, bin string, args []string, stdin *bytes.Buffer) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
			msg = msg[i+1:]
		}
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", bin, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", bin, err)
	}
	return stdout.Bytes(), nil
}
