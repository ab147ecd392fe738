// Package levelwise drives the level loop: each level trains a tokenizer
// and an embedding on the current corpus, clusters the embedding, rewrites
// the corpus into cluster symbols, evaluates, and relabels the utterances
// for the next level.
//
// # Usage
//
//	m, err := levelwise.New(levelwise.Config{
//	    Levels:     3,
//	    Corpus:     "corpus.txt",
//	    Utterances: "utterances.txt",
//	    Output:     "out",
//	    Tokenizers: tokenizer.NewSentencePieceTrainer(tokenizer.SentencePieceOptions{}),
//	    Embeddings: embedding.NewWord2Vec(nil),
//	    Bench:      b,
//	})
//	levels, err := m.Run(ctx)
//
// # States
//
// A run moves through Idle, then Training, Evaluating and Relabeling for
// every level, then Done. Each level is built in a staging directory and
// renamed to level<n> only after all of its stages succeed, so a failed
// or cancelled level leaves earlier levels untouched and no partial
// level behind.
package levelwise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nachokelkar/audio-semantics/pkg/bench"
	"github.com/nachokelkar/audio-semantics/pkg/cluster"
	"github.com/nachokelkar/audio-semantics/pkg/corpus"
	"github.com/nachokelkar/audio-semantics/pkg/embedding"
	"github.com/nachokelkar/audio-semantics/pkg/tokenizer"
	"github.com/nachokelkar/audio-semantics/pkg/utterance"
)

// Model runs the level loop. It is not safe for concurrent use.
type Model struct {
	cfg    Config
	state  State
	levels []*Level
}

// New validates cfg and creates a Model. A configuration without a level
// count and without per-level configs fails with ErrConfiguration.
func New(cfg Config) (*Model, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg}, nil
}

// State returns the current state.
func (m *Model) State() State { return m.state }

// Levels returns the levels committed so far.
func (m *Model) Levels() []*Level { return m.levels }

// trained is the output of the training state of one level.
type trained struct {
	n         int
	cfg       LevelConfig
	stage     string
	started   time.Time
	tok       tokenizer.Model
	emb       embedding.Model
	index     *cluster.Index
	sentences int
	truncated int
	overlong  int
	stats     *utterance.Stats
}

// Run executes every level in order and returns the committed levels. On
// error the returned slice holds the levels committed before the failure.
func (m *Model) Run(ctx context.Context) ([]*Level, error) {
	log := m.cfg.Logger
	m.state = StateIdle
	m.levels = nil

	store, st, err := utterance.Load(m.cfg.Utterances)
	if err != nil {
		return nil, err
	}
	log.Info("utterances loaded",
		"words", store.Len(), "utterances", store.Count(), "skipped", st.Skipped)
	if _, err := os.Stat(m.cfg.Corpus); err != nil {
		return nil, fmt.Errorf("levelwise: corpus: %w", err)
	}
	if err := os.MkdirAll(m.cfg.Output, 0o755); err != nil {
		return nil, fmt.Errorf("levelwise: output: %w", err)
	}

	total := m.cfg.levels()
	corpusPath := m.cfg.Corpus
	n := 1
	var (
		t   *trained
		res *bench.Results
	)

	m.transition(StateTraining, n)
	for m.state != StateDone {
		if err := ctx.Err(); err != nil {
			return m.levels, m.fail(n, err)
		}
		switch m.state {
		case StateTraining:
			log.Info("level started", "level", n, "corpus", corpusPath)
			t, err = m.train(ctx, n, corpusPath)
			if err != nil {
				return m.levels, m.fail(n, err)
			}
			m.transition(StateEvaluating, n)

		case StateEvaluating:
			res, err = m.evaluate(ctx, t, store)
			if err != nil {
				return m.levels, m.fail(n, err)
			}
			m.transition(StateRelabeling, n)

		case StateRelabeling:
			next, err := m.relabel(ctx, t, store)
			if err != nil {
				return m.levels, m.fail(n, err)
			}
			level, err := m.commit(ctx, t, res, next)
			if err != nil {
				return m.levels, m.fail(n, err)
			}
			m.levels = append(m.levels, level)
			store, corpusPath = next, level.Corpus()
			t, res = nil, nil

			if n == total {
				m.transition(StateDone, 0)
			} else {
				n++
				m.transition(StateTraining, n)
			}
		}
	}
	log.Info("training completed", "levels", len(m.levels))
	return m.levels, nil
}

func (m *Model) transition(to State, n int) {
	from := m.state
	m.state = to
	m.cfg.Logger.Debug("state changed", "from", from.String(), "to", to.String(), "level", n)
	if m.cfg.OnTransition != nil {
		m.cfg.OnTransition(Transition{From: from, To: to, Level: n})
	}
}

// fail discards the staging directory of level n.
func (m *Model) fail(n int, err error) error {
	stage := stagingDir(m.cfg.Output, n)
	if rmErr := os.RemoveAll(stage); rmErr != nil {
		m.cfg.Logger.Warn("remove staging directory", "dir", stage, "err", rmErr)
	}
	m.cfg.Logger.Error("level failed", "level", n, "state", m.state.String(), "err", err)
	return fmt.Errorf("levelwise: level %d: %w", n, err)
}

func (m *Model) train(ctx context.Context, n int, corpusPath string) (*trained, error) {
	log := m.cfg.Logger.With("level", n)
	cfg := m.cfg.level(n)
	stage := stagingDir(m.cfg.Output, n)
	if err := os.RemoveAll(stage); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return nil, err
	}
	t := &trained{n: n, cfg: cfg, stage: stage, started: time.Now()}

	lines, err := corpus.ReadLines(corpusPath)
	if err != nil {
		return nil, err
	}
	input := corpusPath
	if t.truncated = corpus.Limit(lines, cfg.Tokenizer.MaxSentenceLength); t.truncated > 0 {
		input = filepath.Join(stage, InputFile)
		if err := corpus.WriteLines(input, lines); err != nil {
			return nil, err
		}
		log.Warn("corpus lines truncated",
			"count", t.truncated, "limit", cfg.Tokenizer.MaxSentenceLength)
	}

	tok, err := m.tokenizer(ctx, cfg.Tokenizer, input, stage)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	log.Info("tokenizer ready", "units", len(tok.Vocab()), "model", tok.Path())

	sentences, err := tokenizer.UnitsBatch(ctx, tok, lines)
	if err != nil {
		return nil, fmt.Errorf("encode corpus: %w", err)
	}
	log.Debug("corpus encoded", "sentences", len(sentences))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	emb, err := m.embedding(ctx, cfg.Embedding, sentences, stage)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	log.Info("embedding ready", "units", len(emb.Vocab()), "dim", emb.Dim())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx, err := cluster.Build(emb, cfg.ClusterThreshold,
		cluster.WithTopK(m.cfg.TopK), cluster.WithAlphabet(m.cfg.Alphabet))
	if err != nil {
		return nil, err
	}
	if err := idx.Save(filepath.Join(stage, ClustersFile)); err != nil {
		return nil, err
	}
	log.Info("clusters built", "clusters", idx.Len(), "threshold", cfg.ClusterThreshold)

	rewritten := make([]string, len(sentences))
	overlong := 0
	for i, s := range sentences {
		line, err := idx.Rewrite(s)
		if err != nil {
			return nil, fmt.Errorf("rewrite sentence %d: %w", i+1, err)
		}
		if len(line) > cfg.Tokenizer.MaxSentenceLength {
			overlong++
		}
		rewritten[i] = line
	}
	if err := corpus.WriteLines(filepath.Join(stage, CorpusFile), rewritten); err != nil {
		return nil, err
	}
	if overlong > 0 {
		log.Warn("rewritten sentences exceed tokenizer limit",
			"count", overlong, "limit", cfg.Tokenizer.MaxSentenceLength)
	}

	t.tok, t.emb, t.index = tok, emb, idx
	t.sentences, t.overlong = len(rewritten), overlong
	return t, nil
}

func (m *Model) tokenizer(ctx context.Context, cfg tokenizer.Config, corpusPath, stage string) (tokenizer.Model, error) {
	if cfg.UseModel == "" {
		return m.cfg.Tokenizers.Train(ctx, corpusPath, filepath.Join(stage, TokenizerPrefix), cfg)
	}
	model := filepath.Join(stage, TokenizerModel)
	if err := copyFile(cfg.UseModel, model); err != nil {
		return nil, err
	}
	vocab := strings.TrimSuffix(cfg.UseModel, ".model") + ".vocab"
	if _, err := os.Stat(vocab); err == nil {
		if err := copyFile(vocab, filepath.Join(stage, TokenizerVocab)); err != nil {
			return nil, err
		}
	}
	return m.cfg.Tokenizers.Load(ctx, model)
}

func (m *Model) embedding(ctx context.Context, cfg embedding.Config, sentences [][]string, stage string) (embedding.Model, error) {
	path := filepath.Join(stage, VectorsFile)
	if cfg.UseModel == "" {
		return m.cfg.Embeddings.Train(ctx, sentences, cfg, path)
	}
	emb, err := m.cfg.Embeddings.Load(ctx, cfg.UseModel)
	if err != nil {
		return nil, err
	}
	if s, ok := emb.(interface{ Save(string) error }); ok {
		if err := s.Save(path); err != nil {
			return nil, err
		}
	}
	return emb, nil
}

func (m *Model) evaluate(ctx context.Context, t *trained, store *utterance.Store) (*bench.Results, error) {
	if m.cfg.Bench == nil {
		return nil, nil
	}
	cache := tokenizer.NewCache(t.tok)
	if err := cache.Warm(ctx, store.Texts()); err != nil {
		return nil, fmt.Errorf("encode utterances: %w", err)
	}
	res, err := m.cfg.Bench.RunSuite(ctx, store, embedding.WordVecFunc(ctx, cache, t.emb))
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	res.Level = t.n
	if err := bench.SaveResults(res, filepath.Join(t.stage, ResultsFile)); err != nil {
		return nil, err
	}

	args := []any{"level", t.n,
		"same_word_trials", res.SameWord.Trials, "cross_word_trials", res.CrossWord.Trials,
		"errors", res.Errors()}
	for part, acc := range res.SameWord.Accuracy {
		args = append(args, "same_word_"+part, acc)
	}
	m.cfg.Logger.Info("level evaluated", args...)
	return res, nil
}

func (m *Model) relabel(ctx context.Context, t *trained, store *utterance.Store) (*utterance.Store, error) {
	st, err := store.Stats(ctx, t.tok)
	if err != nil {
		return nil, err
	}
	if err := utterance.SaveStats(st, filepath.Join(t.stage, StatsFile)); err != nil {
		return nil, err
	}
	t.stats = &st

	next, err := store.Relabel(ctx, t.tok, t.index)
	if err != nil {
		return nil, err
	}
	if err := next.Save(filepath.Join(t.stage, UtterancesFile)); err != nil {
		return nil, err
	}
	m.cfg.Logger.Info("utterances relabeled", "level", t.n, "utterances", next.Count(),
		"mean_units", st.MeanUnits, "max_units", st.MaxUnits)
	return next, nil
}

// commit renames the staging directory into place and runs the hooks.
// Hook failures are logged; the level stays committed.
func (m *Model) commit(ctx context.Context, t *trained, res *bench.Results, next *utterance.Store) (*Level, error) {
	dir := LevelDir(m.cfg.Output, t.n)
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	if err := os.Rename(t.stage, dir); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	level := &Level{
		N:          t.n,
		Dir:        dir,
		Config:     t.cfg,
		Units:      len(t.emb.Vocab()),
		Sentences:  t.sentences,
		Truncated:  t.truncated,
		Overlong:   t.overlong,
		Clusters:   t.index,
		Utterances: next,
		Results:    res,
		UnitStats:  t.stats,
		Started:    t.started,
		Finished:   time.Now(),
	}
	m.cfg.Logger.Info("level committed", "level", t.n, "dir", dir,
		"elapsed", level.Finished.Sub(level.Started).Round(time.Millisecond).String())

	if m.cfg.Recorder != nil {
		if err := m.cfg.Recorder.RecordLevel(ctx, level); err != nil {
			m.cfg.Logger.Warn("record level", "level", t.n, "err", err)
		}
	}
	if m.cfg.Publisher != nil {
		if err := m.cfg.Publisher.PublishLevel(ctx, level); err != nil {
			m.cfg.Logger.Warn("publish level", "level", t.n, "err", err)
		}
	}
	return level, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()
	_, err = io.Copy(out, in)
	return err
}
