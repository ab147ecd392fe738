package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nachokelkar/audio-semantics/cmd/levelwise/internal/config"
	"github.com/nachokelkar/audio-semantics/pkg/bench"
	"github.com/nachokelkar/audio-semantics/pkg/cli"
	"github.com/nachokelkar/audio-semantics/pkg/embedding"
	"github.com/nachokelkar/audio-semantics/pkg/kv"
	"github.com/nachokelkar/audio-semantics/pkg/levelwise"
	"github.com/nachokelkar/audio-semantics/pkg/runlog"
	"github.com/nachokelkar/audio-semantics/pkg/storage"
	"github.com/nachokelkar/audio-semantics/pkg/tokenizer"
)

var (
	flagConfig    string
	flagLevels    int
	flagOutput    string
	flagNoHistory bool
	flagFormat    string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the level loop described by a pipeline file",
	Long: `Run the level loop described by a pipeline file.

Every level is written to <output>/level<n>. A level is only committed
once it is complete; an interrupted run leaves earlier levels intact.
Committed levels are recorded in the run history and, when configured,
mirrored to a directory or an S3 bucket.

Example:
  levelwise train -c pipeline.yaml --levels 3`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVarP(&flagConfig, "config", "c", "pipeline.yaml", "Pipeline file")
	trainCmd.Flags().IntVar(&flagLevels, "levels", 0, "Override the number of levels")
	trainCmd.Flags().StringVar(&flagOutput, "output", "", "Override the output directory")
	trainCmd.Flags().BoolVar(&flagNoHistory, "no-history", false, "Do not record the run")
	trainCmd.Flags().StringVarP(&flagFormat, "format", "o", "table", "Summary format (table, yaml, json)")
}

func runTrain(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	format, err := cli.ParseFormat(flagFormat)
	if err != nil {
		return err
	}

	f, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagLevels > 0 {
		f.Levels = flagLevels
	}
	if flagOutput != "" {
		f.Output = flagOutput
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := runlog.NewRunID()
	logger = logger.With("run", runID)

	cfg := levelwise.Config{
		Levels:     f.Levels,
		PerLevel:   f.PerLevel,
		Corpus:     f.Corpus,
		Utterances: f.Utterances,
		Output:     f.Output,
		TopK:       f.TopK,
		Tokenizers: tokenizer.NewSentencePieceTrainer(withLogger(f.SentencePiece, logger)),
		Embeddings: embedding.NewWord2Vec(logger),
		OnTransition: func(t levelwise.Transition) {
			logger.Debug("state", "from", t.From, "to", t.To, "level", t.Level)
		},
		Logger: logger,
	}

	if f.Scores != "" {
		b := bench.New(bench.Config{
			Seed:               f.Bench.Seed,
			SameWordTrials:     f.Bench.SameWordTrials,
			SyntheticNegatives: f.Bench.SyntheticNegatives,
			Tests:              f.Bench.Tests,
			Logger:             logger,
		})
		if err := b.LoadScores(f.Scores); err != nil {
			return err
		}
		cfg.Bench = b
	} else {
		logger.Warn("no scores file, levels will not be evaluated")
	}

	if cfg.Publisher, err = publisher(f.Publish, runID); err != nil {
		return err
	}

	var history *runlog.Log
	if !flagNoHistory {
		store, err := kv.NewBadger(kv.BadgerOptions{Dir: f.History, Logger: logger})
		if err != nil {
			return err
		}
		defer store.Close()
		history = runlog.New(store)
		if _, err := history.Start(ctx, runlog.Run{
			ID:     runID,
			Output: f.Output,
			Levels: f.Levels,
			Config: flagConfig,
		}); err != nil {
			return err
		}
		cfg.Recorder = historyRecorder{log: history, run: runID}
	}

	m, err := levelwise.New(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	levels, runErr := m.Run(ctx)
	if history != nil {
		// The run context may be cancelled already.
		if err := history.Finish(context.Background(), runID, runErr); err != nil {
			logger.Error("failed to record run result", "error", err)
		}
	}
	if runErr != nil {
		logger.Error("run failed", "levels_committed", len(levels), "error", runErr)
		return runErr
	}
	logger.Info("run finished", "levels", len(levels), "elapsed", time.Since(start).Round(time.Second))

	return cli.Output(cmd.OutOrStdout(), summary(levels), format)
}

func withLogger(o tokenizer.SentencePieceOptions, logger *slog.Logger) tokenizer.SentencePieceOptions {
	o.Logger = logger
	return o
}

func publisher(p config.Publish, runID string) (levelwise.Publisher, error) {
	switch {
	case p.Dir != "":
		store, err := storage.NewLocal(p.Dir)
		if err != nil {
			return nil, err
		}
		return dirPublisher{store: store, run: runID}, nil
	case p.S3 != nil:
		store := storage.NewS3(storage.NewS3Client(*p.S3), p.S3.Bucket, p.S3.Prefix)
		return dirPublisher{store: store, run: runID}, nil
	}
	return nil, nil
}

// levelSummary is one row of the train summary.
type levelSummary struct {
	Level       int     `json:"level" yaml:"level"`
	Dir         string  `json:"dir" yaml:"dir"`
	Units       int     `json:"units" yaml:"units"`
	Clusters    int     `json:"clusters" yaml:"clusters"`
	Sentences   int     `json:"sentences" yaml:"sentences"`
	Truncated   int     `json:"truncated" yaml:"truncated"`
	Overlong    int     `json:"overlong" yaml:"overlong"`
	Relatedness float64 `json:"relatedness" yaml:"relatedness"`
	SameWord    float64 `json:"same_word_abx" yaml:"same_word_abx"`
}

type summaryTable []levelSummary

func (s summaryTable) Header() []string {
	return []string{"level", "units", "clusters", "sentences", "truncated", "overlong", "rel (ls avg)", "same-word (ls)", "dir"}
}

func (s summaryTable) Rows() [][]string {
	rows := make([][]string, 0, len(s))
	for _, l := range s {
		rows = append(rows, []string{
			strconv.Itoa(l.Level),
			strconv.Itoa(l.Units),
			strconv.Itoa(l.Clusters),
			strconv.Itoa(l.Sentences),
			strconv.Itoa(l.Truncated),
			strconv.Itoa(l.Overlong),
			strconv.FormatFloat(l.Relatedness, 'f', 2, 64),
			strconv.FormatFloat(l.SameWord, 'f', 2, 64),
			l.Dir,
		})
	}
	return rows
}

func summary(levels []*levelwise.Level) summaryTable {
	out := make(summaryTable, 0, len(levels))
	for _, l := range levels {
		s := levelSummary{
			Level:     l.N,
			Dir:       l.Dir,
			Units:     l.Units,
			Clusters:  l.Clusters.Len(),
			Sentences: l.Sentences,
			Truncated: l.Truncated,
			Overlong:  l.Overlong,
		}
		if r := l.Results; r != nil {
			if c, ok := r.Correlation[bench.TestRelatedness]; ok {
				s.Relatedness = c.Score[bench.Librispeech][bench.ReduceAvg]
			}
			s.SameWord = r.SameWord.Accuracy[bench.Librispeech]
		}
		out = append(out, s)
	}
	return out
}
