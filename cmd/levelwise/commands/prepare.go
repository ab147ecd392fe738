package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nachokelkar/audio-semantics/pkg/cli"
	"github.com/nachokelkar/audio-semantics/pkg/corpus"
)

var (
	flagPrepOut       string
	flagPrepCorpus    string
	flagPrepMode      string
	flagPrepWorkers   int
	flagPrepNoise     float64
	flagPrepSeed      uint64
	flagPrepLineLimit int
	flagPrepSentLimit int
	flagPrepDelims    string
	flagPrepG2P       string
	flagPrepFormat    string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare [flags] doc...",
	Short: "Turn raw documents into an initial corpus",
	Long: `Turn raw documents into an initial corpus.

Each document is normalized (NFKC), optionally transliterated by an
external command, reduced to lowercase letters and split into one
sentence per line. The result is written to _<name> in --out (or next
to the document). A failed document is reported and skipped.

With --corpus the per-document outputs are concatenated into one file.

Example:
  levelwise prepare --out prepared --corpus corpus.txt books/*.txt
  levelwise prepare --mode noisy --noise-prob 0.02 --g2p "g2p --stdin" book.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrepare,
}

func init() {
	f := prepareCmd.Flags()
	f.StringVar(&flagPrepOut, "out", "", "Output directory (default: next to each document)")
	f.StringVar(&flagPrepCorpus, "corpus", "", "Concatenate the outputs into this file")
	f.StringVar(&flagPrepMode, "mode", string(corpus.ModeChar), "Mode (char, noisy)")
	f.IntVar(&flagPrepWorkers, "workers", 0, "Concurrent documents (default: number of CPUs)")
	f.Float64Var(&flagPrepNoise, "noise-prob", corpus.DefaultNoiseProb, "Per-symbol noise probability (noisy mode)")
	f.Uint64Var(&flagPrepSeed, "seed", 0, "Noise seed")
	f.IntVar(&flagPrepLineLimit, "line-limit", 0, "Maximum sentences per document (0: no limit)")
	f.IntVar(&flagPrepSentLimit, "sentence-limit", corpus.DefaultSentenceLimit, "Maximum letters per sentence")
	f.StringVar(&flagPrepDelims, "delimiters", corpus.DefaultDelimiters, "Sentence delimiters")
	f.StringVar(&flagPrepG2P, "g2p", "", "Transliteration command reading stdin and writing stdout")
	f.StringVarP(&flagPrepFormat, "format", "o", "table", "Report format (table, yaml, json)")
}

func runPrepare(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(flagPrepFormat)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := corpus.Config{
		Mode:          corpus.Mode(flagPrepMode),
		Delimiters:    flagPrepDelims,
		SentenceLimit: flagPrepSentLimit,
		LineLimit:     flagPrepLineLimit,
		NoiseProb:     flagPrepNoise,
		Seed:          flagPrepSeed,
		Workers:       flagPrepWorkers,
		Logger:        slog.Default(),
	}
	if fields := strings.Fields(flagPrepG2P); len(fields) > 0 {
		cfg.Transliterator = corpus.Command{Name: fields[0], Args: fields[1:]}
	}

	rep, err := corpus.Prepare(ctx, args, flagPrepOut, cfg)
	if err != nil {
		return err
	}
	slog.Info("documents prepared", "docs", len(rep.Results), "failed", rep.Failed, "lines", rep.Lines)
	if rep.Failed == len(rep.Results) {
		return fmt.Errorf("all %d documents failed", rep.Failed)
	}

	if flagPrepCorpus != "" {
		n, err := corpus.Concat(flagPrepCorpus, rep.Outputs())
		if err != nil {
			return err
		}
		slog.Info("corpus written", "path", flagPrepCorpus, "lines", n)
	}

	if format == cli.FormatTable {
		return cli.Output(cmd.OutOrStdout(), reportTable(rep), format)
	}
	return cli.Output(cmd.OutOrStdout(), rep, format)
}

func reportTable(rep *corpus.Report) cli.Table {
	t := cli.Table{Headers: []string{"doc", "output", "lines", "error"}}
	for _, r := range rep.Results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		t.Data = append(t.Data, []string{r.Doc, r.Output, strconv.Itoa(r.Lines), errText})
	}
	return t
}
