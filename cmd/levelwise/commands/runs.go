package commands

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nachokelkar/audio-semantics/cmd/levelwise/internal/config"
	"github.com/nachokelkar/audio-semantics/pkg/cli"
	"github.com/nachokelkar/audio-semantics/pkg/kv"
	"github.com/nachokelkar/audio-semantics/pkg/runlog"
)

var (
	flagRunsHistory string
	flagRunsID      string
	flagRunsFormat  string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Long: `List recorded runs, newest first, or show the levels of one run.

Example:
  levelwise runs
  levelwise runs --run 6f1c... -o yaml`,
	Args: cobra.NoArgs,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&flagRunsHistory, "history", config.DefaultHistory, "Run history directory")
	runsCmd.Flags().StringVar(&flagRunsID, "run", "", "Show the levels of this run")
	runsCmd.Flags().StringVarP(&flagRunsFormat, "format", "o", "table", "Output format (table, yaml, json)")
}

func runRuns(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(flagRunsFormat)
	if err != nil {
		return err
	}
	store, err := kv.NewBadger(kv.BadgerOptions{Dir: flagRunsHistory})
	if err != nil {
		return err
	}
	defer store.Close()
	history := runlog.New(store)
	ctx := context.Background()
	w := cmd.OutOrStdout()

	if flagRunsID == "" {
		runs, err := history.Runs(ctx)
		if err != nil {
			return err
		}
		if format == cli.FormatTable {
			return cli.Output(w, runsTable(runs), format)
		}
		return cli.Output(w, runs, format)
	}

	run, err := history.Run(ctx, flagRunsID)
	if err != nil {
		return err
	}
	levels, err := history.Levels(ctx, flagRunsID)
	if err != nil {
		return err
	}
	if format == cli.FormatTable {
		return cli.Output(w, levelsTable(levels), format)
	}
	return cli.Output(w, struct {
		Run    runlog.Run           `json:"run" yaml:"run"`
		Levels []runlog.LevelRecord `json:"levels" yaml:"levels"`
	}{run, levels}, format)
}

func runsTable(runs []runlog.Run) cli.Table {
	t := cli.Table{Headers: []string{"id", "status", "levels", "started", "elapsed", "output", "error"}}
	for _, r := range runs {
		elapsed := ""
		if !r.Finished.IsZero() {
			elapsed = r.Finished.Sub(r.Started).Round(time.Second).String()
		}
		t.Data = append(t.Data, []string{
			r.ID,
			r.Status,
			strconv.Itoa(r.Levels),
			r.Started.Local().Format(time.DateTime),
			elapsed,
			r.Output,
			r.Error,
		})
	}
	return t
}

func levelsTable(levels []runlog.LevelRecord) cli.Table {
	t := cli.Table{Headers: []string{"level", "units", "clusters", "sentences", "utterances", "units/utt", "same-word", "cross-word", "errors", "dir"}}
	for _, l := range levels {
		t.Data = append(t.Data, []string{
			strconv.Itoa(l.Level),
			strconv.Itoa(l.Units),
			strconv.Itoa(l.Clusters),
			strconv.Itoa(l.Sentences),
			strconv.Itoa(l.Utterances),
			strconv.FormatFloat(l.MeanUnits, 'f', 1, 64),
			accuracies(l.SameWord),
			accuracies(l.CrossWord),
			strconv.Itoa(l.Errors),
			l.Dir,
		})
	}
	return t
}

// accuracies formats a partition -> accuracy map as "part=acc ...".
func accuracies(m map[string]float64) string {
	var parts []string
	for _, k := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, k+"="+strconv.FormatFloat(m[k], 'f', 1, 64))
	}
	return strings.Join(parts, " ")
}
