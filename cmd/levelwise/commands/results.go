package commands

import (
	"github.com/spf13/cobra"

	"github.com/nachokelkar/audio-semantics/pkg/bench"
	"github.com/nachokelkar/audio-semantics/pkg/cli"
)

var (
	flagResultsQuery  string
	flagResultsFormat string
)

var resultsCmd = &cobra.Command{
	Use:   "results [flags] results.json...",
	Short: "Show evaluation results of levels",
	Long: `Show evaluation results of levels.

Without --query every score of every file is listed. With --query a jq
expression is run over each file and its results are printed.

Example:
  levelwise results out/level*/results.json
  levelwise results out/level2/results.json --query '.same_word_abx.accuracy'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResults,
}

func init() {
	resultsCmd.Flags().StringVarP(&flagResultsQuery, "query", "q", "", "jq expression")
	resultsCmd.Flags().StringVarP(&flagResultsFormat, "format", "o", "table", "Output format (table, yaml, json)")
}

func runResults(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(flagResultsFormat)
	if err != nil {
		return err
	}

	all := make([]*bench.Results, 0, len(args))
	for _, path := range args {
		r, err := bench.LoadResults(path)
		if err != nil {
			return err
		}
		all = append(all, r)
	}

	if flagResultsQuery != "" {
		if format == cli.FormatTable {
			format = cli.FormatJSON
		}
		var out []any
		for _, r := range all {
			v, err := cli.Query(r, flagResultsQuery)
			if err != nil {
				return err
			}
			out = append(out, v...)
		}
		return cli.Output(cmd.OutOrStdout(), out, format)
	}

	if format != cli.FormatTable {
		return cli.Output(cmd.OutOrStdout(), all, format)
	}
	t := cli.Table{}
	for _, r := range all {
		rt := cli.ResultsTable(r)
		t.Headers = rt.Headers
		t.Data = append(t.Data, rt.Data...)
	}
	return cli.Output(cmd.OutOrStdout(), t, format)
}
