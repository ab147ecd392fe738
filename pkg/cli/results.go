package cli

import (
	"cmp"
	"maps"
	"slices"
	"strconv"

	"github.com/nachokelkar/audio-semantics/pkg/bench"
)

// Score is one flattened number of a results record.
type Score struct {
	Metric    string  `json:"metric"`
	Partition string  `json:"partition"`
	Value     float64 `json:"value"`
	N         int     `json:"n"`
}

// Flatten lists every score of r: correlations as "<test>/<reduction>",
// then the two ABX accuracies, each sorted by partition.
func Flatten(r *bench.Results) []Score {
	var out []Score
	for _, test := range slices.Sorted(maps.Keys(r.Correlation)) {
		c := r.Correlation[test]
		var block []Score
		for part, byRed := range c.Score {
			for red, v := range byRed {
				block = append(block, Score{
					Metric:    test + "/" + red,
					Partition: part,
					Value:     v,
					N:         c.Pairs[part],
				})
			}
		}
		slices.SortFunc(block, func(a, b Score) int {
			return cmp.Or(cmp.Compare(a.Metric, b.Metric), cmp.Compare(a.Partition, b.Partition))
		})
		out = append(out, block...)
	}
	out = append(out, abxScores("same_word_abx", r.SameWord)...)
	out = append(out, abxScores("cross_word_abx", r.CrossWord)...)
	return out
}

func abxScores(metric string, r bench.ABXResult) []Score {
	var out []Score
	for _, part := range slices.Sorted(maps.Keys(r.Accuracy)) {
		out = append(out, Score{
			Metric:    metric,
			Partition: part,
			Value:     r.Accuracy[part],
			N:         r.Partitions[part].Trials,
		})
	}
	return out
}

// ResultsTable renders the flattened scores of r.
func ResultsTable(r *bench.Results) Table {
	t := Table{Headers: []string{"level", "metric", "partition", "value", "n"}}
	level := strconv.Itoa(r.Level)
	for _, s := range Flatten(r) {
		t.Data = append(t.Data, []string{
			level,
			s.Metric,
			s.Partition,
			strconv.FormatFloat(s.Value, 'f', 2, 64),
			strconv.Itoa(s.N),
		})
	}
	return t
}
