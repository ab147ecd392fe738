package bench

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/nachokelkar/audio-semantics/pkg/utterance"
	"github.com/nachokelkar/audio-semantics/pkg/vecstore"
)

// Reductions applied to the utterance-pair similarities of a word pair.
const (
	ReduceAvg = "avg"
	ReduceMin = "min"
	ReduceMax = "max"
)

var reductions = []string{ReduceAvg, ReduceMin, ReduceMax}

// CorrelationResult is the Pearson correlation (x100) between model and
// human scores, per partition and reduction.
type CorrelationResult struct {
	Score  map[string]map[string]float64 `json:"score"`
	Pairs  map[string]int                `json:"pairs"`
	Errors int                           `json:"errors"`
	Trials int                           `json:"trials"`
}

// series collects model and gold scores of one partition.
type series struct {
	model map[string][]float64
	gold  []float64
}

func newSeries() *series {
	return &series{model: make(map[string][]float64, len(reductions))}
}

// pairPartition places a pair by the source of its first word.
func pairPartition(w1 string) string {
	switch utterance.Source(w1) {
	case utterance.PrefixLibrispeech:
		return Librispeech
	case utterance.PrefixSynthetic:
		return Synthetic
	}
	return Mixed
}

func (r *run) correlation(pairs []Pair) CorrelationResult {
	parts := map[string]*series{
		Librispeech: newSeries(),
		Synthetic:   newSeries(),
		Mixed:       newSeries(),
	}
	res := CorrelationResult{
		Score: make(map[string]map[string]float64, len(parts)),
		Pairs: make(map[string]int, len(parts)),
	}

	for _, p := range pairs {
		res.Trials++
		part := pairPartition(p.W1)
		sims, err := r.pairSimilarities(part, p)
		if err != nil {
			res.Errors++
			r.cfg.Logger.Debug("correlation pair skipped", "w1", p.W1, "w2", p.W2, "err", err)
			continue
		}
		s := parts[part]
		s.model[ReduceAvg] = append(s.model[ReduceAvg], stat.Mean(sims, nil))
		s.model[ReduceMin] = append(s.model[ReduceMin], floats.Min(sims))
		s.model[ReduceMax] = append(s.model[ReduceMax], floats.Max(sims))
		s.gold = append(s.gold, p.Score)
	}

	for name, s := range parts {
		res.Pairs[name] = len(s.gold)
		res.Score[name] = make(map[string]float64, len(reductions))
		for _, red := range reductions {
			res.Score[name][red] = Pearson(s.model[red], s.gold)
		}
	}
	return res
}

// pairSimilarities returns the cosine similarity of every utterance of w1
// with every utterance of w2.
func (r *run) pairSimilarities(part string, p Pair) ([]float64, error) {
	lookup := r.store
	if part == Mixed {
		lookup = r.views.Mixed
	}
	u1, u2 := lookup.Get(p.W1), lookup.Get(p.W2)
	if len(u1) == 0 {
		return nil, fmt.Errorf("no utterances for %q", p.W1)
	}
	if len(u2) == 0 {
		return nil, fmt.Errorf("no utterances for %q", p.W2)
	}
	v1, err := r.vecs.all(u1)
	if err != nil {
		return nil, err
	}
	v2, err := r.vecs.all(u2)
	if err != nil {
		return nil, err
	}
	sims := make([]float64, 0, len(v1)*len(v2))
	for _, a := range v1 {
		for _, b := range v2 {
			sims = append(sims, float64(vecstore.CosineSimilarity(a, b)))
		}
	}
	return sims, nil
}

// Pearson returns the Pearson correlation of x and y scaled by 100,
// clamped to [-100, 100]. Undefined correlations (fewer than two points,
// zero variance) are 0.
func Pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	c := stat.Correlation(x, y, nil) * 100
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return math.Max(-100, math.Min(100, c))
}
