package bench

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/nachokelkar/audio-semantics/pkg/embedding"
	"github.com/nachokelkar/audio-semantics/pkg/utterance"
)

const testUtterances = `ls_cat	k ae t
ls_cat	k a t
ls_dog	d o g
ls_dog	d aa g
ls_cap	k ae p
sy_cat	k a t
sy_cat	k ae t
sy_dog	d o g
`

const testScores = `word1,word2,similarity,relatedness
ls_cat,ls_dog,1.0,2.0
ls_cat,ls_cap,3.0,8.0
ls_dog,ls_cap,,1.5
sy_cat,sy_dog,2.0,3.0
ls_cat,ls_missing,1,1
`

func testStore(t *testing.T) *utterance.Store {
	t.Helper()
	s, _, err := utterance.ReadFrom(strings.NewReader(testUtterances))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func testBench(t *testing.T, cfg Config) *Bench {
	t.Helper()
	scores, err := ReadScores(strings.NewReader(testScores))
	if err != nil {
		t.Fatal(err)
	}
	b := New(cfg)
	b.SetScores(scores)
	return b
}

// letterCounts embeds a string as its a-z letter histogram.
func letterCounts(s string) ([]float32, error) {
	v := make([]float32, 26)
	n := 0
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
			n++
		}
	}
	if n == 0 {
		return nil, embedding.ErrEmptyInput
	}
	return v, nil
}

func constant(string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func TestReadScores(t *testing.T) {
	in := testScores + "a,b,x,1\nonly,three,1\n\n"
	s, err := ReadScores(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Sim) != 4 {
		t.Errorf("len(Sim) = %d, want 4", len(s.Sim))
	}
	if len(s.Rel) != 5 {
		t.Errorf("len(Rel) = %d, want 5", len(s.Rel))
	}
	if s.Errors != 2 {
		t.Errorf("Errors = %d, want 2", s.Errors)
	}
	if p := s.Rel[1]; p.W1 != "ls_cat" || p.W2 != "ls_cap" || p.Score != 8 {
		t.Errorf("Rel[1] = %+v", p)
	}
	if _, err := s.Test("nope"); !errors.Is(err, ErrUnknownTest) {
		t.Errorf("Test(nope) err = %v", err)
	}
}

func TestMissingWordCountsError(t *testing.T) {
	b := testBench(t, Config{Seed: 1})
	res, err := b.RunSuite(context.Background(), testStore(t), letterCounts)
	if err != nil {
		t.Fatal(err)
	}
	rel := res.Correlation[TestRelatedness]
	if rel.Errors != 1 {
		t.Errorf("Errors = %d, want 1", rel.Errors)
	}
	if rel.Trials != 5 {
		t.Errorf("Trials = %d, want 5", rel.Trials)
	}
	if rel.Pairs[Librispeech] != 3 || rel.Pairs[Synthetic] != 1 || rel.Pairs[Mixed] != 0 {
		t.Errorf("Pairs = %v", rel.Pairs)
	}
}

func TestBounds(t *testing.T) {
	for seed := range uint64(5) {
		b := testBench(t, Config{Seed: seed, Tests: []string{TestRelatedness, TestSimilarity}})
		res, err := b.RunSuite(context.Background(), testStore(t), letterCounts)
		if err != nil {
			t.Fatal(err)
		}
		for test, c := range res.Correlation {
			for part, m := range c.Score {
				for red, v := range m {
					if v < -100 || v > 100 || math.IsNaN(v) {
						t.Errorf("seed %d %s/%s/%s = %v", seed, test, part, red, v)
					}
				}
			}
		}
		for _, r := range []ABXResult{res.SameWord, res.CrossWord} {
			for part, acc := range r.Accuracy {
				if acc < 0 || acc > 1 {
					t.Errorf("seed %d accuracy %s = %v", seed, part, acc)
				}
			}
		}
	}
}

func TestConstantVectorsFailSameWord(t *testing.T) {
	b := testBench(t, Config{Seed: 3})
	res, err := b.RunSuite(context.Background(), testStore(t), constant)
	if err != nil {
		t.Fatal(err)
	}
	for _, part := range []string{Librispeech, Synthetic, Mixed} {
		c := res.SameWord.Partitions[part]
		if c.Trials != DefaultSameWordTrials {
			t.Errorf("%s trials = %d, want %d", part, c.Trials, DefaultSameWordTrials)
		}
		if c.Trials-c.Errors == 0 {
			t.Errorf("%s: no completed trials", part)
		}
		if acc := res.SameWord.Accuracy[part]; acc != 0 {
			t.Errorf("%s accuracy = %v, want 0", part, acc)
		}
	}
	if res.SameWord.Trials != 3*DefaultSameWordTrials {
		t.Errorf("total trials = %d", res.SameWord.Trials)
	}
}

func TestSameWordEmptyPartition(t *testing.T) {
	s, _, _ := utterance.ReadFrom(strings.NewReader("ls_cat\tk ae t\nls_cat\tk a t\nls_dog\td o g\n"))
	b := testBench(t, Config{Seed: 1, SameWordTrials: 10})
	res, err := b.RunSuite(context.Background(), s, letterCounts)
	if err != nil {
		t.Fatal(err)
	}
	if c := res.SameWord.Partitions[Synthetic]; c.Trials != 0 {
		t.Errorf("synthetic trials = %d, want 0", c.Trials)
	}
	if c := res.SameWord.Partitions[Librispeech]; c.Trials != 10 || c.Errors != 0 {
		t.Errorf("librispeech = %+v", c)
	}
}

func TestSameWordNeedsTwoWords(t *testing.T) {
	s, _, _ := utterance.ReadFrom(strings.NewReader("ls_cat\tk ae t\nls_cat\tk a t\n"))
	b := testBench(t, Config{Seed: 1, SameWordTrials: 4})
	res, err := b.RunSuite(context.Background(), s, letterCounts)
	if err != nil {
		t.Fatal(err)
	}
	c := res.SameWord.Partitions[Librispeech]
	if c.Trials != 4 || c.Errors != 4 {
		t.Errorf("librispeech = %+v, want 4 trials all errors", c)
	}
	if res.SameWord.Accuracy[Librispeech] != 0 {
		t.Errorf("accuracy = %v", res.SameWord.Accuracy[Librispeech])
	}
}

func TestDeterministic(t *testing.T) {
	run := func() *Results {
		b := testBench(t, Config{Seed: 42, SyntheticNegatives: true})
		res, err := b.RunSuite(context.Background(), testStore(t), letterCounts)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Errorf("results differ across runs with the same seed")
	}
}

func TestSharedRand(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 0))
	b := testBench(t, Config{Rand: rng, SameWordTrials: 50})
	if _, err := b.RunSuite(context.Background(), testStore(t), letterCounts); err != nil {
		t.Fatal(err)
	}
}

func TestCrossWord(t *testing.T) {
	b := testBench(t, Config{Seed: 1})
	res, err := b.RunSuite(context.Background(), testStore(t), letterCounts)
	if err != nil {
		t.Fatal(err)
	}
	// ls_cat: B=ls_cap, X=ls_missing (no utterances), 2 errors.
	// ls_dog: B=ls_cat, X=ls_cap, 2 trials.
	// ls_cap: B=ls_cat, X=ls_dog, 1 trial.
	ls := res.CrossWord.Partitions[Librispeech]
	if ls.Trials != 5 || ls.Errors != 2 {
		t.Errorf("librispeech = %+v, want 5 trials, 2 errors", ls)
	}
	// sy_cat and sy_dog have a single partner each, so B equals X.
	sy := res.CrossWord.Partitions[Synthetic]
	if sy.Trials != 3 || sy.Errors != 3 {
		t.Errorf("synthetic = %+v, want 3 trials, 3 errors", sy)
	}
	all := res.CrossWord.Partitions[Combined]
	if all.Trials != ls.Trials+sy.Trials {
		t.Errorf("combined trials = %d", all.Trials)
	}
}

func TestCrossWordSyntheticNegatives(t *testing.T) {
	b := testBench(t, Config{Seed: 1, SyntheticNegatives: true})
	res, err := b.RunSuite(context.Background(), testStore(t), letterCounts)
	if err != nil {
		t.Fatal(err)
	}
	sy := res.CrossWord.Partitions[Synthetic]
	if sy.Trials != 3 || sy.Errors != 0 {
		t.Errorf("synthetic = %+v, want 3 trials, 0 errors", sy)
	}
}

func TestOther(t *testing.T) {
	p := Pair{W1: "ls_cat", W2: "ls_dog", Score: 1}
	if got := other(p, "ls_cat"); got != "ls_dog" {
		t.Errorf("other(cat) = %q", got)
	}
	if got := other(p, "ls_dog"); got != "ls_cat" {
		t.Errorf("other(dog) = %q", got)
	}
}

func TestPearson(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{"perfect", []float64{1, 2, 3}, []float64{2, 4, 6}, 100},
		{"inverse", []float64{1, 2, 3}, []float64{3, 2, 1}, -100},
		{"constant", []float64{1, 1, 1}, []float64{1, 2, 3}, 0},
		{"single", []float64{1}, []float64{1}, 0},
		{"empty", nil, nil, 0},
		{"mismatch", []float64{1, 2}, []float64{1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pearson(tt.x, tt.y)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Pearson = %v, want %v", got, tt.want)
			}
		})
	}

	rng := rand.New(rand.NewPCG(1, 0))
	for range 100 {
		n := 2 + rng.IntN(20)
		x, y := make([]float64, n), make([]float64, n)
		for i := range n {
			x[i], y[i] = rng.NormFloat64(), rng.NormFloat64()
		}
		if got := Pearson(x, y); got < -100 || got > 100 {
			t.Fatalf("Pearson out of range: %v", got)
		}
	}
}

func TestRunSuiteErrors(t *testing.T) {
	b := New(Config{})
	if _, err := b.RunSuite(context.Background(), testStore(t), constant); !errors.Is(err, ErrNoScores) {
		t.Errorf("err = %v, want ErrNoScores", err)
	}
	b = testBench(t, Config{Tests: []string{"bogus"}})
	if _, err := b.RunSuite(context.Background(), testStore(t), constant); !errors.Is(err, ErrUnknownTest) {
		t.Errorf("err = %v, want ErrUnknownTest", err)
	}
}

func TestSaveResults(t *testing.T) {
	b := testBench(t, Config{Seed: 1, SameWordTrials: 20})
	res, err := b.RunSuite(context.Background(), testStore(t), letterCounts)
	if err != nil {
		t.Fatal(err)
	}
	res.Level = 2
	path := filepath.Join(t.TempDir(), "level2", "results.json")
	if err := SaveResults(res, path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadResults(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Level != 2 || got.SameWord.Trials != res.SameWord.Trials || got.Errors() != res.Errors() {
		t.Errorf("loaded %+v", got)
	}
}
