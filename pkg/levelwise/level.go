package levelwise

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/nachokelkar/audio-semantics/pkg/bench"
	"github.com/nachokelkar/audio-semantics/pkg/cluster"
	"github.com/nachokelkar/audio-semantics/pkg/utterance"
)

// Files of a level directory.
const (
	TokenizerPrefix = "tokenizer"
	TokenizerModel  = TokenizerPrefix + ".model"
	TokenizerVocab  = TokenizerPrefix + ".vocab"
	VectorsFile     = "vectors.txt"
	ClustersFile    = "clusters.txt"
	UtterancesFile  = "utterances.txt"
	CorpusFile      = "corpus.txt"
	ResultsFile     = "results.json"
	StatsFile       = "utterance_stats.json"

	// InputFile holds the corpus as the tokenizer saw it. It is written
	// only when lines had to be cut to the tokenizer's length limit.
	InputFile = "input.txt"
)

// Level is the committed, read-only record of one finished level.
type Level struct {
	// N is the level number, counted from 1.
	N int

	// Dir is the level directory.
	Dir    string
	Config LevelConfig

	Units     int
	Sentences int

	// Truncated counts input lines cut to the tokenizer limit; Overlong
	// counts rewritten lines the next level will have to cut.
	Truncated int
	Overlong  int

	Clusters   *cluster.Index
	Utterances *utterance.Store
	Results    *bench.Results

	// UnitStats are the utterance unit counts under this level's
	// tokenizer, before relabeling.
	UnitStats *utterance.Stats

	Started  time.Time
	Finished time.Time
}

// Path returns the path of a file in the level directory.
func (l *Level) Path(name string) string {
	return filepath.Join(l.Dir, name)
}

// Corpus returns the path of the rewritten corpus.
func (l *Level) Corpus() string { return l.Path(CorpusFile) }

// LevelDir returns the directory of level n under output.
func LevelDir(output string, n int) string {
	return filepath.Join(output, fmt.Sprintf("level%d", n))
}

// stagingDir returns the directory level n is built in.
func stagingDir(output string, n int) string {
	return filepath.Join(output, fmt.Sprintf(".level%d.partial", n))
}
