package bench

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Pair is a human-scored word pair.
type Pair struct {
	W1, W2 string
	Score  float64
}

// ScoreSet holds the human similarity and relatedness judgments.
type ScoreSet struct {
	Sim []Pair
	Rel []Pair

	// Errors counts rows that could not be parsed.
	Errors int
}

// Test returns the pairs of a test set.
func (s *ScoreSet) Test(name string) ([]Pair, error) {
	switch name {
	case TestRelatedness:
		return s.Rel, nil
	case TestSimilarity:
		return s.Sim, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTest, name)
}

// Related returns the pairs cross-word ABX ranks by: relatedness, or
// similarity when the file has no relatedness column values.
func (s *ScoreSet) Related() []Pair {
	if len(s.Rel) > 0 {
		return s.Rel
	}
	return s.Sim
}

// ReadScores parses CSV rows of word1,word2,similarity,relatedness after a
// header row. An empty score field leaves the pair out of that test set.
func ReadScores(r io.Reader) (*ScoreSet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	s := &ScoreSet{}
	header := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				s.Errors++
				continue
			}
			return nil, fmt.Errorf("bench: read scores: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != 4 || rec[0] == "" || rec[1] == "" {
			s.Errors++
			continue
		}
		sim, simOK, err1 := parseScore(rec[2])
		rel, relOK, err2 := parseScore(rec[3])
		if err1 != nil || err2 != nil {
			s.Errors++
			continue
		}
		w1, w2 := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if simOK {
			s.Sim = append(s.Sim, Pair{W1: w1, W2: w2, Score: sim})
		}
		if relOK {
			s.Rel = append(s.Rel, Pair{W1: w1, W2: w2, Score: rel})
		}
	}
	return s, nil
}

func parseScore(field string) (float64, bool, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// LoadScores reads a score file.
func LoadScores(path string) (*ScoreSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bench: load scores: %w", err)
	}
	defer f.Close()
	return ReadScores(f)
}
