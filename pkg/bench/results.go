package bench

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Results is the evaluation record of one level.
type Results struct {
	Level       int                          `json:"level"`
	Correlation map[string]CorrelationResult `json:"correlation"`
	SameWord    ABXResult                    `json:"same_word_abx"`
	CrossWord   ABXResult                    `json:"cross_word_abx"`
}

// Errors sums the error counters of every block.
func (r *Results) Errors() int {
	n := r.SameWord.Errors + r.CrossWord.Errors
	for _, c := range r.Correlation {
		n += c.Errors
	}
	return n
}

// SaveResults writes r as indented JSON.
func SaveResults(r *Results, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("bench: encode results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("bench: save results: %w", err)
	}
	return nil
}

// LoadResults reads a results file.
func LoadResults(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bench: load results: %w", err)
	}
	var r Results
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("bench: decode results %s: %w", path, err)
	}
	return &r, nil
}
