package utterance

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/nachokelkar/audio-semantics/pkg/cluster"
	"github.com/nachokelkar/audio-semantics/pkg/tokenizer"
)

// Relabel returns a new store in which every utterance is replaced by the
// cluster symbols of its units. All utterances are encoded in one batch.
// A unit missing from idx fails the whole relabel with
// [cluster.ErrUnmapped]; the receiver is left unchanged either way.
func (s *Store) Relabel(ctx context.Context, tok tokenizer.Model, idx *cluster.Index) (*Store, error) {
	texts := s.Texts()
	units, err := tokenizer.UnitsBatch(ctx, tok, texts)
	if err != nil {
		return nil, fmt.Errorf("utterance: relabel: %w", err)
	}

	out := &Store{
		words: slices.Clone(s.words),
		utts:  make(map[string][]string, len(s.utts)),
	}
	i := 0
	for _, w := range s.words {
		src := s.utts[w]
		dst := make([]string, len(src))
		for j := range src {
			sym, err := idx.Rewrite(units[i])
			if err != nil {
				return nil, fmt.Errorf("utterance: relabel %s %q: %w", w, src[j], err)
			}
			dst[j] = sym
			i++
		}
		out.utts[w] = dst
	}
	return out, nil
}

// Stats summarizes unit counts of the store under a tokenizer.
type Stats struct {
	Words      int              `json:"words"`
	Utterances int              `json:"utterances"`
	MeanUnits  float64          `json:"mean_units"`
	MaxUnits   int              `json:"max_units"`
	Units      map[string][]int `json:"units"`
}

// Stats encodes every utterance and reports its unit count.
func (s *Store) Stats(ctx context.Context, tok tokenizer.Model) (Stats, error) {
	units, err := tokenizer.UnitsBatch(ctx, tok, s.Texts())
	if err != nil {
		return Stats{}, fmt.Errorf("utterance: stats: %w", err)
	}
	st := Stats{
		Words: len(s.words),
		Units: make(map[string][]int, len(s.words)),
	}
	total := 0
	i := 0
	for _, w := range s.words {
		for range s.utts[w] {
			n := len(units[i])
			st.Units[w] = append(st.Units[w], n)
			total += n
			st.MaxUnits = max(st.MaxUnits, n)
			st.Utterances++
			i++
		}
	}
	if st.Utterances > 0 {
		st.MeanUnits = float64(total) / float64(st.Utterances)
	}
	return st, nil
}

// SaveStats writes st to path as indented JSON.
func SaveStats(st Stats, path string) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("utterance: encode stats: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("utterance: save stats: %w", err)
	}
	return nil
}
