package cluster

import (
	"fmt"

	"github.com/nachokelkar/audio-semantics/pkg/embedding"
)

// DefaultTopK is the number of neighbors queried per seed unit.
const DefaultTopK = 200

type options struct {
	topK     int
	alphabet Alphabet
}

// Option configures Build.
type Option func(*options)

// WithTopK sets the neighbor query size.
func WithTopK(k int) Option {
	return func(o *options) { o.topK = k }
}

// WithAlphabet replaces the default symbol alphabet.
func WithAlphabet(a Alphabet) Option {
	return func(o *options) { o.alphabet = a }
}

// Build clusters the vocabulary of emb. Neighbors with similarity strictly
// greater than threshold join the seed's cluster if still unassigned.
func Build(emb embedding.Model, threshold float32, opts ...Option) (*Index, error) {
	o := options{topK: DefaultTopK, alphabet: DefaultAlphabet}
	for _, fn := range opts {
		fn(&o)
	}

	x := New()
	ids := allocator{alphabet: o.alphabet}
	for _, unit := range emb.Vocab() {
		if _, done := x.of[unit]; done {
			continue
		}
		id, err := ids.alloc()
		if err != nil {
			return nil, fmt.Errorf("%w: %d symbols, %d of %d units assigned",
				err, len(o.alphabet), x.Units(), len(emb.Vocab()))
		}
		if err := x.open(id); err != nil {
			return nil, err
		}
		x.assign(unit, id)

		neighbors, err := emb.Neighbors(unit, o.topK)
		if err != nil {
			return nil, fmt.Errorf("cluster: neighbors of %q: %w", unit, err)
		}
		for _, n := range neighbors {
			if n.Similarity > threshold {
				x.assign(n.Unit, id)
			}
		}
	}
	return x, nil
}
