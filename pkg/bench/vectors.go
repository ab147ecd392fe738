package bench

import (
	"fmt"

	"github.com/nachokelkar/audio-semantics/pkg/embedding"
	"github.com/nachokelkar/audio-semantics/pkg/vecstore"
)

// vectorCache memoizes a VecFunc over one run, failures included.
type vectorCache struct {
	fn   embedding.VecFunc
	vecs map[string][]float32
	errs map[string]error
}

func newVectorCache(fn embedding.VecFunc) *vectorCache {
	return &vectorCache{
		fn:   fn,
		vecs: make(map[string][]float32),
		errs: make(map[string]error),
	}
}

func (c *vectorCache) get(s string) ([]float32, error) {
	if v, ok := c.vecs[s]; ok {
		return v, nil
	}
	if err, ok := c.errs[s]; ok {
		return nil, err
	}
	v, err := c.fn(s)
	if err != nil {
		c.errs[s] = err
		return nil, err
	}
	c.vecs[s] = v
	return v, nil
}

// all returns the vectors of every utterance.
func (c *vectorCache) all(utts []string) ([][]float32, error) {
	out := make([][]float32, len(utts))
	for i, u := range utts {
		v, err := c.get(u)
		if err != nil {
			return nil, fmt.Errorf("utterance %q: %w", u, err)
		}
		out[i] = v
	}
	return out, nil
}

// sim returns the cosine similarity of two utterances.
func (c *vectorCache) sim(a, b string) (float64, error) {
	va, err := c.get(a)
	if err != nil {
		return 0, err
	}
	vb, err := c.get(b)
	if err != nil {
		return 0, err
	}
	return float64(vecstore.CosineSimilarity(va, vb)), nil
}
