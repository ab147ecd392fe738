package embedding

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/nachokelkar/audio-semantics/pkg/tokenizer"
)

// VecFunc maps a string to a vector at one level.
type VecFunc func(s string) ([]float32, error)

// WordVecFunc returns the level's string-to-vector function. A string
// that is itself a unit maps to its vector; anything else is tokenized
// and mapped to the unweighted mean of its unit vectors.
func WordVecFunc(ctx context.Context, tok tokenizer.Model, emb Model) VecFunc {
	return func(s string) ([]float32, error) {
		if v, ok := emb.Vector(s); ok {
			return v, nil
		}
		units, err := tokenizer.Units(ctx, tok, s)
		if err != nil {
			return nil, err
		}
		return Mean(emb, units)
	}
}

// Mean averages the vectors of units.
func Mean(emb Model, units []string) ([]float32, error) {
	if len(units) == 0 {
		return nil, ErrEmptyInput
	}
	sum := make([]float64, emb.Dim())
	row := make([]float64, emb.Dim())
	for _, u := range units {
		v, ok := emb.Vector(u)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, u)
		}
		for i, x := range v {
			row[i] = float64(x)
		}
		floats.Add(sum, row)
	}
	floats.Scale(1/float64(len(units)), sum)

	out := make([]float32, len(sum))
	for i, x := range sum {
		out[i] = float32(x)
	}
	return out, nil
}
