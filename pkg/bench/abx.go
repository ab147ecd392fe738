package bench

import (
	"slices"
	"strings"

	"github.com/nachokelkar/audio-semantics/pkg/utterance"
)

// ABXCount tallies one partition of an ABX protocol.
type ABXCount struct {
	Successes int `json:"successes"`
	Errors    int `json:"errors"`
	Trials    int `json:"trials"`
}

// Accuracy is successes over completed trials, or 0 when none completed.
func (c ABXCount) Accuracy() float64 {
	done := c.Trials - c.Errors
	if done <= 0 {
		return 0
	}
	return float64(c.Successes) / float64(done)
}

// ABXResult reports accuracy per partition.
type ABXResult struct {
	Accuracy   map[string]float64  `json:"accuracy"`
	Partitions map[string]ABXCount `json:"partitions"`
	Errors     int                 `json:"errors"`
	Trials     int                 `json:"trials"`
}

func newABXResult() ABXResult {
	return ABXResult{
		Accuracy:   make(map[string]float64),
		Partitions: make(map[string]ABXCount),
	}
}

func (r *ABXResult) add(name string, c ABXCount) {
	r.Partitions[name] = c
	r.Accuracy[name] = c.Accuracy()
	r.Errors += c.Errors
	r.Trials += c.Trials
}

// sameWord runs same-word ABX on the source views and the mixed view.
func (r *run) sameWord() ABXResult {
	res := newABXResult()
	res.add(Librispeech, r.sameWordOn(r.views.Librispeech))
	res.add(Synthetic, r.sameWordOn(r.views.Synthetic))
	res.add(Mixed, r.sameWordOn(r.views.Mixed))
	return res
}

// sameWordOn samples A, X and utterances a, b of A and x of X. A trial
// succeeds iff sim(a, b) > sim(a, x).
func (r *run) sameWordOn(view *utterance.Store) ABXCount {
	var c ABXCount
	words := view.Words()
	if len(words) == 0 {
		return c
	}
	var multi []string
	for _, w := range words {
		if len(view.Get(w)) >= 2 {
			multi = append(multi, w)
		}
	}

	for range r.cfg.SameWordTrials {
		c.Trials++
		if len(multi) == 0 || len(words) < 2 {
			c.Errors++
			continue
		}
		a := multi[r.rng.IntN(len(multi))]
		x := words[r.rng.IntN(len(words)-1)]
		if x == a {
			x = words[len(words)-1]
		}

		ua := view.Get(a)
		i := r.rng.IntN(len(ua))
		j := r.rng.IntN(len(ua) - 1)
		if j >= i {
			j++
		}
		ux := view.Get(x)
		k := r.rng.IntN(len(ux))

		same, err := r.vecs.sim(ua[i], ua[j])
		if err != nil {
			c.Errors++
			continue
		}
		other, err := r.vecs.sim(ua[i], ux[k])
		if err != nil {
			c.Errors++
			continue
		}
		if same > other {
			c.Successes++
		}
	}
	return c
}

// neighbor is a scored partner of a word.
type neighbor struct {
	word  string
	score float64
}

// partners indexes scored pairs by word. The partner of a word in a pair
// is the pair's other element.
func partners(pairs []Pair) map[string][]neighbor {
	m := make(map[string][]neighbor)
	for _, p := range pairs {
		m[p.W1] = append(m[p.W1], neighbor{word: other(p, p.W1), score: p.Score})
		if p.W2 != p.W1 {
			m[p.W2] = append(m[p.W2], neighbor{word: other(p, p.W2), score: p.Score})
		}
	}
	return m
}

// other returns the element of p that is not word.
func other(p Pair, word string) string {
	if p.W1 == word {
		return p.W2
	}
	return p.W1
}

// extremes returns the most and least related partners. Ties keep the
// first in score file order.
func extremes(ns []neighbor) (most, least string) {
	hi, lo := ns[0], ns[0]
	for _, n := range ns[1:] {
		if n.score > hi.score {
			hi = n
		}
		if n.score < lo.score {
			lo = n
		}
	}
	return hi.word, lo.word
}

// crossWord runs cross-word ABX per source and over all words.
func (r *run) crossWord(pairs []Pair) ABXResult {
	res := newABXResult()
	idx := partners(pairs)
	res.add(Librispeech, r.crossWordOn(utterance.PrefixLibrispeech, idx))
	res.add(Synthetic, r.crossWordOn(utterance.PrefixSynthetic, idx))
	res.add(Combined, r.crossWordOn("", idx))
	return res
}

// crossWordOn tests every utterance a of every word A with scored partners
// whose source is prefix ("" for all words). B is A's most related
// partner and X its least related one, or a synthetic string. A trial
// succeeds iff sim(a, b) > sim(a, x).
func (r *run) crossWordOn(prefix string, idx map[string][]neighbor) ABXCount {
	var c ABXCount
	var inventory []rune
	if r.cfg.SyntheticNegatives {
		inventory = r.inventory(prefix)
	}

	for _, a := range r.store.Words() {
		if prefix != "" && utterance.Source(a) != prefix {
			continue
		}
		ns := idx[a]
		if len(ns) == 0 {
			continue
		}
		b, x := extremes(ns)
		ub := r.store.Get(b)
		ux := r.store.Get(x)

		for _, ua := range r.store.Get(a) {
			c.Trials++
			if b == a || len(ub) == 0 {
				c.Errors++
				continue
			}
			bu := ub[r.rng.IntN(len(ub))]

			var xu string
			if r.cfg.SyntheticNegatives {
				if len(inventory) == 0 {
					c.Errors++
					continue
				}
				xu = r.randomString(inventory, len([]rune(bu)))
			} else {
				if x == a || x == b || len(ux) == 0 {
					c.Errors++
					continue
				}
				xu = ux[r.rng.IntN(len(ux))]
			}

			related, err := r.vecs.sim(ua, bu)
			if err != nil {
				c.Errors++
				continue
			}
			unrelated, err := r.vecs.sim(ua, xu)
			if err != nil {
				c.Errors++
				continue
			}
			if related > unrelated {
				c.Successes++
			}
		}
	}
	return c
}

// inventory returns the distinct non-space symbols of the utterances
// under prefix, sorted.
func (r *run) inventory(prefix string) []rune {
	seen := make(map[rune]bool)
	for w, utts := range r.store.All() {
		if prefix != "" && utterance.Source(w) != prefix {
			continue
		}
		for _, u := range utts {
			for _, ch := range u {
				if ch != ' ' {
					seen[ch] = true
				}
			}
		}
	}
	out := make([]rune, 0, len(seen))
	for ch := range seen {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}

func (r *run) randomString(inventory []rune, n int) string {
	var b strings.Builder
	for range max(n, 1) {
		b.WriteRune(inventory[r.rng.IntN(len(inventory))])
	}
	return b.String()
}
