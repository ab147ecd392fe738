// Package utterance holds the surface realizations of vocabulary words and
// re-encodes them at each level.
//
// A [Store] maps a word to an ordered list of utterances. Words may carry
// a source prefix ("ls_" for attested, "sy_" for synthetic) that drives
// evaluation partitioning. Stores are snapshots: [Store.Relabel] returns a
// new Store and never changes the receiver.
//
// # File format
//
// One utterance per line, word and utterance separated by a tab:
//
//	ls_cat	k ae t
//	sy_cat	k a t
package utterance

import (
	"iter"
	"slices"
	"strings"
)

// Source prefixes.
const (
	PrefixLibrispeech = "ls_"
	PrefixSynthetic   = "sy_"
)

// Store maps words to their utterances in first-seen word order.
type Store struct {
	words []string
	utts  map[string][]string
}

// New creates an empty store.
func New() *Store {
	return &Store{utts: make(map[string][]string)}
}

// Add appends an utterance to word. Duplicates are kept.
func (s *Store) Add(word, utterance string) {
	if _, ok := s.utts[word]; !ok {
		s.words = append(s.words, word)
	}
	s.utts[word] = append(s.utts[word], utterance)
}

// Get returns the utterances of word.
func (s *Store) Get(word string) []string {
	return s.utts[word]
}

// Words returns every word in first-seen order.
func (s *Store) Words() []string {
	return s.words
}

// Len returns the number of words.
func (s *Store) Len() int { return len(s.words) }

// Count returns the number of utterances across all words.
func (s *Store) Count() int {
	n := 0
	for _, u := range s.utts {
		n += len(u)
	}
	return n
}

// All iterates words and their utterances in word order.
func (s *Store) All() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		for _, w := range s.words {
			if !yield(w, s.utts[w]) {
				return
			}
		}
	}
}

// Texts returns every utterance in store order.
func (s *Store) Texts() []string {
	out := make([]string, 0, s.Count())
	for _, w := range s.words {
		out = append(out, s.utts[w]...)
	}
	return out
}

// Clone returns a deep copy.
func (s *Store) Clone() *Store {
	c := &Store{
		words: slices.Clone(s.words),
		utts:  make(map[string][]string, len(s.utts)),
	}
	for w, u := range s.utts {
		c.utts[w] = slices.Clone(u)
	}
	return c
}

// Source returns the source prefix of word, or "" when it has none.
func Source(word string) string {
	switch {
	case strings.HasPrefix(word, PrefixLibrispeech):
		return PrefixLibrispeech
	case strings.HasPrefix(word, PrefixSynthetic):
		return PrefixSynthetic
	}
	return ""
}

// StripSource removes a source prefix from word.
func StripSource(word string) string {
	return strings.TrimPrefix(word, Source(word))
}

// Partitions are the views of a store by source.
type Partitions struct {
	// Librispeech holds "ls_" words, keys unchanged.
	Librispeech *Store
	// Synthetic holds "sy_" words, keys unchanged.
	Synthetic *Store
	// Mixed is keyed by the unprefixed word and concatenates the
	// utterances of every source in store order.
	Mixed *Store
}

// Partition derives the source views. The views are fresh stores; the
// receiver is not referenced by them.
func (s *Store) Partition() Partitions {
	p := Partitions{Librispeech: New(), Synthetic: New(), Mixed: New()}
	for _, w := range s.words {
		var view *Store
		switch Source(w) {
		case PrefixLibrispeech:
			view = p.Librispeech
		case PrefixSynthetic:
			view = p.Synthetic
		}
		bare := StripSource(w)
		for _, u := range s.utts[w] {
			if view != nil {
				view.Add(w, u)
			}
			p.Mixed.Add(bare, u)
		}
	}
	return p
}
