// Package cluster partitions the units of an embedding into clusters
// named by single-symbol IDs.
//
// # Usage
//
//	idx, err := cluster.Build(emb, 0.45)
//	id, ok := idx.Lookup("ning")
//	s, err := idx.Rewrite([]string{"run", "ning"}) // two symbols
//
// # Design
//
// Build walks the embedding vocabulary in its defined order. Each
// unassigned unit seeds a new cluster, which then claims every unassigned
// neighbor above the similarity threshold. Assignment is first-wins: a
// unit is never moved or merged afterwards, so the result is a partition.
// Both directions of the mapping change only through [Index.assign].
package cluster

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by this package.
var (
	// ErrAlphabetExhausted is returned when more clusters are needed than
	// the alphabet has symbols. It is a configuration error: raise the
	// threshold or supply a larger alphabet.
	ErrAlphabetExhausted = errors.New("cluster: alphabet exhausted")

	// ErrUnmapped is returned when a unit has no cluster. It means the
	// index was built against a different tokenizer or corpus.
	ErrUnmapped = errors.New("cluster: unit not in index")

	// ErrMalformed is returned when a cluster file cannot be parsed or
	// violates the partition invariant.
	ErrMalformed = errors.New("cluster: malformed mapping")
)

// ID is a cluster identifier: one symbol of the alphabet.
type ID rune

func (id ID) String() string { return string(rune(id)) }

// Index is a partition of units into clusters.
//
// It is not safe for concurrent mutation; a built or loaded Index is
// read-only.
type Index struct {
	order   []ID
	members map[ID][]string
	of      map[string]ID
}

// New creates an empty index.
func New() *Index {
	return &Index{
		members: make(map[ID][]string),
		of:      make(map[string]ID),
	}
}

// open registers a new, empty cluster.
func (x *Index) open(id ID) error {
	if _, ok := x.members[id]; ok {
		return fmt.Errorf("%w: cluster %q declared twice", ErrMalformed, id)
	}
	x.order = append(x.order, id)
	x.members[id] = nil
	return nil
}

// assign places unit in cluster id and reports whether it did. A unit
// that already has a cluster keeps it.
func (x *Index) assign(unit string, id ID) bool {
	if _, taken := x.of[unit]; taken {
		return false
	}
	x.of[unit] = id
	x.members[id] = append(x.members[id], unit)
	return true
}

// Lookup returns the cluster of unit.
func (x *Index) Lookup(unit string) (ID, bool) {
	id, ok := x.of[unit]
	return id, ok
}

// Members returns the units of cluster id in assignment order.
func (x *Index) Members(id ID) []string {
	return x.members[id]
}

// IDs returns the cluster IDs in allocation order.
func (x *Index) IDs() []ID {
	return x.order
}

// Len returns the number of clusters.
func (x *Index) Len() int { return len(x.order) }

// Units returns the number of assigned units.
func (x *Index) Units() int { return len(x.of) }

// Rewrite maps every unit to its cluster and concatenates the symbols.
func (x *Index) Rewrite(units []string) (string, error) {
	var b strings.Builder
	b.Grow(len(units))
	for _, u := range units {
		id, ok := x.of[u]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnmapped, u)
		}
		b.WriteRune(rune(id))
	}
	return b.String(), nil
}
