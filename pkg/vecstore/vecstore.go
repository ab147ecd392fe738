// Package vecstore provides the nearest-neighbor search used to query
// unit embeddings by cosine similarity.
//
// The [Index] interface defines the contract for vector storage and search.
// [Memory] is an exact brute-force implementation whose result order is
// fully deterministic: equal distances are ranked by insertion order. The
// clustering stage depends on that, since first-assignment-wins clustering
// must produce the same partition for the same embedding.
package vecstore

// Index is the interface for nearest-neighbor search over dense float32
// vectors.
//
// All implementations must be safe for concurrent use.
type Index interface {
	// Insert adds or updates a vector with the given ID. Updating keeps the
	// original insertion position.
	Insert(id string, vector []float32) error

	// BatchInsert adds or updates multiple vectors at once.
	// ids and vectors must have the same length.
	BatchInsert(ids []string, vectors [][]float32) error

	// Search returns the top-k nearest vectors to the query.
	// Results are ordered by ascending distance (closest first).
	Search(query []float32, topK int) ([]Match, error)

	// Delete removes a vector by ID. No error if ID does not exist.
	Delete(id string) error

	// Len returns the number of vectors in the index.
	Len() int

	// Close releases resources held by the index.
	Close() error
}

// Match is a single result from a vector similarity search.
type Match struct {
	// ID is the identifier of the matched vector.
	ID string

	// Distance is the cosine distance between the query and matched vector.
	// Lower values indicate higher similarity.
	Distance float32
}

// Similarity converts the match distance back to cosine similarity.
func (m Match) Similarity() float32 {
	return 1 - m.Distance
}
