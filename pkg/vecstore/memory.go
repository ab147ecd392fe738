package vecstore

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-memory Index implementation using brute-force cosine
// distance. Search is exact; ties are ranked by insertion order.
//
// It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	ids     []string
	vectors [][]float32
	pos     map[string]int
}

// NewMemory creates a new in-memory vector index.
func NewMemory() *Memory {
	return &Memory{
		pos: make(map[string]int),
	}
}

func (m *Memory) Insert(id string, vector []float32) error {
	cp := make([]float32, len(vector))
	copy(cp, vector)
	m.mu.Lock()
	m.put(id, cp)
	m.mu.Unlock()
	return nil
}

func (m *Memory) BatchInsert(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("vecstore: BatchInsert length mismatch: %d ids, %d vectors", len(ids), len(vectors))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		cp := make([]float32, len(vectors[i]))
		copy(cp, vectors[i])
		m.put(id, cp)
	}
	return nil
}

// put stores a vector. Must be called with mu held.
func (m *Memory) put(id string, vec []float32) {
	if i, ok := m.pos[id]; ok {
		m.vectors[i] = vec
		return
	}
	m.pos[id] = len(m.ids)
	m.ids = append(m.ids, id)
	m.vectors = append(m.vectors, vec)
}

func (m *Memory) Search(query []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.ids) == 0 || topK <= 0 {
		return nil, nil
	}

	matches := make([]Match, len(m.ids))
	for i, vec := range m.vectors {
		matches[i] = Match{ID: m.ids[i], Distance: CosineDistance(query, vec)}
	}

	// Stable sort keeps insertion order among equal distances.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.pos[id]
	if !ok {
		return nil
	}
	delete(m.pos, id)
	m.ids = append(m.ids[:i], m.ids[i+1:]...)
	m.vectors = append(m.vectors[:i], m.vectors[i+1:]...)
	for j := i; j < len(m.ids); j++ {
		m.pos[m.ids[j]] = j
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

func (m *Memory) Close() error {
	return nil
}

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// Returns 0 if either vector has zero norm or the dimensions differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return float32(similarity)
}

// CosineDistance computes the cosine distance between two vectors.
// Returns a value in [0, 2] where 0 means identical direction and
// 2 means opposite direction. Zero vectors and mismatched dimensions
// get the maximum distance.
func CosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 2
	}
	var na, nb float64
	for i := range a {
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - CosineSimilarity(a, b)
}
