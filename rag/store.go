package rag

import (
	"math"
	"slices"
	"sync"
)

// Document is one indexed chunk of a report
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Vector   []float32         `json:"-"`
	Metadata map[string]string `json:"metadata"`
	Score    float32           `json:"score,omitempty"`
}

// VectorStore is an in-memory cosine similarity index
type VectorStore struct {
	mu    sync.RWMutex
	docs  []Document
	index map[string]int // id -> position in docs
}

func NewVectorStore() *VectorStore {
	return &VectorStore{index: make(map[string]int)}
}

// Reset removes every document
func (s *VectorStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	s.index = make(map[string]int)
}

// Upsert adds documents, replacing any with the same ID
func (s *VectorStore) Upsert(docs []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		if i, ok := s.index[d.ID]; ok {
			s.docs[i] = d
			continue
		}
		s.index[d.ID] = len(s.docs)
		s.docs = append(s.docs, d)
	}
}

// Search returns up to limit documents ordered by descending similarity
func (s *VectorStore) Search(queryVector []float32, limit int) []Document {
	s.mu.RLock()
	results := make([]Document, 0, len(s.docs))
	for _, d := range s.docs {
		if len(d.Vector) != len(queryVector) {
			continue
		}
		d.Score = cosine(queryVector, d.Vector)
		results = append(results, d)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(results, func(a, b Document) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Count returns the number of stored documents
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
