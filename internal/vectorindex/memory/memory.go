// Package memory provides an in-process VectorIndex with the same filter
// semantics as the Qdrant adapter. It backs tests and the dev backend.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"medreport/internal/domain"
)

type entry struct {
	vector []float32
	chunk  domain.Chunk
	seq    int
}

// Index is a brute-force cosine similarity index guarded by a mutex.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nextSeq int
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]*entry)}
}

// Upsert replaces any existing entry with the same id.
func (x *Index) Upsert(_ context.Context, entries []domain.Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range entries {
		if e.ID == "" {
			return errors.New("entry id required")
		}
		existing, ok := x.entries[e.ID]
		seq := x.nextSeq
		if ok {
			// Replacement keeps the original insertion position.
			seq = existing.seq
		} else {
			x.nextSeq++
		}
		x.entries[e.ID] = &entry{vector: e.Vector, chunk: e.Chunk, seq: seq}
	}
	return nil
}

// Query ranks filter-matching entries by cosine similarity, ties broken
// by insertion order.
func (x *Index) Query(_ context.Context, vector []float32, topK int, f domain.Filter) ([]domain.ScoredChunk, error) {
	if f.DocID == "" {
		return nil, errors.New("query filter requires a doc id")
	}
	if topK <= 0 {
		topK = 5
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	type scored struct {
		e     *entry
		score float32
	}
	var matches []scored
	for _, e := range x.entries {
		if !matchesFilter(e.chunk, f) {
			continue
		}
		matches = append(matches, scored{e: e, score: cosine(e.vector, vector)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].e.seq < matches[j].e.seq
	})
	if topK > len(matches) {
		topK = len(matches)
	}
	results := make([]domain.ScoredChunk, 0, topK)
	for _, m := range matches[:topK] {
		results = append(results, domain.ScoredChunk{Chunk: m.e.chunk, Score: m.score})
	}
	return results, nil
}

// DeleteByDoc removes every entry matching the filter.
func (x *Index) DeleteByDoc(_ context.Context, f domain.Filter) error {
	if f.DocID == "" {
		return errors.New("delete filter requires a doc id")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, e := range x.entries {
		if matchesFilter(e.chunk, f) {
			delete(x.entries, id)
		}
	}
	return nil
}

// Len reports the number of stored entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

func matchesFilter(c domain.Chunk, f domain.Filter) bool {
	if c.DocID != f.DocID {
		return false
	}
	if f.Filename != "" && c.Filename != f.Filename {
		return false
	}
	return true
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float32
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(na))*math.Sqrt(float64(nb)))
}
