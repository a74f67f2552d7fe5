// Package memory implements store.Store with an in-process exact scan.
// It backs local development and tests; every search mode degrades to the
// same brute-force scan.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/raglinehq/ragline/internal/store"
)

type record struct {
	chunk  store.Chunk
	vector []float32
}

// Store keeps all chunks and vectors in memory.
type Store struct {
	mu     sync.RWMutex
	metric store.Metric
	docs   map[string][]record
}

// New creates an empty in-memory store.
func New(metric store.Metric) (*Store, error) {
	m, err := store.ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	return &Store{metric: m, docs: make(map[string][]record)}, nil
}

// ReplaceDocument swaps the document's records under the lock, which makes
// the replacement atomic for readers.
func (s *Store) ReplaceDocument(_ context.Context, docID string, chunks []string, vectors [][]float32) error {
	if docID == "" {
		return errors.New("memory: doc id is required")
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("memory: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	records := make([]record, len(chunks))
	for i := range chunks {
		records[i] = record{
			chunk:  store.Chunk{DocID: docID, ChunkNo: i, Content: chunks[i]},
			vector: vectors[i],
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(records) == 0 {
		delete(s.docs, docID)
		return nil
	}
	s.docs[docID] = records
	return nil
}

// Search scans every record and returns the k nearest, ascending by
// distance with (doc_id, chunk_no) as the stable tiebreak.
func (s *Store) Search(_ context.Context, vector []float32, k int) ([]store.Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("memory: k must be at least 1, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []store.Hit
	for _, records := range s.docs {
		for _, r := range records {
			if len(r.vector) != len(vector) {
				return nil, fmt.Errorf("memory: query dimension mismatch (got %d want %d)", len(vector), len(r.vector))
			}
			hits = append(hits, store.Hit{Chunk: r.chunk, Distance: s.distance(vector, r.vector)})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		if hits[i].DocID != hits[j].DocID {
			return hits[i].DocID < hits[j].DocID
		}
		return hits[i].ChunkNo < hits[j].ChunkNo
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *Store) distance(a, b []float32) float64 {
	if s.metric == store.MetricL2 {
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return math.Sqrt(sum)
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// ApplySearchMode accepts any parseable mode; the scan is always exact.
func (s *Store) ApplySearchMode(_ context.Context, _ store.SearchMode) error {
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close drops all records.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string][]record)
	return nil
}

// Len reports the number of stored chunks, for tests and health output.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, records := range s.docs {
		n += len(records)
	}
	return n
}

var _ store.Store = (*Store)(nil)
