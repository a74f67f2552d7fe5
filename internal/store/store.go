// Package store defines the persistence contract for document chunks and
// their embeddings: transactional replace on the write path, ordered
// nearest-neighbor search on the read path.
package store

import (
	"context"
	"fmt"
)

// Metric names the distance function vectors are indexed and queried under.
// The same metric must be used for both; backends validate it at construction.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
)

// ParseMetric validates a configured metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, MetricL2:
		return Metric(s), nil
	case "":
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("store: unknown distance metric %q (want cosine or l2)", s)
	}
}

// Chunk is one stored segment of a document.
type Chunk struct {
	DocID   string
	ChunkNo int
	Content string
}

// Tag returns the citation tag for this chunk.
func (c Chunk) Tag() string {
	return fmt.Sprintf("%s:%d", c.DocID, c.ChunkNo)
}

// Hit is a search result: a chunk plus its distance to the query vector.
// Results are ordered by ascending distance.
type Hit struct {
	Chunk
	Distance float64
}

// Store persists chunks with embeddings and serves top-k searches.
type Store interface {
	// ReplaceDocument atomically replaces all chunks and embeddings for a
	// document: either the previous complete set or the new complete set is
	// observable, never a mix. chunks[i] pairs with vectors[i]; chunk numbers
	// are assigned densely from zero in slice order.
	ReplaceDocument(ctx context.Context, docID string, chunks []string, vectors [][]float32) error

	// Search returns up to k chunks nearest to the query vector, ascending
	// by distance. Fewer than k rows is not an error.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// ApplySearchMode switches between exact scans and approximate index
	// search for subsequent Search calls. Used by the benchmark harness.
	ApplySearchMode(ctx context.Context, mode SearchMode) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}
