// Package retrieve implements the read path: embed a query and return the
// k nearest chunks from the store, ascending by distance.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/raglinehq/ragline/internal/embed"
	"github.com/raglinehq/ragline/internal/observability"
	"github.com/raglinehq/ragline/internal/store"
)

// DefaultK is the number of chunks returned when the caller does not choose.
const DefaultK = 5

// Retriever embeds queries and searches the store.
type Retriever struct {
	batcher *embed.Batcher
	store   store.Store
	log     *slog.Logger
}

// New creates a Retriever over the given batcher and store.
func New(batcher *embed.Batcher, st store.Store, log *slog.Logger) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{batcher: batcher, store: st, log: log}
}

// Retrieve returns the k nearest chunks to the query, nearest first. Fewer
// than k hits come back when the corpus is smaller than k.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]store.Hit, error) {
	ctx, span := observability.StartRetrieveSpan(ctx, k)
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("retrieve: query is empty")
	}
	if k < 1 {
		return nil, fmt.Errorf("retrieve: k must be at least 1, got %d", k)
	}

	vector, err := r.batcher.EmbedOne(ctx, query)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("retrieve: embed query: %w", err)
	}

	start := time.Now()
	hits, err := r.store.Search(ctx, vector, k)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("retrieve: search: %w", err)
	}

	span.SetAttributes(attribute.Int("ragline.hits", len(hits)))
	r.log.Debug("retrieved chunks", "k", k, "hits", len(hits), "took", time.Since(start))
	return hits, nil
}
