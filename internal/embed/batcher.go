// Package embed batches texts through the embedding capability while
// preserving input order across batch boundaries.
package embed

import (
	"context"
	"errors"
	"fmt"

	"github.com/raglinehq/ragline/internal/llm"
)

// DefaultBatchSize bounds a single embedding request.
const DefaultBatchSize = 64

// ErrCountMismatch signals the embedding capability returned a different
// number of vectors than texts it was given. This is a structural invariant
// violation, never retried or papered over.
var ErrCountMismatch = errors.New("embed: vector count does not match input count")

// Batcher maps ordered texts to ordered vectors via an llm.Provider.
type Batcher struct {
	provider  llm.Provider
	batchSize int
}

// NewBatcher creates a Batcher. batchSize <= 0 takes DefaultBatchSize.
func NewBatcher(provider llm.Provider, batchSize int) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Batcher{provider: provider, batchSize: batchSize}
}

// EmbedAll embeds texts in consecutive batches of at most batchSize and
// concatenates the results. Output index i always corresponds to texts[i].
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vecs, err := b.provider.Embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embed batch [%d:%d]: got %d vectors for %d texts: %w",
				start, end, len(vecs), len(batch), ErrCountMismatch)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedOne embeds a single text, e.g. a query.
func (b *Batcher) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedAll(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
