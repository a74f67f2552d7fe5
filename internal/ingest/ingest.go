// Package ingest coordinates the write path: extract, chunk, embed, then
// transactionally replace the document in the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/raglinehq/ragline/internal/chunk"
	"github.com/raglinehq/ragline/internal/embed"
	"github.com/raglinehq/ragline/internal/observability"
	"github.com/raglinehq/ragline/internal/pdf"
	"github.com/raglinehq/ragline/internal/store"
)

var (
	// ErrNoText signals the source yielded no text at all.
	ErrNoText = errors.New("ingest: document has no text")
	// ErrNoChunks signals the chunker produced nothing from non-empty text,
	// which is an unexpected state rather than an acceptable no-op.
	ErrNoChunks = errors.New("ingest: chunker produced zero chunks")
)

// Ingestor drives one document at a time through the pipeline. Concurrent
// ingestion of the same doc id is not safe; callers serialize per document.
type Ingestor struct {
	splitter *chunk.Splitter
	batcher  *embed.Batcher
	store    store.Store
	log      *slog.Logger
}

// New wires the pipeline stages together.
func New(splitter *chunk.Splitter, batcher *embed.Batcher, st store.Store, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{splitter: splitter, batcher: batcher, store: st, log: log}
}

// Result reports what an ingestion wrote.
type Result struct {
	DocID  string
	Chunks int
}

// IngestText chunks, embeds and stores text under docID, replacing any
// previous version of the document atomically.
func (in *Ingestor) IngestText(ctx context.Context, docID, text string) (*Result, error) {
	ctx, span := observability.StartIngestSpan(ctx, docID)
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoText, docID)
	}

	chunks := in.splitter.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoChunks, docID)
	}

	start := time.Now()
	vectors, err := in.batcher.EmbedAll(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("ingest %q: %w", docID, err)
	}
	if len(vectors) != len(chunks) {
		// The batcher already enforces this per batch; the aggregate check
		// guards the store against a partial write regardless.
		return nil, fmt.Errorf("ingest %q: %d chunks but %d vectors: %w",
			docID, len(chunks), len(vectors), embed.ErrCountMismatch)
	}
	in.log.Debug("embedded document",
		"doc_id", docID, "chunks", len(chunks), "took", time.Since(start))

	if err := in.store.ReplaceDocument(ctx, docID, chunks, vectors); err != nil {
		return nil, fmt.Errorf("ingest %q: %w", docID, err)
	}

	span.SetAttributes(attribute.Int("ragline.ingest.chunks", len(chunks)))
	in.log.Info("ingested document", "doc_id", docID, "chunks", len(chunks))
	return &Result{DocID: docID, Chunks: len(chunks)}, nil
}

// IngestPDF extracts text from the PDF at path and ingests it. An empty
// docID defaults to the normalized filename.
func (in *Ingestor) IngestPDF(ctx context.Context, path, docID string) (*Result, error) {
	if docID == "" {
		docID = pdf.DocIDFromPath(path)
	}

	text, err := pdf.ExtractText(path)
	if err != nil {
		if errors.Is(err, pdf.ErrNoText) {
			return nil, fmt.Errorf("%w: %s", ErrNoText, path)
		}
		return nil, err
	}
	return in.IngestText(ctx, docID, text)
}
