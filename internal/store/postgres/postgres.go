// Package postgres implements store.Store on PostgreSQL with the pgvector
// extension. Chunks live in docs(doc_id, chunk_no, content); embeddings in
// doc_embeddings(doc_id, chunk_no, embedding vector(dim)). Search mode
// switching uses the planner/index session settings pgvector exposes.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/raglinehq/ragline/internal/store"
)

// Config holds connection and schema settings.
type Config struct {
	DSN       string
	Dimension int
	Metric    store.Metric
	// EnsureSchema creates the extension, tables and indexes on startup.
	EnsureSchema bool
}

// Store is the pgvector-backed implementation.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
	operator  string // "<=>" for cosine, "<->" for L2

	// session pins one connection once a search mode has been applied, so
	// SET statements stay visible to subsequent searches.
	session *pgxpool.Conn
}

// New connects and optionally provisions the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("postgres: embedding dimension is required")
	}
	metric, err := store.ParseMetric(string(cfg.Metric))
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	s := &Store{
		pool:      pool,
		dimension: cfg.Dimension,
		operator:  operatorFor(metric),
	}
	if cfg.EnsureSchema {
		if err := s.ensureSchema(ctx, metric); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

func operatorFor(m store.Metric) string {
	if m == store.MetricL2 {
		return "<->"
	}
	return "<=>"
}

func opclassFor(m store.Metric) string {
	if m == store.MetricL2 {
		return "vector_l2_ops"
	}
	return "vector_cosine_ops"
}

func (s *Store) ensureSchema(ctx context.Context, metric store.Metric) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire connection: %w", err)
	}
	defer conn.Release()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS docs (
			doc_id   TEXT NOT NULL,
			chunk_no INTEGER NOT NULL,
			content  TEXT NOT NULL,
			PRIMARY KEY (doc_id, chunk_no)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS doc_embeddings (
			doc_id    TEXT NOT NULL,
			chunk_no  INTEGER NOT NULL,
			embedding vector(%d) NOT NULL,
			PRIMARY KEY (doc_id, chunk_no)
		)`, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS doc_embeddings_ivf_idx
			ON doc_embeddings USING ivfflat (embedding %s)`, opclassFor(metric)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS doc_embeddings_hnsw_idx
			ON doc_embeddings USING hnsw (embedding %s)`, opclassFor(metric)),
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

// ReplaceDocument swaps a document's chunk and embedding rows in one
// transaction: delete both sets, insert the new chunks, upsert embeddings.
func (s *Store) ReplaceDocument(ctx context.Context, docID string, chunks []string, vectors [][]float32) (err error) {
	if docID == "" {
		return errors.New("postgres: doc id is required")
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("postgres: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("postgres: vector %d dimension mismatch (got %d want %d)", i, len(v), s.dimension)
		}
	}

	tx, txErr := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if txErr != nil {
		return fmt.Errorf("postgres: begin tx: %w", txErr)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("postgres: rollback failed: %w; original error: %v", rbErr, err)
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("postgres: commit: %w", commitErr)
			}
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM doc_embeddings WHERE doc_id = $1`, docID); err != nil {
		return fmt.Errorf("postgres: delete embeddings for %q: %w", docID, err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM docs WHERE doc_id = $1`, docID); err != nil {
		return fmt.Errorf("postgres: delete chunks for %q: %w", docID, err)
	}
	for i, content := range chunks {
		if _, err = tx.Exec(ctx,
			`INSERT INTO docs (doc_id, chunk_no, content) VALUES ($1, $2, $3)`,
			docID, i, content); err != nil {
			return fmt.Errorf("postgres: insert chunk %d for %q: %w", i, docID, err)
		}
	}
	for i, vec := range vectors {
		if _, err = tx.Exec(ctx,
			`INSERT INTO doc_embeddings (doc_id, chunk_no, embedding) VALUES ($1, $2, $3)
			 ON CONFLICT (doc_id, chunk_no) DO UPDATE SET embedding = excluded.embedding`,
			docID, i, pgvector.NewVector(vec)); err != nil {
			return fmt.Errorf("postgres: insert embedding %d for %q: %w", i, docID, err)
		}
	}
	return nil
}

// Search returns the k nearest chunks ordered by ascending distance.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]store.Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("postgres: k must be at least 1, got %d", k)
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("postgres: query dimension mismatch (got %d want %d)", len(vector), s.dimension)
	}

	query := fmt.Sprintf(`
		SELECT d.doc_id, d.chunk_no, d.content, e.embedding %[1]s $1 AS distance
		FROM doc_embeddings e
		JOIN docs d USING (doc_id, chunk_no)
		ORDER BY e.embedding %[1]s $1
		LIMIT $2`, s.operator)

	rows, err := s.querier().Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("postgres: search: %w", err)
	}
	defer rows.Close()

	hits := make([]store.Hit, 0, k)
	for rows.Next() {
		var h store.Hit
		if err := rows.Scan(&h.DocID, &h.ChunkNo, &h.Content, &h.Distance); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: search rows: %w", err)
	}
	return hits, nil
}

// ApplySearchMode pins a session connection and issues the planner/index
// settings for the requested mode. Later Search calls reuse that session.
func (s *Store) ApplySearchMode(ctx context.Context, mode store.SearchMode) error {
	if s.session == nil {
		conn, err := s.pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("postgres: acquire session: %w", err)
		}
		s.session = conn
	}

	var stmts []string
	switch mode.Kind {
	case store.SearchExact:
		stmts = []string{`SET enable_seqscan = on`, `SET enable_indexscan = off`}
	case store.SearchIVF:
		stmts = []string{
			`SET enable_seqscan = off`,
			`SET enable_indexscan = on`,
			fmt.Sprintf(`SET ivfflat.probes = %d`, mode.Effort),
		}
	case store.SearchHNSW:
		stmts = []string{
			`SET enable_seqscan = off`,
			`SET enable_indexscan = on`,
			fmt.Sprintf(`SET hnsw.ef_search = %d`, mode.Effort),
		}
	default:
		return fmt.Errorf("%w: %q", store.ErrUnknownMode, mode.Kind)
	}

	for _, stmt := range stmts {
		if _, err := s.session.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: apply mode %s: %w", mode, err)
		}
	}
	return nil
}

// querier returns the pinned session when one exists, else the pool.
func (s *Store) querier() interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
} {
	if s.session != nil {
		return s.session
	}
	return s.pool
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pinned session (if any) and the pool.
func (s *Store) Close(_ context.Context) error {
	if s.session != nil {
		s.session.Release()
		s.session = nil
	}
	s.pool.Close()
	return nil
}

var _ store.Store = (*Store)(nil)
