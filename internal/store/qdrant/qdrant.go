// Package qdrant implements store.Store on a Qdrant collection. Chunk text
// and identity travel in the point payload; document replacement is a
// filtered delete followed by an upsert. Search modes map onto Qdrant
// search params (exact scan vs. HNSW ef). IVF modes are not available.
package qdrant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/raglinehq/ragline/internal/store"
)

// Config holds connection and collection settings.
type Config struct {
	Host       string
	Port       int
	Collection string
	Dimension  int
	Metric     store.Metric
	// EnsureCollection creates the collection on startup if missing.
	EnsureCollection bool
}

// Store is the Qdrant-backed implementation.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
	metric      store.Metric

	mode store.SearchMode
}

// New connects to Qdrant over gRPC.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Collection == "" {
		return nil, errors.New("qdrant: collection is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("qdrant: embedding dimension is required")
	}
	metric, err := store.ParseMetric(string(cfg.Metric))
	if err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}

	s := &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  cfg.Collection,
		dimension:   cfg.Dimension,
		metric:      metric,
		mode:        store.SearchMode{Kind: store.SearchHNSW, Effort: 64},
	}
	if cfg.EnsureCollection {
		if err := s.ensureCollection(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	distance := pb.Distance_Cosine
	if s.metric == store.MetricL2 {
		distance = pb.Distance_Euclid
	}
	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.dimension),
					Distance: distance,
				},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("qdrant: create collection %q: %w", s.collection, err)
	}
	return nil
}

// ReplaceDocument deletes every point carrying the doc_id and upserts the
// new chunk set. Qdrant applies each operation atomically; the delete and
// upsert are two operations, so a reader racing a re-ingest may briefly see
// the document absent, but never a mix of old and new chunks with the same
// point IDs since IDs are derived from (doc_id, chunk_no).
func (s *Store) ReplaceDocument(ctx context.Context, docID string, chunks []string, vectors [][]float32) error {
	if docID == "" {
		return errors.New("qdrant: doc id is required")
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("qdrant: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: docFilter(docID)},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete points for %q: %w", docID, err)
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i := range chunks {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("qdrant: vector %d dimension mismatch (got %d want %d)", i, len(vectors[i]), s.dimension)
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(docID, i)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: vectors[i]},
			}},
			Payload: map[string]*pb.Value{
				"doc_id":   {Kind: &pb.Value_StringValue{StringValue: docID}},
				"chunk_no": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(i)}},
				"content":  {Kind: &pb.Value_StringValue{StringValue: chunks[i]}},
			},
		}
	}

	_, err = s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points for %q: %w", len(points), docID, err)
	}
	return nil
}

// Search returns the k nearest chunks ordered by ascending distance, using
// the search params of the currently applied mode.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]store.Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("qdrant: k must be at least 1, got %d", k)
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("qdrant: query dimension mismatch (got %d want %d)", len(vector), s.dimension)
	}

	params := &pb.SearchParams{}
	switch s.mode.Kind {
	case store.SearchExact:
		exact := true
		params.Exact = &exact
	case store.SearchHNSW:
		ef := uint64(s.mode.Effort)
		params.HnswEf = &ef
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(k),
		Params:         params,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	hits := make([]store.Hit, 0, len(resp.Result))
	for _, pt := range resp.Result {
		h := store.Hit{Distance: s.distanceFromScore(float64(pt.Score))}
		if v, ok := pt.Payload["doc_id"]; ok {
			h.DocID = v.GetStringValue()
		}
		if v, ok := pt.Payload["chunk_no"]; ok {
			h.ChunkNo = int(v.GetIntegerValue())
		}
		if v, ok := pt.Payload["content"]; ok {
			h.Content = v.GetStringValue()
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// distanceFromScore converts Qdrant's higher-is-better score to a distance.
// Cosine score is similarity in [-1,1]; Euclid score is the negated distance.
func (s *Store) distanceFromScore(score float64) float64 {
	if s.metric == store.MetricL2 {
		return -score
	}
	return 1 - score
}

// ApplySearchMode records the mode used by subsequent Search calls.
// IVF tuning only exists on the pgvector backend.
func (s *Store) ApplySearchMode(_ context.Context, mode store.SearchMode) error {
	if mode.Kind == store.SearchIVF {
		return fmt.Errorf("%w: %q (qdrant backend supports exact and hnsw modes)", store.ErrUnknownMode, mode.String())
	}
	s.mode = mode
	return nil
}

// Ping verifies the collection is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	return err
}

// Close tears down the gRPC connection.
func (s *Store) Close(_ context.Context) error {
	return s.conn.Close()
}

func docFilter(docID string) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   "doc_id",
					Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: docID}},
				},
			},
		}},
	}
}

// pointID derives a stable UUID from the chunk identity so re-ingestion
// overwrites rather than accumulates points.
func pointID(docID string, chunkNo int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", docID, chunkNo)))
	b := sum[:16]
	b[6] = (b[6] & 0x0f) | 0x40 // version 4 layout
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10

	var out [36]byte
	hex.Encode(out[0:8], b[0:4])
	out[8] = '-'
	hex.Encode(out[9:13], b[4:6])
	out[13] = '-'
	hex.Encode(out[14:18], b[6:8])
	out[18] = '-'
	hex.Encode(out[19:23], b[8:10])
	out[23] = '-'
	hex.Encode(out[24:36], b[10:16])
	return string(out[:])
}

var _ store.Store = (*Store)(nil)
