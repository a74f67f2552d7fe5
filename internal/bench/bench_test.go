package bench

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/raglinehq/ragline/internal/embed"
	"github.com/raglinehq/ragline/internal/llm"
	"github.com/raglinehq/ragline/internal/store"
	"github.com/raglinehq/ragline/internal/store/memory"
)

type unitProvider struct{ dim int }

func (p *unitProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, p.dim)
		v[i%p.dim] = 1
		out[i] = v
	}
	return out, nil
}

func (p *unitProvider) Complete(context.Context, *llm.Prompt, *llm.RequestOptions) (*llm.Response, error) {
	return nil, errors.New("not implemented")
}

func (p *unitProvider) Name() string { return "unit" }

// lossyStore drops the tail of approximate results to give candidate modes
// a recall below one.
type lossyStore struct {
	store.Store
	approx bool
	drop   int
}

func (l *lossyStore) ApplySearchMode(ctx context.Context, mode store.SearchMode) error {
	l.approx = mode.Kind != store.SearchExact
	return l.Store.ApplySearchMode(ctx, mode)
}

func (l *lossyStore) Search(ctx context.Context, vector []float32, k int) ([]store.Hit, error) {
	hits, err := l.Store.Search(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	if l.approx && len(hits) > l.drop {
		hits = hits[:len(hits)-l.drop]
	}
	return hits, nil
}

func seededStore(t *testing.T, chunks int) *memory.Store {
	t.Helper()
	mem, err := memory.New(store.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	texts := make([]string, chunks)
	vecs := make([][]float32, chunks)
	for i := range texts {
		texts[i] = "chunk"
		v := make([]float32, 4)
		v[i%4] = 1
		v[(i+1)%4] = float32(i) / float32(chunks)
		vecs[i] = v
	}
	if err := mem.ReplaceDocument(context.Background(), "corpus", texts, vecs); err != nil {
		t.Fatal(err)
	}
	return mem
}

func TestRun_PerfectRecallOnExactStore(t *testing.T) {
	mem := seededStore(t, 8)
	p := &unitProvider{dim: 4}
	r := NewRunner(embed.NewBatcher(p, 64), mem, nil)

	report, err := r.Run(context.Background(), Options{
		Queries: []string{"a", "b", "c"},
		K:       4,
		Modes:   []string{"ivf8", "hnsw64"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.K != 4 {
		t.Fatalf("k = %d", report.K)
	}
	if len(report.Modes) != 2 {
		t.Fatalf("modes = %d", len(report.Modes))
	}
	for _, m := range report.Modes {
		if m.RecallK != 1 {
			t.Fatalf("mode %s recall = %v, want 1 on an exact-only store", m.Mode, m.RecallK)
		}
	}
}

func TestRun_LossyModeScoresBelowOne(t *testing.T) {
	ls := &lossyStore{Store: seededStore(t, 8), drop: 1}
	p := &unitProvider{dim: 4}
	r := NewRunner(embed.NewBatcher(p, 64), ls, nil)

	report, err := r.Run(context.Background(), Options{
		Queries: []string{"a", "b"},
		K:       4,
		Modes:   []string{"hnsw32"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := report.Modes[0].RecallK
	if math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("recall = %v, want 0.75 (3 of 4 kept)", got)
	}
}

func TestRun_UnknownModeAborts(t *testing.T) {
	mem := seededStore(t, 4)
	p := &unitProvider{dim: 4}
	r := NewRunner(embed.NewBatcher(p, 64), mem, nil)

	_, err := r.Run(context.Background(), Options{
		Queries: []string{"a"},
		Modes:   []string{"ivf8", "turbo5"},
	})
	if !errors.Is(err, store.ErrUnknownMode) {
		t.Fatalf("want ErrUnknownMode, got %v", err)
	}
}

func TestRun_ExactIsNotACandidate(t *testing.T) {
	mem := seededStore(t, 4)
	p := &unitProvider{dim: 4}
	r := NewRunner(embed.NewBatcher(p, 64), mem, nil)

	if _, err := r.Run(context.Background(), Options{
		Queries: []string{"a"},
		Modes:   []string{"exact"},
	}); err == nil {
		t.Fatal("exact must be rejected as a candidate mode")
	}
}

func TestRun_EmptyCorpusRecallIsZeroNotNaN(t *testing.T) {
	mem, _ := memory.New(store.MetricCosine)
	p := &unitProvider{dim: 4}
	r := NewRunner(embed.NewBatcher(p, 64), mem, nil)

	report, err := r.Run(context.Background(), Options{
		Queries: []string{"a"},
		K:       4,
		Modes:   []string{"hnsw64"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := report.Modes[0].RecallK
	if got != 0 || math.IsNaN(got) {
		t.Fatalf("recall = %v, want 0", got)
	}
}

func TestRun_RandomQueries(t *testing.T) {
	mem := seededStore(t, 8)
	r := NewRunner(nil, mem, nil)

	report, err := r.Run(context.Background(), Options{
		RandomQueries: 5,
		RandomDim:     4,
		Seed:          42,
		K:             4,
		Modes:         []string{"ivf16"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Modes[0].RecallK != 1 {
		t.Fatalf("recall = %v", report.Modes[0].RecallK)
	}
}

func TestRun_NoQueries(t *testing.T) {
	mem := seededStore(t, 4)
	r := NewRunner(nil, mem, nil)

	if _, err := r.Run(context.Background(), Options{Modes: []string{"ivf8"}}); err == nil {
		t.Fatal("expected error without queries")
	}
}

func TestReport_JSONShape(t *testing.T) {
	report := Report{
		K:          8,
		ExactMSAvg: 1.234,
		Modes: []ModeResult{
			{Mode: "ivf8", MSAvg: 0.456, RecallK: 0.8755},
		},
	}
	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out["k"].(float64) != 8 {
		t.Fatalf("k = %v", out["k"])
	}
	if out["exact_ms_avg"].(float64) != 1.23 {
		t.Fatalf("exact_ms_avg = %v", out["exact_ms_avg"])
	}
	if out["ivf8_ms_avg"].(float64) != 0.46 {
		t.Fatalf("ivf8_ms_avg = %v", out["ivf8_ms_avg"])
	}
	if out["ivf8_recall@k"].(float64) != 0.876 {
		t.Fatalf("ivf8_recall@k = %v", out["ivf8_recall@k"])
	}
}
