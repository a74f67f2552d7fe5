// Package bench measures retrieval quality of approximate search modes
// against the exact baseline on the same corpus.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/raglinehq/ragline/internal/embed"
	"github.com/raglinehq/ragline/internal/store"
)

// Options configures a benchmark run.
type Options struct {
	// Queries are embedded once and reused for every mode. Required unless
	// RandomQueries is set.
	Queries []string
	// K is the result-set size per query (default 8).
	K int
	// Modes are candidate modes compared against exact, e.g. ivf8, hnsw64.
	Modes []string
	// RandomQueries, when positive, replaces Queries with that many random
	// vectors of dimension RandomDim. Useful for index stress runs where
	// embedding real text would dominate the cost.
	RandomQueries int
	RandomDim     int
	// Seed makes random-vector runs reproducible. Zero seeds from the clock.
	Seed int64
}

// Report is the benchmark result. MarshalJSON flattens it into
// exact_ms_avg / <mode>_ms_avg / <mode>_recall@k keys.
type Report struct {
	K          int
	ExactMSAvg float64
	Modes      []ModeResult
}

// ModeResult is one candidate mode's outcome.
type ModeResult struct {
	Mode    string
	MSAvg   float64
	RecallK float64
}

// MarshalJSON renders the flat report shape consumers expect.
func (r Report) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"k":            r.K,
		"exact_ms_avg": round2(r.ExactMSAvg),
	}
	for _, m := range r.Modes {
		out[m.Mode+"_ms_avg"] = round2(m.MSAvg)
		out[m.Mode+"_recall@k"] = round3(m.RecallK)
	}
	return json.Marshal(out)
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round3(f float64) float64 { return math.Round(f*1000) / 1000 }

// Runner executes benchmark runs against a store.
type Runner struct {
	batcher *embed.Batcher
	store   store.Store
	log     *slog.Logger
}

// NewRunner creates a Runner. The batcher may be nil when every run uses
// random vectors.
func NewRunner(batcher *embed.Batcher, st store.Store, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{batcher: batcher, store: st, log: log}
}

// Run embeds the queries once, times exact search as the baseline, then
// times each candidate mode and scores its recall against the baseline.
// Any unparseable mode aborts the whole run before a single search fires.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.K < 1 {
		opts.K = 8
	}

	modes := make([]store.SearchMode, len(opts.Modes))
	for i, name := range opts.Modes {
		m, err := store.ParseSearchMode(name)
		if err != nil {
			return nil, fmt.Errorf("bench: %w", err)
		}
		if m.Kind == store.SearchExact {
			return nil, fmt.Errorf("bench: exact is the baseline, not a candidate mode")
		}
		modes[i] = m
	}

	vectors, err := r.queryVectors(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("bench: no queries to run")
	}

	exact := store.SearchMode{Kind: store.SearchExact}
	gold, exactMS, err := r.runMode(ctx, exact, vectors, opts.K)
	if err != nil {
		return nil, fmt.Errorf("bench: exact baseline: %w", err)
	}
	r.log.Info("exact baseline done", "queries", len(vectors), "ms_avg", exactMS)

	report := &Report{K: opts.K, ExactMSAvg: exactMS}
	for _, mode := range modes {
		approx, ms, err := r.runMode(ctx, mode, vectors, opts.K)
		if err != nil {
			return nil, fmt.Errorf("bench: mode %s: %w", mode, err)
		}
		rec := avgRecall(gold, approx)
		r.log.Info("candidate mode done", "mode", mode.String(), "ms_avg", ms, "recall", rec)
		report.Modes = append(report.Modes, ModeResult{Mode: mode.String(), MSAvg: ms, RecallK: rec})
	}
	return report, nil
}

func (r *Runner) queryVectors(ctx context.Context, opts Options) ([][]float32, error) {
	if opts.RandomQueries > 0 {
		dim := opts.RandomDim
		if dim <= 0 {
			return nil, fmt.Errorf("bench: random queries need a positive dimension")
		}
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		vectors := make([][]float32, opts.RandomQueries)
		for i := range vectors {
			v := make([]float32, dim)
			for j := range v {
				v[j] = rng.Float32()*2 - 1
			}
			vectors[i] = v
		}
		return vectors, nil
	}

	if len(opts.Queries) == 0 {
		return nil, fmt.Errorf("bench: no queries to run")
	}
	if r.batcher == nil {
		return nil, fmt.Errorf("bench: text queries need an embedding provider")
	}
	return r.batcher.EmbedAll(ctx, opts.Queries)
}

// runMode applies the mode once, then times one search per query vector and
// collects the identity sets for recall scoring.
func (r *Runner) runMode(ctx context.Context, mode store.SearchMode, vectors [][]float32, k int) ([][]string, float64, error) {
	if err := r.store.ApplySearchMode(ctx, mode); err != nil {
		return nil, 0, err
	}

	ids := make([][]string, len(vectors))
	var totalMS float64
	for i, v := range vectors {
		start := time.Now()
		hits, err := r.store.Search(ctx, v, k)
		if err != nil {
			return nil, 0, err
		}
		totalMS += float64(time.Since(start).Nanoseconds()) / 1e6

		tags := make([]string, len(hits))
		for j, h := range hits {
			tags[j] = h.Tag()
		}
		ids[i] = tags
	}
	return ids, totalMS / float64(len(vectors)), nil
}

// avgRecall averages per-query overlap between the exact and approximate
// result sets. The denominator is the exact set size, floored at one so an
// empty corpus scores zero instead of dividing by zero.
func avgRecall(gold, approx [][]string) float64 {
	if len(gold) == 0 {
		return 0
	}
	var acc float64
	for i := range gold {
		gs := make(map[string]bool, len(gold[i]))
		for _, id := range gold[i] {
			gs[id] = true
		}
		var inter int
		for _, id := range approx[i] {
			if gs[id] {
				inter++
			}
		}
		acc += float64(inter) / math.Max(1, float64(len(gold[i])))
	}
	return acc / float64(len(gold))
}
