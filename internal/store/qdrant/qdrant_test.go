package qdrant

import (
	"context"
	"strings"
	"testing"

	"github.com/raglinehq/ragline/internal/store"
)

func TestPointID_StableAndDistinct(t *testing.T) {
	a := pointID("intro", 0)
	b := pointID("intro", 0)
	if a != b {
		t.Fatalf("same identity produced different ids: %s vs %s", a, b)
	}
	if pointID("intro", 1) == a {
		t.Fatal("different chunk numbers must produce different ids")
	}
	if pointID("other", 0) == a {
		t.Fatal("different documents must produce different ids")
	}
	if len(a) != 36 || strings.Count(a, "-") != 4 {
		t.Fatalf("not a UUID shape: %s", a)
	}
}

func TestDistanceFromScore(t *testing.T) {
	cos := &Store{metric: store.MetricCosine}
	if d := cos.distanceFromScore(1.0); d != 0 {
		t.Fatalf("identical cosine vectors should have distance 0, got %v", d)
	}
	if d := cos.distanceFromScore(0.25); d != 0.75 {
		t.Fatalf("got %v", d)
	}

	l2 := &Store{metric: store.MetricL2}
	if d := l2.distanceFromScore(-2.5); d != 2.5 {
		t.Fatalf("got %v", d)
	}
}

func TestApplySearchMode_RejectsIVF(t *testing.T) {
	s := &Store{}
	mode, err := store.ParseSearchMode("ivf16")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ApplySearchMode(context.Background(), mode); err == nil {
		t.Fatal("expected error for ivf mode on qdrant backend")
	}

	for _, name := range []string{"exact", "hnsw128"} {
		mode, err := store.ParseSearchMode(name)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.ApplySearchMode(context.Background(), mode); err != nil {
			t.Fatalf("mode %s: %v", name, err)
		}
		if s.mode != mode {
			t.Fatalf("mode not recorded: %+v", s.mode)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, Config{Host: "localhost", Port: 6334, Dimension: 8}); err == nil {
		t.Fatal("expected error for missing collection")
	}
	if _, err := New(ctx, Config{Host: "localhost", Port: 6334, Collection: "c"}); err == nil {
		t.Fatal("expected error for missing dimension")
	}
	if _, err := New(ctx, Config{Host: "localhost", Port: 6334, Collection: "c", Dimension: 8, Metric: "dot"}); err == nil {
		t.Fatal("expected error for unknown metric")
	}
}
