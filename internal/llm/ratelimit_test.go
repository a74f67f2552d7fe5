package llm

import (
	"context"
	"testing"
	"time"
)

type countingProvider struct {
	calls int
}

func (p *countingProvider) Complete(context.Context, *Prompt, *RequestOptions) (*Response, error) {
	p.calls++
	return &Response{Content: "ok"}, nil
}

func (p *countingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls++
	return make([][]float32, len(texts)), nil
}

func (p *countingProvider) Name() string { return "counting" }

func TestRateLimit_BurstPassesImmediately(t *testing.T) {
	inner := &countingProvider{}
	p := WithRateLimit(inner, &RateLimitConfig{RequestsPerMinute: 60, BurstSize: 3})

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := p.Complete(ctx, UserPrompt("hi"), nil); err != nil {
			t.Fatal(err)
		}
	}
	if took := time.Since(start); took > 500*time.Millisecond {
		t.Fatalf("burst calls took %v", took)
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d", inner.calls)
	}
}

func TestRateLimit_ZeroMeansUnlimited(t *testing.T) {
	inner := &countingProvider{}
	p := WithRateLimit(inner, &RateLimitConfig{RequestsPerMinute: 0})

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		if _, err := p.Embed(ctx, []string{"x"}); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 50 {
		t.Fatalf("calls = %d", inner.calls)
	}
}

func TestRateLimit_ContextCancelWhileWaiting(t *testing.T) {
	inner := &countingProvider{}
	p := WithRateLimit(inner, &RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1})

	ctx := context.Background()
	if _, err := p.Complete(ctx, UserPrompt("hi"), nil); err != nil {
		t.Fatal(err)
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := p.Complete(cancelCtx, UserPrompt("hi"), nil); err == nil {
		t.Fatal("expected context error while rate limited")
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, second call must not reach the provider", inner.calls)
	}
}
