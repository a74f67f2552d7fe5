package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig configures request rate limiting for provider calls.
// Embedding batches and completions share the same budget.
type RateLimitConfig struct {
	// RequestsPerMinute limits the number of API calls per minute (0 = unlimited).
	RequestsPerMinute int
	// BurstSize allows temporary burst above the steady rate.
	BurstSize int
}

// DefaultRateLimitConfig is conservative enough for free-tier API keys.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         5,
	}
}

// RateLimitProvider wraps a provider with a token-bucket rate limiter.
type RateLimitProvider struct {
	inner  Provider
	config *RateLimitConfig

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimitProvider creates a rate-limited provider wrapper.
func NewRateLimitProvider(inner Provider, config *RateLimitConfig) *RateLimitProvider {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	burst := config.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitProvider{
		inner:      inner,
		config:     config,
		tokens:     float64(burst),
		lastRefill: time.Now(),
	}
}

// Name returns the underlying provider name.
func (r *RateLimitProvider) Name() string {
	return r.inner.Name()
}

// Complete waits for rate-limit clearance, then delegates.
func (r *RateLimitProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Complete(ctx, prompt, opts)
}

// Embed waits for rate-limit clearance, then delegates.
func (r *RateLimitProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

func (r *RateLimitProvider) wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.config.RequestsPerMinute == 0 || r.tokens >= 1 {
			if r.config.RequestsPerMinute > 0 {
				r.tokens--
			}
			r.mu.Unlock()
			return nil
		}
		// Time until one token is available.
		perToken := time.Minute / time.Duration(r.config.RequestsPerMinute)
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(perToken):
		}
	}
}

func (r *RateLimitProvider) refill() {
	now := time.Now()
	if r.config.RequestsPerMinute > 0 {
		r.tokens += now.Sub(r.lastRefill).Minutes() * float64(r.config.RequestsPerMinute)
		burst := float64(r.config.BurstSize)
		if burst < 1 {
			burst = 1
		}
		if r.tokens > burst {
			r.tokens = burst
		}
	}
	r.lastRefill = now
}

// WithRateLimit wraps a provider with rate limiting.
func WithRateLimit(p Provider, config *RateLimitConfig) Provider {
	if p == nil {
		return nil
	}
	return NewRateLimitProvider(p, config)
}
