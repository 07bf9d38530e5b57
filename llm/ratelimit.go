package llm

import (
	"context"
	"net/http"

	"github.com/BaSui01/agentwatch/types"
	"golang.org/x/time/rate"
)

// RateLimitedProvider throttles Completion calls with a token bucket.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps p. A non-positive rps returns p unchanged.
func NewRateLimitedProvider(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   p,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (p *RateLimitedProvider) Name() string { return p.inner.Name() }

// Completion waits for a token, then delegates. A context that ends while
// waiting is reported as a rate limit error wrapping the context error.
func (p *RateLimitedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.NewProviderError(types.ErrRateLimited, "client-side rate limit").
			WithHTTPStatus(http.StatusTooManyRequests).
			WithRetryable(true).
			WithProvider(p.inner.Name()).
			WithCause(err)
	}
	return p.inner.Completion(ctx, req)
}
