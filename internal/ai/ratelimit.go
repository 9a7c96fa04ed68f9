package ai

import (
	"context"

	"github.com/xxxsen/docembed/internal/model"
	"golang.org/x/time/rate"
)

// WrapRateLimit throttles calls to at most rps per second with the given
// burst. A non-positive rps disables the limiter.
func WrapRateLimit(e IEmbedder, rps float64, burst int) IEmbedder {
	if e == nil || rps <= 0 {
		return e
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedEmbedder{next: e, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

type rateLimitedEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

func (r *rateLimitedEmbedder) Embed(ctx context.Context, text string) (*model.Embedding, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, text)
}

func (r *rateLimitedEmbedder) ModelName() string {
	return r.next.ModelName()
}
