package ai

import (
	"context"

	"github.com/xxxsen/docembed/internal/model"
	"github.com/xxxsen/docembed/internal/retry"
)

// WrapRetry retries failed embedding calls with the given backoff policy.
// Errors marked with retry.Permanent fail on the first attempt.
func WrapRetry(e IEmbedder, p retry.Policy) IEmbedder {
	if e == nil || p.MaxAttempts <= 1 {
		return e
	}
	return &retryingEmbedder{next: e, policy: p}
}

type retryingEmbedder struct {
	next   IEmbedder
	policy retry.Policy
}

func (r *retryingEmbedder) Embed(ctx context.Context, text string) (*model.Embedding, error) {
	res := retry.Do(ctx, r.policy, func(ctx context.Context) (*model.Embedding, error) {
		return r.next.Embed(ctx, text)
	})
	if !res.OK() {
		return nil, res.Err
	}
	return res.Value, nil
}

func (r *retryingEmbedder) ModelName() string {
	return r.next.ModelName()
}
