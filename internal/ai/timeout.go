package ai

import (
	"context"
	"time"

	"github.com/xxxsen/docembed/internal/model"
)

// WrapTimeout bounds every call with its own deadline. Retries around it
// get a fresh deadline per attempt.
func WrapTimeout(e IEmbedder, d time.Duration) IEmbedder {
	if e == nil || d <= 0 {
		return e
	}
	return &timeoutEmbedder{next: e, timeout: d}
}

type timeoutEmbedder struct {
	next    IEmbedder
	timeout time.Duration
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) (*model.Embedding, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Embed(ctx, text)
}

func (t *timeoutEmbedder) ModelName() string {
	return t.next.ModelName()
}
