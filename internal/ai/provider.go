package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/docembed/internal/model"
	"github.com/xxxsen/docembed/internal/retry"
	"github.com/xxxsen/docembed/internal/tokenizer"
)

var (
	ErrUnavailable       = errors.New("embedding provider unavailable")
	ErrEmptyEmbedding    = errors.New("embedding provider returned no values")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// IEmbedProvider is one backend able to embed text with a named model. The
// returned token count is zero when the backend does not report usage.
type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, modelName string, text string) (*model.Embedding, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string) (*model.Embedding, error)
	ModelName() string
}

type EmbedderOptions struct {
	// Dimensions, when positive, is the vector length every response must have.
	Dimensions int
	// Tokenizer counts tokens for providers that do not report usage.
	Tokenizer tokenizer.Tokenizer
}

type embedder struct {
	provider IEmbedProvider
	model    string
	opts     EmbedderOptions
}

func NewEmbedder(p IEmbedProvider, modelName string, opts EmbedderOptions) IEmbedder {
	if opts.Tokenizer == nil {
		opts.Tokenizer = tokenizer.NewHeuristic(tokenizer.DefaultCharsPerToken)
	}
	return &embedder{provider: p, model: modelName, opts: opts}
}

func (e *embedder) Embed(ctx context.Context, text string) (*model.Embedding, error) {
	res, err := e.provider.Embed(ctx, e.model, text)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Vector) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if e.opts.Dimensions > 0 && len(res.Vector) != e.opts.Dimensions {
		return nil, retry.Permanent(fmt.Errorf("%w: model %s returned %d, want %d",
			ErrDimensionMismatch, e.model, len(res.Vector), e.opts.Dimensions))
	}
	if res.TokenCount <= 0 {
		res.TokenCount = e.opts.Tokenizer.Count(text)
	}
	return res, nil
}

func (e *embedder) ModelName() string {
	return e.model
}

type EmbedProviderFactory func(args interface{}) (IEmbedProvider, error)

var embedRegistry = map[string]EmbedProviderFactory{}

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embedding provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embedding provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("embedding provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode embedding provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode embedding provider config: %w", err)
	}
	return nil
}
