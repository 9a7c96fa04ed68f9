package ai

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xxxsen/docembed/internal/model"
	"github.com/xxxsen/docembed/internal/retry"
)

type langchainConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// langchainEmbedProvider talks to OpenAI compatible servers (ollama, vllm,
// llama.cpp) through langchaingo. Local servers usually need no key.
type langchainEmbedProvider struct {
	baseURL string
	apiKey  string

	mu        sync.Mutex
	embedders map[string]embeddings.Embedder
}

func (p *langchainEmbedProvider) Name() string {
	return "langchain"
}

func (p *langchainEmbedProvider) embedderFor(modelName string) (embeddings.Embedder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.embedders[modelName]; ok {
		return e, nil
	}
	client, err := openai.New(
		openai.WithBaseURL(p.baseURL),
		openai.WithToken(p.apiKey),
		openai.WithEmbeddingModel(modelName),
	)
	if err != nil {
		return nil, err
	}
	e, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, err
	}
	p.embedders[modelName] = e
	return e, nil
}

func (p *langchainEmbedProvider) Embed(ctx context.Context, modelName string, text string) (*model.Embedding, error) {
	e, err := p.embedderFor(modelName)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return &model.Embedding{Vector: vectors[0]}, nil
}

func createLangchainEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &langchainConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = "none"
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &langchainEmbedProvider{
		baseURL:   baseURL,
		apiKey:    apiKey,
		embedders: map[string]embeddings.Embedder{},
	}, nil
}

func init() {
	RegisterEmbed("langchain", createLangchainEmbedFactory)
}
