package ai

import (
	"context"
	"strings"

	"github.com/xxxsen/docembed/internal/model"
	"github.com/xxxsen/docembed/internal/retry"
	"google.golang.org/genai"
)

const defaultGeminiTaskType = "RETRIEVAL_DOCUMENT"

type geminiConfig struct {
	APIKey   string `json:"api_key"`
	TaskType string `json:"task_type"`
}

type geminiEmbedProvider struct {
	apiKey   string
	taskType string
}

func (p *geminiEmbedProvider) Name() string {
	return "gemini"
}

// Embed leaves the token count empty; the Gemini embed API does not report
// usage, so the embedder falls back to its tokenizer.
func (p *geminiEmbedProvider) Embed(ctx context.Context, modelName string, text string) (*model.Embedding, error) {
	if p.apiKey == "" {
		return nil, retry.Permanent(ErrUnavailable)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, retry.Permanent(err)
	}
	var config *genai.EmbedContentConfig
	if p.taskType != "" {
		config = &genai.EmbedContentConfig{
			TaskType: p.taskType,
		}
	}
	resp, err := client.Models.EmbedContent(
		ctx,
		modelName,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		config,
	)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, ErrEmptyEmbedding
	}
	return &model.Embedding{Vector: resp.Embeddings[0].Values}, nil
}

func createGeminiEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	taskType := strings.TrimSpace(cfg.TaskType)
	if taskType == "" {
		taskType = defaultGeminiTaskType
	}
	provider := &geminiEmbedProvider{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		taskType: taskType,
	}
	return provider, nil
}

func init() {
	RegisterEmbed("gemini", createGeminiEmbedFactory)
}
