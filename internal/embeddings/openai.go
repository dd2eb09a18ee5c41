package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds configuration for the hosted OpenAI embedding provider.
type OpenAIConfig struct {
	// Model is the embedding model. Default: text-embedding-3-small.
	Model string

	// APIKey is the OpenAI API key. Required.
	APIKey string
}

// openAIModelDimensions maps embedding models to their output dimensions.
var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIProvider generates embeddings through the OpenAI embeddings API.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	dimension int
}

// NewOpenAIProvider creates a hosted embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set but OpenAI embeddings requested", ErrMissingCredential)
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dimension, ok := openAIModelDimensions[model]
	if !ok {
		dimension = 1536
	}

	return &OpenAIProvider{
		client:    openai.NewClient(cfg.APIKey),
		model:     model,
		dimension: dimension,
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts in one request.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	embeddings, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimension returns the embedding dimension for the current model.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op for the HTTP-backed provider.
func (p *OpenAIProvider) Close() error {
	return nil
}
