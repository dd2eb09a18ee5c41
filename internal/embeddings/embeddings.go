// Package embeddings provides the text embedding capability used by the
// vector index. One provider is selected per process from configuration and
// shared across all agents.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid embedding configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrMissingCredential indicates a provider requiring an API key was
	// selected without one configured.
	ErrMissingCredential = errors.New("missing embedding provider credential")
)

// Embedder maps text to fixed-length vectors for similarity search.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// embed queries differently from documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with lifecycle and dimension metadata.
type Provider interface {
	Embedder

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// Config holds configuration for creating an embedding provider.
type Config struct {
	// Provider is the provider type: "fastembed" (default) or "openai".
	Provider string

	// Model is the embedding model name.
	Model string

	// APIKey is the hosted API key (openai only).
	APIKey string

	// CacheDir is the model cache directory (fastembed only).
	CacheDir string
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "fastembed", "":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			Model:  cfg.Model,
			APIKey: cfg.APIKey,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
