// Package config provides configuration loading for agentd.
//
// Configuration is loaded from an optional YAML file, then overridden by
// environment variables. Credentials additionally fall back to conventional
// bare variables (OPENAI_API_KEY, ANTHROPIC_API_KEY, OLLAMA_BASE_URL, ...)
// so agents work with standard provider environments.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/agentforge/agentd/internal/extractor"
)

// Config holds the complete agentd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Vector    VectorConfig    `koanf:"vector"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Providers ProvidersConfig `koanf:"providers"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Chat      ChatConfig      `koanf:"chat"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string `koanf:"host"`
	Port            int    `koanf:"port"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

// StoreConfig holds the record store (SQLite) configuration.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// VectorConfig holds vector index configuration.
type VectorConfig struct {
	// Provider selects the index backend: "chromem" (embedded, default)
	// or "qdrant" (external server).
	Provider string `koanf:"provider"`

	// Path is the persistence directory for the chromem backend.
	Path string `koanf:"path"`

	// Compress enables gzip compression for chromem persistence.
	Compress bool `koanf:"compress"`

	// Host and Port locate the Qdrant server for the qdrant backend.
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: "fastembed" (local CPU,
	// default) or "openai" (hosted API).
	Provider string `koanf:"provider"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// CacheDir is the model cache directory (fastembed only).
	CacheDir string `koanf:"cache_dir"`
}

// ProvidersConfig holds per-model-family credentials and endpoints.
type ProvidersConfig struct {
	OpenAIAPIKey    Secret `koanf:"openai_api_key"`
	AnthropicAPIKey Secret `koanf:"anthropic_api_key"`
	OllamaBaseURL   string `koanf:"ollama_base_url"`
	LMStudioBaseURL string `koanf:"lmstudio_base_url"`
	LocalAIBaseURL  string `koanf:"localai_base_url"`
}

// IngestConfig holds document ingestion configuration.
type IngestConfig struct {
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// AllowedExtensions narrows the upload allow-list. Entries must be a
	// subset of the extractable types; defaults to all of them.
	AllowedExtensions []string `koanf:"allowed_extensions"`

	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// ChatConfig holds chat turn configuration.
type ChatConfig struct {
	// TopK is the number of nearest chunks requested per retrieval.
	TopK int `koanf:"top_k"`

	// MaxContextTokens bounds the assembled context block
	// (budget is MaxContextTokens * 4 characters).
	MaxContextTokens int `koanf:"max_context_tokens"`

	// HistoryWindow is the number of trailing history messages included.
	HistoryWindow int `koanf:"history_window"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry trace export configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
	Insecure    bool   `koanf:"insecure"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Store.Path == "" {
		c.Store.Path = "~/.local/share/agentd/agentd.db"
	}
	if c.Vector.Provider == "" {
		c.Vector.Provider = "chromem"
	}
	if c.Vector.Path == "" {
		c.Vector.Path = "~/.local/share/agentd/vectorstore"
	}
	if c.Vector.Host == "" {
		c.Vector.Host = "localhost"
	}
	if c.Vector.Port == 0 {
		c.Vector.Port = 6334
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "fastembed"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultEmbeddingModel(c.Embedding.Provider)
	}
	if c.Ingest.MaxUploadBytes == 0 {
		c.Ingest.MaxUploadBytes = 10 << 20 // 10MB
	}
	if len(c.Ingest.AllowedExtensions) == 0 {
		c.Ingest.AllowedExtensions = extractor.SupportedExtensions()
	}
	if c.Ingest.ChunkSize == 0 {
		c.Ingest.ChunkSize = 1000
	}
	if c.Ingest.ChunkOverlap == 0 {
		c.Ingest.ChunkOverlap = 200
	}
	if c.Chat.TopK == 0 {
		c.Chat.TopK = 5
	}
	if c.Chat.MaxContextTokens == 0 {
		c.Chat.MaxContextTokens = 2000
	}
	if c.Chat.HistoryWindow == 0 {
		c.Chat.HistoryWindow = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "agentd"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4317"
	}
}

func defaultEmbeddingModel(provider string) string {
	if provider == "openai" {
		return "text-embedding-3-small"
	}
	return "BAAI/bge-small-en-v1.5"
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	switch c.Vector.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unknown vector provider: %q", c.Vector.Provider)
	}
	switch c.Embedding.Provider {
	case "fastembed", "openai":
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "openai" && !c.Providers.OpenAIAPIKey.IsSet() {
		return errors.New("OPENAI_API_KEY required for openai embeddings")
	}
	if c.Ingest.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}
	extractable := make(map[string]bool)
	for _, ext := range extractor.SupportedExtensions() {
		extractable[ext] = true
	}
	for _, ext := range c.Ingest.AllowedExtensions {
		if !extractable[strings.ToLower(ext)] {
			return fmt.Errorf("allowed extension %q is not extractable (supported: %s)",
				ext, strings.Join(extractor.SupportedExtensions(), ", "))
		}
	}
	if c.Ingest.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be in [0, chunk size %d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	return nil
}

// applyEnvFallbacks fills credentials and endpoints from conventional bare
// environment variables when the sectioned variables are unset.
func (c *Config) applyEnvFallbacks() {
	if !c.Providers.OpenAIAPIKey.IsSet() {
		c.Providers.OpenAIAPIKey = Secret(os.Getenv("OPENAI_API_KEY"))
	}
	if !c.Providers.AnthropicAPIKey.IsSet() {
		c.Providers.AnthropicAPIKey = Secret(os.Getenv("ANTHROPIC_API_KEY"))
	}
	if c.Providers.OllamaBaseURL == "" {
		c.Providers.OllamaBaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if c.Providers.LMStudioBaseURL == "" {
		c.Providers.LMStudioBaseURL = os.Getenv("LMSTUDIO_BASE_URL")
	}
	if c.Providers.LocalAIBaseURL == "" {
		c.Providers.LocalAIBaseURL = os.Getenv("LOCALAI_BASE_URL")
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return home + path[1:], nil
	}
	return path, nil
}
