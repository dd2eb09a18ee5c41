package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1 << 20 // 1MB

// Load loads configuration from the default YAML file path,
// then overrides with environment variables.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, EMBEDDING_PROVIDER, ...)
//  2. YAML config file (~/.config/agentd/config.yaml by default)
//  3. Hardcoded defaults
//
// Environment variables map to YAML fields by splitting on the first
// underscore: SERVER_PORT -> server.port, VECTOR_PROVIDER -> vector.provider,
// PROVIDERS_OPENAI_API_KEY -> providers.openai_api_key. The conventional bare
// credential variables (OPENAI_API_KEY, ANTHROPIC_API_KEY, OLLAMA_BASE_URL,
// LMSTUDIO_BASE_URL, LOCALAI_BASE_URL) are honored as fallbacks.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "agentd", "config.yaml")
	}

	if info, err := os.Stat(configPath); err == nil {
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
		}
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Override with environment variables. Only variables whose first
	// segment names a known config section are considered, so unrelated
	// process environment does not leak into the config tree.
	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyEnvFallbacks()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// configSections are the top-level keys environment overrides may target.
var configSections = map[string]bool{
	"server":    true,
	"store":     true,
	"vector":    true,
	"embedding": true,
	"providers": true,
	"ingest":    true,
	"chat":      true,
	"log":       true,
	"telemetry": true,
}

// envTransform maps SECTION_FIELD_NAME to section.field_name, returning ""
// for variables outside the config namespace.
func envTransform(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 || !configSections[parts[0]] {
		return ""
	}
	return parts[0] + "." + parts[1]
}
