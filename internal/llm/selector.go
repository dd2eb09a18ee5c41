package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agentforge/agentd/internal/config"
)

// defaultOllamaBaseURL is used for recognized local models when no Ollama
// endpoint is configured.
const defaultOllamaBaseURL = "http://localhost:11434"

// backendKind is the closed set of provider backends a model name can map
// to.
type backendKind int

const (
	kindOllama backendKind = iota
	kindLMStudio
	kindLocalAI
	kindOpenAI
	kindAnthropic
)

// rule matches model names to a backend kind by substring (or prefix). A
// rule with a requires predicate only fires when its endpoint is
// configured.
type rule struct {
	kind     backendKind
	keywords []string
	prefixes []string
	requires func(config.ProvidersConfig) bool
}

// rules is walked in order; the first match wins. Priority: local Ollama
// keyword models, then OpenAI-compatible endpoints gated on a configured
// base URL, then hosted OpenAI and Anthropic names. Adding a provider is a
// new row, not a new branch.
var rules = []rule{
	{
		kind: kindOllama,
		keywords: []string{
			"llama", "mistral", "codellama", "phi", "gemma", "vicuna", "orca", "neural-chat",
		},
	},
	{
		kind:     kindLMStudio,
		keywords: []string{"lmstudio"},
		requires: func(p config.ProvidersConfig) bool { return p.LMStudioBaseURL != "" },
	},
	{
		kind:     kindLocalAI,
		keywords: []string{"localai"},
		requires: func(p config.ProvidersConfig) bool { return p.LocalAIBaseURL != "" },
	},
	{
		kind:     kindOpenAI,
		keywords: []string{"gpt"},
		prefixes: []string{"o1"},
	},
	{
		kind:     kindAnthropic,
		keywords: []string{"claude", "sonnet", "opus"},
	},
}

func (r rule) matches(name string, providers config.ProvidersConfig) bool {
	if r.requires != nil && !r.requires(providers) {
		return false
	}
	for _, k := range r.keywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Selector maps agent model names to completion backends using provider
// credentials and endpoints from configuration.
type Selector struct {
	providers config.ProvidersConfig
	logger    *zap.Logger
}

// NewSelector creates a Selector. A nil logger falls back to a no-op logger.
func NewSelector(providers config.ProvidersConfig, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{providers: providers, logger: logger}
}

// BackendFor resolves the backend for a model name by walking the rule
// table. A name matching no rule falls back to Ollama when an Ollama
// endpoint is configured, else fails with ErrUnsupportedModel. No network
// call happens here; construction is configuration only.
func (s *Selector) BackendFor(model string) (Backend, error) {
	name := strings.ToLower(model)

	for _, r := range rules {
		if r.matches(name, s.providers) {
			return s.build(r.kind, model)
		}
	}

	if s.providers.OllamaBaseURL != "" {
		s.logger.Warn("unknown model, attempting ollama fallback",
			zap.String("model", model),
			zap.String("base_url", s.providers.OllamaBaseURL),
		)
		return newOllamaBackend(model, s.providers.OllamaBaseURL)
	}

	return nil, fmt.Errorf(
		"%w: %s (supported providers: OpenAI, Anthropic, Ollama, LM Studio, LocalAI)",
		ErrUnsupportedModel, model,
	)
}

// build constructs the backend for a matched kind, resolving its endpoint
// and credential.
func (s *Selector) build(kind backendKind, model string) (Backend, error) {
	switch kind {
	case kindOllama:
		baseURL := s.providers.OllamaBaseURL
		if baseURL == "" {
			baseURL = defaultOllamaBaseURL
		}
		s.logger.Info("using ollama backend",
			zap.String("model", model),
			zap.String("base_url", baseURL),
		)
		return newOllamaBackend(model, baseURL)

	case kindLMStudio:
		s.logger.Info("using lm studio backend",
			zap.String("model", model),
			zap.String("base_url", s.providers.LMStudioBaseURL),
		)
		// LM Studio ignores the API key but the client requires one.
		return newOpenAIBackend(model, "lm-studio", s.providers.LMStudioBaseURL)

	case kindLocalAI:
		s.logger.Info("using localai backend",
			zap.String("model", model),
			zap.String("base_url", s.providers.LocalAIBaseURL),
		)
		return newOpenAIBackend(model, "not-needed", s.providers.LocalAIBaseURL)

	case kindOpenAI:
		if !s.providers.OpenAIAPIKey.IsSet() {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrMissingCredential)
		}
		s.logger.Info("using openai backend", zap.String("model", model))
		return newOpenAIBackend(model, s.providers.OpenAIAPIKey.Value(), "")

	case kindAnthropic:
		if !s.providers.AnthropicAPIKey.IsSet() {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY not set", ErrMissingCredential)
		}
		s.logger.Info("using anthropic backend", zap.String("model", model))
		return newAnthropicBackend(model, s.providers.AnthropicAPIKey.Value())
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, model)
}
