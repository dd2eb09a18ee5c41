// Package llm selects and drives chat completion backends. A model name on
// the agent record is classified by keyword into a provider (Ollama, OpenAI,
// OpenAI-compatible local endpoints, Anthropic) and wrapped behind a uniform
// Backend interface.
package llm

import (
	"context"
	"errors"
)

// Sentinel errors for completion operations.
var (
	// ErrUnsupportedModel indicates the model name matched no provider and
	// no Ollama fallback endpoint is configured.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrMissingCredential indicates the matched provider requires an API
	// key that is not configured.
	ErrMissingCredential = errors.New("missing provider credential")

	// ErrCompletionFailed indicates the provider returned an error or an
	// empty response.
	ErrCompletionFailed = errors.New("completion failed")
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a chat transcript sent to a backend.
type Message struct {
	Role    Role
	Content string
}

// Options control a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Completion is the result of a chat completion call. TotalTokens is zero
// when the provider does not report usage.
type Completion struct {
	Content     string
	TotalTokens int
}

// Backend produces chat completions for one configured model.
type Backend interface {
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)
}
