package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// chatModel adapts a langchaingo model to the Backend interface.
type chatModel struct {
	model llms.Model
}

func newOpenAIBackend(model, apiKey, baseURL string) (Backend, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	return &chatModel{model: m}, nil
}

func newAnthropicBackend(model, apiKey string) (Backend, error) {
	m, err := anthropic.New(
		anthropic.WithToken(apiKey),
		anthropic.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	return &chatModel{model: m}, nil
}

func newOllamaBackend(model, baseURL string) (Backend, error) {
	m, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	return &chatModel{model: m}, nil
}

// Complete sends the transcript to the underlying model and returns the
// first choice.
func (c *chatModel) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	content := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		content[i] = llms.TextParts(messageType(m.Role), m.Content)
	}

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	resp, err := c.model.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrCompletionFailed)
	}

	choice := resp.Choices[0]
	return &Completion{
		Content:     choice.Content,
		TotalTokens: totalTokens(choice.GenerationInfo),
	}, nil
}

func messageType(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// totalTokens extracts usage from provider-specific generation info.
// Providers disagree on key names, so sum prompt and completion counts
// when no total is reported.
func totalTokens(info map[string]any) int {
	if info == nil {
		return 0
	}
	if n := asInt(info["TotalTokens"]); n > 0 {
		return n
	}
	pairs := [][2]string{
		{"PromptTokens", "CompletionTokens"},
		{"InputTokens", "OutputTokens"},
	}
	for _, p := range pairs {
		if n := asInt(info[p[0]]) + asInt(info[p[1]]); n > 0 {
			return n
		}
	}
	return 0
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
