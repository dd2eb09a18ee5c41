package rag_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/agentd/internal/rag"
	"github.com/agentforge/agentd/internal/vectorstore"
)

func result(text, filename string, chunkIndex int, relevance float64) vectorstore.Result {
	return vectorstore.Result{
		Text:      text,
		Relevance: float32(relevance),
		Distance:  float32(1 - relevance),
		Metadata: vectorstore.ChunkMetadata{
			Filename:   filename,
			ChunkIndex: chunkIndex,
		},
	}
}

func TestBuildContext_Empty(t *testing.T) {
	context, sources := rag.BuildContext(nil, 2000)
	assert.Equal(t, rag.NoContextSentinel, context)
	assert.Nil(t, sources)
}

func TestBuildContext_LabelsAndSources(t *testing.T) {
	results := []vectorstore.Result{
		result("First chunk body.", "guide.pdf", 0, 0.91234),
		result("Second chunk body.", "guide.pdf", 3, 0.8),
	}

	context, sources := rag.BuildContext(results, 2000)

	assert.Contains(t, context, "[Source 1 - guide.pdf (Part 1)]\nFirst chunk body.")
	assert.Contains(t, context, "[Source 2 - guide.pdf (Part 4)]\nSecond chunk body.")

	require.Len(t, sources, 2)
	assert.Equal(t, "guide.pdf", sources[0].Filename)
	assert.Equal(t, 0, sources[0].ChunkIndex)
	assert.Equal(t, 0.912, sources[0].Relevance)
	assert.Equal(t, 3, sources[1].ChunkIndex)
	assert.Equal(t, 0.8, sources[1].Relevance)
}

func TestBuildContext_MissingFilename(t *testing.T) {
	context, sources := rag.BuildContext([]vectorstore.Result{
		result("Anonymous chunk.", "", 2, 0.5),
	}, 2000)

	assert.Contains(t, context, "[Source 1 (Part 3)]\nAnonymous chunk.")
	require.Len(t, sources, 1)
	assert.Equal(t, "Unknown", sources[0].Filename)
}

func TestBuildContext_TruncatesAtBudget(t *testing.T) {
	big := strings.Repeat("x", 500)
	results := []vectorstore.Result{
		result(big, "a.txt", 0, 0.9),
		result(big, "a.txt", 1, 0.8),
		result(big, "a.txt", 2, 0.7),
	}

	// Budget of 200 tokens is 800 chars: the first entry fits, the
	// second triggers truncation.
	context, sources := rag.BuildContext(results, 200)

	assert.Contains(t, context, "[Source 1 - a.txt (Part 1)]")
	assert.NotContains(t, context, "[Source 2")
	assert.True(t, strings.HasSuffix(context, "... (additional context truncated due to length)"))

	// Sources still cover every offered result, including the ones the
	// budget cut from the context block.
	require.Len(t, sources, 3)
	assert.Equal(t, 2, sources[2].ChunkIndex)
	assert.Equal(t, 0.7, sources[2].Relevance)
}

func TestSystemPrompt(t *testing.T) {
	prompt := rag.SystemPrompt("You are a support agent.", "friendly", "")

	assert.True(t, strings.HasPrefix(prompt, "You are a support agent."))
	assert.Contains(t, prompt, "ALWAYS prioritize information from the provided context")
	assert.Contains(t, prompt, "Do not make up information not present in the context")
	assert.Contains(t, prompt, "Personality: friendly\n")
	assert.NotContains(t, prompt, "Additional Guidelines:")
}

func TestSystemPrompt_Guardrails(t *testing.T) {
	prompt := rag.SystemPrompt("Base.", "professional", "Never discuss pricing.")
	assert.Contains(t, prompt, "Additional Guidelines:\nNever discuss pricing.")
}

func TestContextMessage(t *testing.T) {
	msg := rag.ContextMessage("THE CONTEXT")
	assert.True(t, strings.HasPrefix(msg, "Here is relevant context from the knowledge base:\n\nTHE CONTEXT"))
	assert.Contains(t, msg, "Use this context to answer the user's question.")
}
