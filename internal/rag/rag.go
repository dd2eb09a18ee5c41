// Package rag assembles retrieval results into prompt context. It formats
// retrieved chunks into a labeled context block bounded by a token budget,
// and builds the retrieval-aware system messages for chat completion.
package rag

import (
	"fmt"
	"math"
	"strings"

	"github.com/agentforge/agentd/internal/vectorstore"
)

// NoContextSentinel is returned by BuildContext when retrieval produced
// nothing. It stands in for the context block so the model is told the
// knowledge base had no match rather than being given an empty string.
const NoContextSentinel = "No relevant information found in the knowledge base."

// truncationNotice terminates the context block when the budget is hit.
const truncationNotice = "... (additional context truncated due to length)"

// charsPerToken is the rough character-to-token estimate used for the
// context budget.
const charsPerToken = 4

// Source describes one retrieved chunk cited in a chat response.
type Source struct {
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Relevance  float64 `json:"relevance_score"`
}

// BuildContext formats retrieval results into a context string and the
// matching source citations. Results are consumed in order until the
// estimated budget of maxTokens is exceeded; the block is then terminated
// with a truncation notice. Sources cover every result offered, including
// ones cut by the budget.
func BuildContext(results []vectorstore.Result, maxTokens int) (string, []Source) {
	if len(results) == 0 {
		return NoContextSentinel, nil
	}

	// Sources cover every result offered; only the context block is
	// subject to the budget.
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		filename := r.Metadata.Filename
		if filename == "" {
			filename = "Unknown"
		}
		sources = append(sources, Source{
			Filename:   filename,
			ChunkIndex: r.Metadata.ChunkIndex,
			Relevance:  math.Round(float64(r.Relevance)*1000) / 1000,
		})
	}

	maxChars := maxTokens * charsPerToken
	var b strings.Builder
	length := 0

	for i, r := range results {
		label := fmt.Sprintf("[Source %d", i+1)
		if r.Metadata.Filename != "" {
			label += " - " + r.Metadata.Filename
		}
		label += fmt.Sprintf(" (Part %d)", r.Metadata.ChunkIndex+1)
		entry := label + "]\n" + r.Text + "\n\n"

		if length+len(entry) > maxChars {
			b.WriteString(truncationNotice)
			break
		}
		b.WriteString(entry)
		length += len(entry)
	}

	return b.String(), sources
}

// SystemPrompt builds the agent's full system message: the base prompt,
// the retrieval-priority instructions, the personality line, and optional
// guardrails.
func SystemPrompt(basePrompt, personality, guardrails string) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString(`

IMPORTANT: You have access to a knowledge base of documents. When answering questions:
1. ALWAYS prioritize information from the provided context
2. If the context contains relevant information, use it in your answer
3. If the context doesn't contain relevant information, say so clearly
4. Cite information from the context when applicable
5. Do not make up information not present in the context

Personality: `)
	b.WriteString(personality)
	b.WriteString("\n")

	if guardrails != "" {
		b.WriteString("\n\nAdditional Guidelines:\n")
		b.WriteString(guardrails)
	}
	return b.String()
}

// ContextMessage frames the assembled context block as a second system
// message placed between the system prompt and the conversation.
func ContextMessage(context string) string {
	return "Here is relevant context from the knowledge base:\n\n" + context + "\n\n" +
		"Use this context to answer the user's question. If the context doesn't contain " +
		"relevant information, mention that and provide general guidance if appropriate."
}
