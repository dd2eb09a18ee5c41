// Package vectorstore provides the per-agent vector index used for
// retrieval. Each agent owns one collection, named deterministically from
// the agent identifier; chunks are upserted in bounded batches and queried
// by embedding similarity.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentforge/agentd/internal/embeddings"
)

// upsertBatchSize bounds the number of chunks embedded and written per
// request to keep peak request size flat for large documents.
const upsertBatchSize = 1000

// Sentinel errors for vector index operations.
var (
	// ErrIndexUnavailable indicates the index backend could not be reached.
	// Callers decide whether to retry; it is never swallowed here.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid vector store configuration")

	// ErrEmptyChunks indicates an upsert with no chunks.
	ErrEmptyChunks = errors.New("empty or nil chunks")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// ChunkMetadata is the fixed per-chunk metadata record. A closed struct
// rather than an open map so missing fields fail at compile time.
type ChunkMetadata struct {
	AgentID     string `json:"agent_id"`
	Filename    string `json:"filename"`
	FileType    string `json:"file_type"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	GroupID     string `json:"group_id"`
}

// Chunk is one indexed text segment.
type Chunk struct {
	// ID is the unique chunk identifier, derived from the upload's group
	// id and the chunk index. Upserts with the same ID are idempotent.
	ID string

	// Text is the chunk content.
	Text string

	// Metadata is the fixed metadata record stored alongside the vector.
	Metadata ChunkMetadata
}

// Result is one similarity-query hit, ordered nearest-first by the caller's
// view. Both backends use cosine distance, bounded in [0, 1] for normalized
// embeddings, so Relevance = 1 − Distance stays in [0, 1].
type Result struct {
	// Text is the original chunk text.
	Text string

	// Metadata is the chunk's stored metadata record.
	Metadata ChunkMetadata

	// Distance is the cosine distance to the query.
	Distance float32

	// Relevance is 1 − Distance.
	Relevance float32
}

// Store is the per-agent vector index.
//
// Implementations must be safe for concurrent use across independent calls.
type Store interface {
	// Upsert writes chunks into the agent's collection in bounded batches,
	// idempotent per chunk ID.
	Upsert(ctx context.Context, agentID string, chunks []Chunk) error

	// Query returns up to k nearest chunks for text, nearest first.
	// A missing collection yields zero results, not an error.
	Query(ctx context.Context, agentID string, text string, k int) ([]Result, error)

	// DeleteCollection irreversibly removes all chunks for the agent.
	DeleteCollection(ctx context.Context, agentID string) error

	// Count returns the number of chunks in the agent's collection.
	Count(ctx context.Context, agentID string) (int, error)

	// Close releases backend resources.
	Close() error
}

// CollectionName returns the deterministic collection name for an agent.
func CollectionName(agentID string) string {
	return "agent_" + agentID
}

// Embedder is the injected embedding capability.
type Embedder = embeddings.Embedder

func validateQuery(text string, k int) error {
	if text == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return fmt.Errorf("k must be positive, got %d", k)
	}
	return nil
}
