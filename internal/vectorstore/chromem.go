package vectorstore

import (
	"context"
	"fmt"
	"os"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/agentforge/agentd/internal/config"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("agentd.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.local/share/agentd/vectorstore"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/agentd/vectorstore"
	}
}

// ChromemStore implements Store with chromem-go, an embeddable pure-Go
// vector database persisting to gob files. chromem computes cosine
// similarity over normalized vectors; distance is reported as
// 1 − similarity.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	logger   *zap.Logger
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(cfg ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.ApplyDefaults()

	path, err := config.ExpandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: creating chromem DB: %v", ErrIndexUnavailable, err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", path),
		zap.Bool("compress", cfg.Compress),
	)

	return &ChromemStore{db: db, embedder: embedder, logger: logger}, nil
}

// embeddingFunc adapts the injected Embedder to chromem's callback.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Upsert writes chunks into the agent's collection in batches of at most
// upsertBatchSize, idempotent per chunk ID.
func (s *ChromemStore) Upsert(ctx context.Context, agentID string, chunks []Chunk) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	collectionName := CollectionName(agentID)
	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("chunk_count", len(chunks)),
	)

	if len(chunks) == 0 {
		return ErrEmptyChunks
	}

	collection, err := s.db.GetOrCreateCollection(collectionName, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: collection %s: %v", ErrIndexUnavailable, collectionName, err)
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}

		docs := make([]chromem.Document, len(batch))
		for i, c := range batch {
			docs[i] = chromem.Document{
				ID:        c.ID,
				Content:   c.Text,
				Metadata:  metadataToMap(c.Metadata),
				Embedding: vectors[i],
			}
		}
		// Concurrency of 1: embeddings are already computed.
		if err := collection.AddDocuments(ctx, docs, 1); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%w: adding chunks: %v", ErrIndexUnavailable, err)
		}

		s.logger.Debug("upserted chunk batch",
			zap.String("collection", collectionName),
			zap.Int("count", len(batch)),
		)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query returns up to k nearest chunks for text, nearest first. A missing
// collection is created empty and yields zero results.
func (s *ChromemStore) Query(ctx context.Context, agentID string, text string, k int) ([]Result, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	collectionName := CollectionName(agentID)
	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("k", k),
	)

	if err := validateQuery(text, k); err != nil {
		return nil, err
	}

	collection, err := s.db.GetOrCreateCollection(collectionName, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: collection %s: %v", ErrIndexUnavailable, collectionName, err)
	}

	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		span.SetStatus(codes.Ok, "empty collection")
		return []Result{}, nil
	}
	if k > count {
		k = count
	}

	hits, err := collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying %s: %v", ErrIndexUnavailable, collectionName, err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Text:      h.Content,
			Metadata:  metadataFromMap(h.Metadata),
			Distance:  1 - h.Similarity,
			Relevance: h.Similarity,
		}
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// DeleteCollection removes all chunks for the agent.
func (s *ChromemStore) DeleteCollection(ctx context.Context, agentID string) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DeleteCollection")
	defer span.End()

	collectionName := CollectionName(agentID)
	span.SetAttributes(attribute.String("collection", collectionName))

	if err := s.db.DeleteCollection(collectionName); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: deleting %s: %v", ErrIndexUnavailable, collectionName, err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Info("deleted collection", zap.String("collection", collectionName))
	return nil
}

// Count returns the number of chunks in the agent's collection;
// a missing collection counts as zero.
func (s *ChromemStore) Count(ctx context.Context, agentID string) (int, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Count")
	defer span.End()

	collection := s.db.GetCollection(CollectionName(agentID), s.embeddingFunc())
	if collection == nil {
		return 0, nil
	}
	return collection.Count(), nil
}

// Close is a no-op; chromem persists automatically.
func (s *ChromemStore) Close() error {
	return nil
}

func metadataToMap(m ChunkMetadata) map[string]string {
	return map[string]string{
		"agent_id":     m.AgentID,
		"filename":     m.Filename,
		"file_type":    m.FileType,
		"chunk_index":  strconv.Itoa(m.ChunkIndex),
		"total_chunks": strconv.Itoa(m.TotalChunks),
		"group_id":     m.GroupID,
	}
}

func metadataFromMap(m map[string]string) ChunkMetadata {
	chunkIndex, _ := strconv.Atoi(m["chunk_index"])
	totalChunks, _ := strconv.Atoi(m["total_chunks"])
	return ChunkMetadata{
		AgentID:     m["agent_id"],
		Filename:    m["filename"],
		FileType:    m["file_type"],
		ChunkIndex:  chunkIndex,
		TotalChunks: totalChunks,
		GroupID:     m["group_id"],
	}
}

// Ensure ChromemStore implements Store.
var _ Store = (*ChromemStore)(nil)
