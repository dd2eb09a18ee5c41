package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// qdrantTracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("agentd.vectorstore.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC backend.
type QdrantConfig struct {
	// Host is the Qdrant server host. Default: "localhost".
	Host string

	// Port is the Qdrant gRPC port. Default: 6334.
	Port int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// VectorSize is the embedding dimension; must match the embedder.
	VectorSize int

	// MaxMessageSize is the gRPC message size limit in bytes.
	// Default: 32MB.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 32 << 20
	}
}

// Validate validates the configuration.
func (c *QdrantConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// QdrantStore implements Store against an external Qdrant server over gRPC.
// Collections are created with cosine distance, so scores are similarities
// in [0, 1] for normalized embeddings and distance is 1 − score.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger
}

// NewQdrantStore creates a QdrantStore with the given configuration.
func NewQdrantStore(cfg QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	logger.Info("qdrant store initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("vector_size", cfg.VectorSize),
	)

	return &QdrantStore{client: client, embedder: embedder, config: cfg, logger: logger}, nil
}

// ensureCollection creates the agent's collection if it does not exist.
func (s *QdrantStore) ensureCollection(ctx context.Context, collectionName string) error {
	exists, err := s.client.CollectionExists(ctx, collectionName)
	if err != nil {
		return fmt.Errorf("%w: checking collection %s: %v", ErrIndexUnavailable, collectionName, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.config.VectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: creating collection %s: %v", ErrIndexUnavailable, collectionName, err)
	}
	return nil
}

// pointID derives a deterministic UUID from the chunk ID. Qdrant point IDs
// must be UUIDs; deriving them keeps upserts idempotent per chunk ID.
func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

// Upsert writes chunks into the agent's collection in batches of at most
// upsertBatchSize, idempotent per chunk ID.
func (s *QdrantStore) Upsert(ctx context.Context, agentID string, chunks []Chunk) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()

	collectionName := CollectionName(agentID)
	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("chunk_count", len(chunks)),
	)

	if len(chunks) == 0 {
		return ErrEmptyChunks
	}

	if err := s.ensureCollection(ctx, collectionName); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
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

		points := make([]*qdrant.PointStruct, len(batch))
		for i, c := range batch {
			points[i] = &qdrant.PointStruct{
				Id:      pointID(c.ID),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: chunkPayload(c),
			}
		}

		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collectionName,
			Points:         points,
		}); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%w: upserting to %s: %v", ErrIndexUnavailable, collectionName, err)
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
func (s *QdrantStore) Query(ctx context.Context, agentID string, text string, k int) ([]Result, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()

	collectionName := CollectionName(agentID)
	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("k", k),
	)

	if err := validateQuery(text, k); err != nil {
		return nil, err
	}

	if err := s.ensureCollection(ctx, collectionName); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying %s: %v", ErrIndexUnavailable, collectionName, err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Text:      payloadString(h.Payload, "content"),
			Metadata:  metadataFromPayload(h.Payload),
			Distance:  1 - h.Score,
			Relevance: h.Score,
		}
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// DeleteCollection removes all chunks for the agent.
func (s *QdrantStore) DeleteCollection(ctx context.Context, agentID string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteCollection")
	defer span.End()

	collectionName := CollectionName(agentID)
	span.SetAttributes(attribute.String("collection", collectionName))

	if err := s.client.DeleteCollection(ctx, collectionName); err != nil {
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
func (s *QdrantStore) Count(ctx context.Context, agentID string) (int, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Count")
	defer span.End()

	collectionName := CollectionName(agentID)
	exists, err := s.client.CollectionExists(ctx, collectionName)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: checking collection %s: %v", ErrIndexUnavailable, collectionName, err)
	}
	if !exists {
		return 0, nil
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collectionName,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: counting %s: %v", ErrIndexUnavailable, collectionName, err)
	}
	return int(count), nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func chunkPayload(c Chunk) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		"content":      c.Text,
		"chunk_id":     c.ID,
		"agent_id":     c.Metadata.AgentID,
		"filename":     c.Metadata.Filename,
		"file_type":    c.Metadata.FileType,
		"chunk_index":  int64(c.Metadata.ChunkIndex),
		"total_chunks": int64(c.Metadata.TotalChunks),
		"group_id":     c.Metadata.GroupID,
	})
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func payloadInt(payload map[string]*qdrant.Value, key string) int {
	if v, ok := payload[key]; ok {
		if n := v.GetIntegerValue(); n != 0 {
			return int(n)
		}
		// Numbers round-tripped through JSON arrive as doubles.
		if f := v.GetDoubleValue(); f != 0 {
			return int(f)
		}
		if s := v.GetStringValue(); s != "" {
			n, _ := strconv.Atoi(s)
			return n
		}
	}
	return 0
}

func metadataFromPayload(payload map[string]*qdrant.Value) ChunkMetadata {
	return ChunkMetadata{
		AgentID:     payloadString(payload, "agent_id"),
		Filename:    payloadString(payload, "filename"),
		FileType:    payloadString(payload, "file_type"),
		ChunkIndex:  payloadInt(payload, "chunk_index"),
		TotalChunks: payloadInt(payload, "total_chunks"),
		GroupID:     payloadString(payload, "group_id"),
	}
}

// Ensure QdrantStore implements Store.
var _ Store = (*QdrantStore)(nil)
