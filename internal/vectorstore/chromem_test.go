package vectorstore_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentforge/agentd/internal/vectorstore"
)

// testEmbedder returns deterministic normalized vectors so similarity
// ordering is stable across runs.
type testEmbedder struct {
	vectorSize int
}

func (e *testEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.makeEmbedding(text)
	}
	return out, nil
}

func (e *testEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.makeEmbedding(text), nil
}

func (e *testEmbedder) makeEmbedding(text string) []float32 {
	embedding := make([]float32, e.vectorSize)
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	var sumSq float32
	for i := range embedding {
		embedding[i] = float32((hash+i)%100) / 100.0
		sumSq += embedding[i] * embedding[i]
	}
	if sumSq > 0 {
		norm := 1.0 / sqrt32(sumSq)
		for i := range embedding {
			embedding[i] *= norm
		}
	}
	return embedding
}

func sqrt32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	guess := x / 2
	for i := 0; i < 20; i++ {
		guess = (guess + x/guess) / 2
	}
	return guess
}

func newTestStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path: t.TempDir(),
	}, &testEmbedder{vectorSize: 8}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func testChunks(n int) []vectorstore.Chunk {
	chunks := make([]vectorstore.Chunk, n)
	for i := range chunks {
		chunks[i] = vectorstore.Chunk{
			ID:   fmt.Sprintf("group_chunk_%d", i),
			Text: fmt.Sprintf("chunk body number %d", i),
			Metadata: vectorstore.ChunkMetadata{
				AgentID:     "7",
				Filename:    "doc.txt",
				FileType:    "txt",
				ChunkIndex:  i,
				TotalChunks: n,
				GroupID:     "group",
			},
		}
	}
	return chunks
}

func TestChromemStore_UpsertAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "7", testChunks(3)))

	count, err := store.Count(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Other agents see nothing.
	count, err = store.Count(ctx, "8")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestChromemStore_UpsertEmpty(t *testing.T) {
	store := newTestStore(t)

	err := store.Upsert(context.Background(), "7", nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyChunks)
}

func TestChromemStore_UpsertIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chunks := testChunks(3)
	require.NoError(t, store.Upsert(ctx, "7", chunks))
	require.NoError(t, store.Upsert(ctx, "7", chunks))

	count, err := store.Count(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestChromemStore_Query(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "7", testChunks(5)))

	results, err := store.Query(ctx, "7", "chunk body number 2", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Nearest first, with relevance the cosine similarity complement of
	// distance.
	for i, r := range results {
		assert.InDelta(t, 1-r.Distance, r.Relevance, 1e-6)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Relevance, r.Relevance)
		}
		assert.Equal(t, "doc.txt", r.Metadata.Filename)
		assert.Equal(t, 5, r.Metadata.TotalChunks)
	}
	assert.Equal(t, "chunk body number 2", results[0].Text)
}

func TestChromemStore_QueryCapsK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "7", testChunks(2)))

	// Asking for more results than stored chunks must not fail.
	results, err := store.Query(ctx, "7", "anything", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestChromemStore_QueryValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Query(ctx, "7", "", 5)
	assert.Error(t, err)

	_, err = store.Query(ctx, "7", "text", 0)
	assert.Error(t, err)
}

func TestChromemStore_QueryEmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Query(context.Background(), "99", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_DeleteCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "7", testChunks(3)))
	require.NoError(t, store.DeleteCollection(ctx, "7"))

	count, err := store.Count(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Querying after delete recreates an empty collection.
	results, err := store.Query(ctx, "7", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "agent_7", vectorstore.CollectionName("7"))
}
