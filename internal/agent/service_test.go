package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentforge/agentd/internal/agent"
	"github.com/agentforge/agentd/internal/chunker"
	"github.com/agentforge/agentd/internal/events"
	"github.com/agentforge/agentd/internal/llm"
	"github.com/agentforge/agentd/internal/store"
	"github.com/agentforge/agentd/internal/vectorstore"
)

// fakeVectors records calls and serves canned results.
type fakeVectors struct {
	upserts    [][]vectorstore.Chunk
	queries    []string
	deleted    []string
	results    []vectorstore.Result
	upsertErr  error
	queryCalls int
}

func (f *fakeVectors) Upsert(ctx context.Context, agentID string, chunks []vectorstore.Chunk) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, chunks)
	return nil
}

func (f *fakeVectors) Query(ctx context.Context, agentID string, text string, k int) ([]vectorstore.Result, error) {
	f.queryCalls++
	f.queries = append(f.queries, text)
	return f.results, nil
}

func (f *fakeVectors) DeleteCollection(ctx context.Context, agentID string) error {
	f.deleted = append(f.deleted, agentID)
	return nil
}

func (f *fakeVectors) Count(ctx context.Context, agentID string) (int, error) { return 0, nil }
func (f *fakeVectors) Close() error                                           { return nil }

// fakeBackend records the transcript it was handed.
type fakeBackend struct {
	transcript []llm.Message
	opts       llm.Options
	completion *llm.Completion
	err        error
}

func (f *fakeBackend) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Completion, error) {
	f.transcript = messages
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.completion, nil
}

type fakeSelector struct {
	backend *fakeBackend
	model   string
}

func (f *fakeSelector) BackendFor(model string) (llm.Backend, error) {
	f.model = model
	return f.backend, nil
}

// captureSink collects emitted events.
type captureSink struct {
	events []events.Event
}

func (s *captureSink) Emit(_ context.Context, e events.Event) {
	s.events = append(s.events, e)
}

type fixture struct {
	service  *agent.Service
	repo     *store.Repo
	vectors  *fakeVectors
	backend  *fakeBackend
	selector *fakeSelector
	sink     *captureSink
	agent    *store.Agent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo, err := store.OpenInMemory()
	require.NoError(t, err)

	vectors := &fakeVectors{}
	backend := &fakeBackend{completion: &llm.Completion{Content: "the answer", TotalTokens: 42}}
	selector := &fakeSelector{backend: backend}
	sink := &captureSink{}

	splitter, err := chunker.New(chunker.Config{ChunkSize: 100, Overlap: 20})
	require.NoError(t, err)

	service, err := agent.NewService(agent.Config{}, repo, vectors, selector, splitter, sink, zap.NewNop())
	require.NoError(t, err)

	a := &store.Agent{
		Name:         "support-bot",
		Model:        "gpt-4",
		SystemPrompt: "You are helpful.",
		Personality:  "friendly",
	}
	require.NoError(t, service.CreateAgent(context.Background(), a))

	return &fixture{
		service: service, repo: repo, vectors: vectors,
		backend: backend, selector: selector, sink: sink, agent: a,
	}
}

func TestCreateAgent_Defaults(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 0.7, f.agent.Temperature)
	assert.Equal(t, 1000, f.agent.MaxTokens)
	assert.Equal(t, "friendly", f.agent.Personality)
}

func TestChat_NewConversationWithoutDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.service.Chat(ctx, agent.ChatRequest{
		AgentID: f.agent.ID,
		Message: "What is the refund policy?",
	})
	require.NoError(t, err)

	assert.Equal(t, "the answer", resp.Response)
	require.NotNil(t, resp.TokensUsed)
	assert.Equal(t, 42, *resp.TokensUsed)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Nil(t, resp.Sources)

	// No documents means no retrieval.
	assert.Zero(t, f.vectors.queryCalls)

	// Transcript is the bare system prompt plus the question.
	require.Len(t, f.backend.transcript, 2)
	assert.Equal(t, llm.RoleSystem, f.backend.transcript[0].Role)
	assert.Equal(t, "You are helpful.", f.backend.transcript[0].Content)
	assert.Equal(t, llm.RoleUser, f.backend.transcript[1].Role)

	// Agent tuning flows through to the call options.
	assert.Equal(t, 0.7, f.backend.opts.Temperature)
	assert.Equal(t, 1000, f.backend.opts.MaxTokens)
	assert.Equal(t, "gpt-4", f.selector.model)

	// Exactly one user and one assistant message persisted, in order.
	conv, err := f.repo.GetConversation(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "What is the refund policy?", conv.Title)
	assert.Equal(t, agent.ChannelPlatform, conv.Channel)

	msgs, err := f.repo.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, 42, msgs[1].TokensUsed)

	// Conversation started and message sent events, in that order.
	require.Len(t, f.sink.events, 2)
	assert.Equal(t, events.TypeConversationStarted, f.sink.events[0].Type)
	assert.Equal(t, events.TypeMessageSent, f.sink.events[1].Type)
}

func TestChatResponse_JSONNulls(t *testing.T) {
	f := newFixture(t)

	// No retrieval and no usage reported: both fields serialize as
	// explicit nulls, not omitted keys.
	f.backend.completion = &llm.Completion{Content: "plain answer"}
	resp, err := f.service.Chat(context.Background(), agent.ChatRequest{
		AgentID: f.agent.ID,
		Message: "hello",
	})
	require.NoError(t, err)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sources":null`)
	assert.Contains(t, string(data), `"tokens_used":null`)
}

func TestChat_TitleTruncation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	long := strings.Repeat("q", 150)
	resp, err := f.service.Chat(ctx, agent.ChatRequest{AgentID: f.agent.ID, Message: long})
	require.NoError(t, err)

	conv, err := f.repo.GetConversation(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("q", 100), conv.Title)
}

func TestChat_WithDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.CreateDocument(ctx, &store.Document{
		AgentID: f.agent.ID, Filename: "guide.txt", ContentHash: "h1", FileSize: 10, FileType: "txt",
	}))
	f.vectors.results = []vectorstore.Result{{
		Text:      "Refunds are issued within 30 days.",
		Relevance: 0.91234,
		Distance:  0.08766,
		Metadata:  vectorstore.ChunkMetadata{Filename: "guide.txt", ChunkIndex: 0},
	}}

	resp, err := f.service.Chat(ctx, agent.ChatRequest{
		AgentID: f.agent.ID,
		Message: "What is the refund policy?",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.vectors.queryCalls)
	assert.Equal(t, []string{"What is the refund policy?"}, f.vectors.queries)

	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "guide.txt", resp.Sources[0].Filename)
	assert.Equal(t, 0.912, resp.Sources[0].Relevance)

	// Retrieval-aware transcript: system prompt with instructions, then
	// the context framing message, then the question.
	require.Len(t, f.backend.transcript, 3)
	assert.Contains(t, f.backend.transcript[0].Content, "IMPORTANT: You have access to a knowledge base")
	assert.Contains(t, f.backend.transcript[0].Content, "Personality: friendly")
	assert.Equal(t, llm.RoleSystem, f.backend.transcript[1].Role)
	assert.Contains(t, f.backend.transcript[1].Content, "Refunds are issued within 30 days.")
	assert.Equal(t, llm.RoleUser, f.backend.transcript[2].Role)
}

func TestChat_HistoryWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv := &store.Conversation{AgentID: f.agent.ID, ConversationID: "conv-1", Channel: "platform"}
	require.NoError(t, f.repo.CreateConversation(ctx, conv))
	for i := 0; i < 7; i++ {
		require.NoError(t, f.repo.AppendTurn(ctx, conv.ID,
			&store.Message{Role: "user", Content: fmt.Sprintf("question %d", i)},
			&store.Message{Role: "assistant", Content: fmt.Sprintf("answer %d", i)},
		))
	}

	_, err := f.service.Chat(ctx, agent.ChatRequest{
		AgentID:        f.agent.ID,
		Message:        "latest question",
		ConversationID: "conv-1",
	})
	require.NoError(t, err)

	// 14 stored messages, windowed to the last 10, between the system
	// prompt and the new question.
	transcript := f.backend.transcript
	require.Len(t, transcript, 12)
	assert.Equal(t, llm.RoleSystem, transcript[0].Role)
	assert.Equal(t, "question 2", transcript[1].Content)
	assert.Equal(t, "question 6", transcript[9].Content)
	assert.Equal(t, "answer 6", transcript[10].Content)
	assert.Equal(t, "latest question", transcript[11].Content)
}

func TestChat_ConversationNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Chat(context.Background(), agent.ChatRequest{
		AgentID:        f.agent.ID,
		Message:        "hello",
		ConversationID: "missing",
	})
	assert.ErrorIs(t, err, store.ErrConversationNotFound)
}

func TestChat_AgentNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Chat(context.Background(), agent.ChatRequest{AgentID: 999, Message: "hello"})
	assert.ErrorIs(t, err, store.ErrAgentNotFound)
}

func TestChat_BackendFailurePersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv := &store.Conversation{AgentID: f.agent.ID, ConversationID: "conv-1", Channel: "platform"}
	require.NoError(t, f.repo.CreateConversation(ctx, conv))

	f.backend.err = errors.New("provider unavailable")
	_, err := f.service.Chat(ctx, agent.ChatRequest{
		AgentID:        f.agent.ID,
		Message:        "hello",
		ConversationID: "conv-1",
	})
	require.Error(t, err)

	msgs, err := f.repo.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, f.sink.events)
}

func TestAddDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
	doc, created, err := f.service.AddDocument(ctx, f.agent.ID, "facts.txt", []byte(text))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "facts.txt", doc.Filename)
	assert.Equal(t, "txt", doc.FileType)
	assert.Greater(t, doc.ChunkCount, 1)
	assert.NotEmpty(t, doc.GroupID)

	require.Len(t, f.vectors.upserts, 1)
	chunks := f.vectors.upserts[0]
	require.Len(t, chunks, doc.ChunkCount)
	for i, c := range chunks {
		assert.Equal(t, fmt.Sprintf("%s_chunk_%d", doc.GroupID, i), c.ID)
		assert.Equal(t, "facts.txt", c.Metadata.Filename)
		assert.Equal(t, i, c.Metadata.ChunkIndex)
		assert.Equal(t, doc.ChunkCount, c.Metadata.TotalChunks)
		assert.Equal(t, doc.GroupID, c.Metadata.GroupID)
	}

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, events.TypeDocumentUploaded, f.sink.events[0].Type)
}

func TestAddDocument_DuplicateContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	content := []byte(strings.Repeat("Same content every time. ", 20))
	first, created, err := f.service.AddDocument(ctx, f.agent.ID, "v1.txt", content)
	require.NoError(t, err)
	assert.True(t, created)

	// Identical bytes under a new name return the existing record and
	// touch nothing.
	second, created, err := f.service.AddDocument(ctx, f.agent.ID, "v2.txt", content)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.vectors.upserts, 1)

	n, err := f.repo.CountDocuments(ctx, f.agent.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestAddDocument_UnsupportedType(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.service.AddDocument(context.Background(), f.agent.ID, "image.png", []byte("bytes"))
	require.Error(t, err)
	assert.Empty(t, f.vectors.upserts)
}

func TestDeleteDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.service.AddDocument(ctx, f.agent.ID, "facts.txt", []byte(strings.Repeat("fact ", 100)))
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteDocuments(ctx, f.agent.ID))
	assert.Len(t, f.vectors.deleted, 1)

	n, err := f.repo.CountDocuments(ctx, f.agent.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestDeleteAgent_RemovesCollection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.DeleteAgent(ctx, f.agent.ID))
	assert.Len(t, f.vectors.deleted, 1)
	_, err := f.service.GetAgent(ctx, f.agent.ID)
	assert.ErrorIs(t, err, store.ErrAgentNotFound)
}
