package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/agentd/internal/store"
)

func newTestRepo(t *testing.T) *store.Repo {
	t.Helper()
	repo, err := store.OpenInMemory()
	require.NoError(t, err)
	return repo
}

func newTestAgent(t *testing.T, repo *store.Repo) *store.Agent {
	t.Helper()
	a := &store.Agent{
		Name:         "support-bot",
		Model:        "gpt-4",
		SystemPrompt: "You are helpful.",
		Temperature:  0.7,
		MaxTokens:    1000,
		Personality:  "professional",
	}
	require.NoError(t, repo.CreateAgent(context.Background(), a))
	return a
}

func TestAgentCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := newTestAgent(t, repo)
	require.NotZero(t, a.ID)

	got, err := repo.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "support-bot", got.Name)
	assert.Equal(t, "gpt-4", got.Model)

	got.Name = "renamed-bot"
	require.NoError(t, repo.UpdateAgent(ctx, got))
	got, err = repo.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed-bot", got.Name)

	agents, err := repo.ListAgents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 1)

	require.NoError(t, repo.DeleteAgent(ctx, a.ID))
	_, err = repo.GetAgent(ctx, a.ID)
	assert.ErrorIs(t, err, store.ErrAgentNotFound)
}

func TestGetAgent_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetAgent(context.Background(), 999)
	assert.ErrorIs(t, err, store.ErrAgentNotFound)

	err = repo.DeleteAgent(context.Background(), 999)
	assert.ErrorIs(t, err, store.ErrAgentNotFound)
}

func TestDocuments(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := newTestAgent(t, repo)

	doc := &store.Document{
		AgentID:     a.ID,
		Filename:    "guide.pdf",
		ContentHash: "abc123",
		FileSize:    2048,
		FileType:    "pdf",
		ChunkCount:  4,
		GroupID:     "group-1",
	}
	require.NoError(t, repo.CreateDocument(ctx, doc))

	found, err := repo.FindDocumentByHash(ctx, a.ID, "abc123")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)

	_, err = repo.FindDocumentByHash(ctx, a.ID, "missing")
	assert.ErrorIs(t, err, store.ErrDocumentNotFound)

	// Same hash under a different agent is a different document.
	_, err = repo.FindDocumentByHash(ctx, a.ID+1, "abc123")
	assert.ErrorIs(t, err, store.ErrDocumentNotFound)

	n, err := repo.CountDocuments(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	docs, err := repo.ListDocuments(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "guide.pdf", docs[0].Filename)

	require.NoError(t, repo.DeleteDocuments(ctx, a.ID))
	n, err = repo.CountDocuments(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestDocuments_DuplicateHashRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := newTestAgent(t, repo)

	first := &store.Document{AgentID: a.ID, Filename: "a.txt", ContentHash: "h1", FileSize: 1, FileType: "txt"}
	require.NoError(t, repo.CreateDocument(ctx, first))

	dup := &store.Document{AgentID: a.ID, Filename: "b.txt", ContentHash: "h1", FileSize: 1, FileType: "txt"}
	assert.Error(t, repo.CreateDocument(ctx, dup))
}

func TestConversationsAndMessages(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := newTestAgent(t, repo)

	conv := &store.Conversation{
		AgentID:        a.ID,
		ConversationID: "conv-uuid-1",
		Title:          "What is the refund policy?",
		Channel:        "platform",
	}
	require.NoError(t, repo.CreateConversation(ctx, conv))

	got, err := repo.GetConversation(ctx, "conv-uuid-1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = repo.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrConversationNotFound)

	err = repo.AppendTurn(ctx, conv.ID,
		&store.Message{Role: "user", Content: "What is the refund policy?"},
		&store.Message{Role: "assistant", Content: "Refunds within 30 days.", TokensUsed: 42},
	)
	require.NoError(t, err)

	msgs, err := repo.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, 42, msgs[1].TokensUsed)

	n, err := repo.CountMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestAppendTurn_ReplayOrderStable(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := newTestAgent(t, repo)

	conv := &store.Conversation{AgentID: a.ID, ConversationID: "conv-uuid-2", Channel: "platform"}
	require.NoError(t, repo.CreateConversation(ctx, conv))

	// Back-to-back turns can share a stored timestamp; replay order must
	// still be user before assistant, oldest turn first.
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.AppendTurn(ctx, conv.ID,
			&store.Message{Role: "user", Content: "q"},
			&store.Message{Role: "assistant", Content: "a"},
		))
	}

	msgs, err := repo.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 6)
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, "user", m.Role)
		} else {
			assert.Equal(t, "assistant", m.Role)
		}
		if i > 0 {
			assert.Greater(t, m.ID, msgs[i-1].ID)
			assert.False(t, m.Timestamp.Before(msgs[i-1].Timestamp))
		}
	}
}

func TestListConversations_ChannelFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := newTestAgent(t, repo)

	for i, channel := range []string{"platform", "widget", "platform"} {
		require.NoError(t, repo.CreateConversation(ctx, &store.Conversation{
			AgentID:        a.ID,
			ConversationID: string(rune('a' + i)),
			Channel:        channel,
		}))
	}

	all, err := repo.ListConversations(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	platform, err := repo.ListConversations(ctx, a.ID, "platform")
	require.NoError(t, err)
	assert.Len(t, platform, 2)

	widget, err := repo.ListConversations(ctx, a.ID, "widget")
	require.NoError(t, err)
	assert.Len(t, widget, 1)
}

func TestDeleteAgent_Cascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := newTestAgent(t, repo)

	require.NoError(t, repo.CreateDocument(ctx, &store.Document{
		AgentID: a.ID, Filename: "a.txt", ContentHash: "h1", FileSize: 1, FileType: "txt",
	}))
	conv := &store.Conversation{AgentID: a.ID, ConversationID: "c1", Channel: "platform"}
	require.NoError(t, repo.CreateConversation(ctx, conv))
	require.NoError(t, repo.AppendTurn(ctx, conv.ID,
		&store.Message{Role: "user", Content: "hi"},
		&store.Message{Role: "assistant", Content: "hello"},
	))

	require.NoError(t, repo.DeleteAgent(ctx, a.ID))

	n, err := repo.CountDocuments(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	_, err = repo.GetConversation(ctx, "c1")
	assert.ErrorIs(t, err, store.ErrConversationNotFound)

	msgs, err := repo.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
