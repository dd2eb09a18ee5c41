// Package agent orchestrates the chat pipeline: agent lifecycle, document
// ingestion into the vector index, and retrieval-augmented chat turns.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/agentforge/agentd/internal/chunker"
	"github.com/agentforge/agentd/internal/events"
	"github.com/agentforge/agentd/internal/llm"
	"github.com/agentforge/agentd/internal/rag"
	"github.com/agentforge/agentd/internal/store"
	"github.com/agentforge/agentd/internal/vectorstore"
)

// tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("agentd.agent")

// titleLimit caps auto-generated conversation titles.
const titleLimit = 100

// Recognized conversation channels.
const (
	ChannelPlatform  = "platform"
	ChannelPublicAPI = "public_api"
	ChannelWidget    = "widget"
)

// Store is the persistence surface the service depends on, implemented by
// *store.Repo.
type Store interface {
	CreateAgent(ctx context.Context, a *store.Agent) error
	GetAgent(ctx context.Context, id uint) (*store.Agent, error)
	ListAgents(ctx context.Context) ([]store.Agent, error)
	UpdateAgent(ctx context.Context, a *store.Agent) error
	DeleteAgent(ctx context.Context, id uint) error

	CreateDocument(ctx context.Context, d *store.Document) error
	FindDocumentByHash(ctx context.Context, agentID uint, hash string) (*store.Document, error)
	ListDocuments(ctx context.Context, agentID uint) ([]store.Document, error)
	CountDocuments(ctx context.Context, agentID uint) (int64, error)
	CountConversations(ctx context.Context, agentID uint) (int64, error)
	CountMessages(ctx context.Context, conversationID uint) (int64, error)
	DeleteDocuments(ctx context.Context, agentID uint) error

	CreateConversation(ctx context.Context, c *store.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*store.Conversation, error)
	ListConversations(ctx context.Context, agentID uint, channel string) ([]store.Conversation, error)
	ListMessages(ctx context.Context, conversationID uint) ([]store.Message, error)
	AppendTurn(ctx context.Context, conversationID uint, user, assistant *store.Message) error
}

// BackendSelector resolves a model name to a completion backend.
type BackendSelector interface {
	BackendFor(model string) (llm.Backend, error)
}

// Config tunes retrieval and context assembly.
type Config struct {
	// TopK is the number of chunks retrieved per chat turn. Default: 5.
	TopK int

	// MaxContextTokens bounds the assembled context block. Default: 2000.
	MaxContextTokens int

	// HistoryWindow is the number of recent messages replayed to the
	// model. Default: 10.
	HistoryWindow int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.MaxContextTokens == 0 {
		c.MaxContextTokens = 2000
	}
	if c.HistoryWindow == 0 {
		c.HistoryWindow = 10
	}
}

// Service implements the agent chat pipeline.
type Service struct {
	config   Config
	repo     Store
	vectors  vectorstore.Store
	backends BackendSelector
	splitter *chunker.Chunker
	sink     events.Sink
	logger   *zap.Logger
}

// NewService creates a Service. repo, vectors, backends, and splitter are
// required; a nil sink discards events and a nil logger logs nothing.
func NewService(cfg Config, repo Store, vectors vectorstore.Store, backends BackendSelector, splitter *chunker.Chunker, sink events.Sink, logger *zap.Logger) (*Service, error) {
	if repo == nil || vectors == nil || backends == nil || splitter == nil {
		return nil, errors.New("agent: repo, vectors, backends, and splitter are required")
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	return &Service{
		config:   cfg,
		repo:     repo,
		vectors:  vectors,
		backends: backends,
		splitter: splitter,
		sink:     sink,
		logger:   logger,
	}, nil
}

// ChatRequest is one user turn.
type ChatRequest struct {
	AgentID uint

	// Message is the user's question.
	Message string

	// ConversationID continues an existing conversation when set; when
	// empty a new conversation is created.
	ConversationID string

	// Channel records where the turn originated. Defaults to "platform".
	Channel string
}

// ChatResponse is the outcome of one chat turn. Sources is nil when no
// retrieval ran and TokensUsed is nil when the backend reported no usage;
// both serialize as explicit JSON nulls.
type ChatResponse struct {
	Response       string       `json:"response"`
	ConversationID string       `json:"conversation_id"`
	TokensUsed     *int         `json:"tokens_used"`
	Sources        []rag.Source `json:"sources"`
}

// Chat runs one full turn: resolve the agent and conversation, retrieve
// context when the agent has documents, replay recent history, call the
// model, and persist the user and assistant messages together. A backend
// failure persists nothing beyond the conversation record itself.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "Service.Chat")
	defer span.End()
	span.SetAttributes(attribute.Int("agent_id", int(req.AgentID)))

	if req.Message == "" {
		return nil, errors.New("message is required")
	}

	agent, err := s.repo.GetAgent(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}

	conversation, created, err := s.resolveConversation(ctx, agent.ID, req)
	if err != nil {
		return nil, err
	}

	docCount, err := s.repo.CountDocuments(ctx, agent.ID)
	if err != nil {
		return nil, err
	}

	var (
		contextBlock string
		sources      []rag.Source
	)
	if docCount > 0 {
		results, err := s.vectors.Query(ctx, collectionID(agent.ID), req.Message, s.config.TopK)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("retrieving context: %w", err)
		}
		contextBlock, sources = rag.BuildContext(results, s.config.MaxContextTokens)
		s.logger.Info("retrieved context",
			zap.Uint("agent_id", agent.ID),
			zap.Int("chunks", len(results)),
		)
	}

	history, err := s.repo.ListMessages(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}

	backend, err := s.backends.BackendFor(agent.Model)
	if err != nil {
		return nil, err
	}

	messages := s.buildTranscript(agent, contextBlock, history, req.Message)

	completion, err := backend.Complete(ctx, messages, llm.Options{
		Temperature: agent.Temperature,
		MaxTokens:   agent.MaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	userMsg := &store.Message{Role: string(llm.RoleUser), Content: req.Message}
	assistantMsg := &store.Message{
		Role:       string(llm.RoleAssistant),
		Content:    completion.Content,
		TokensUsed: completion.TotalTokens,
	}
	if err := s.repo.AppendTurn(ctx, conversation.ID, userMsg, assistantMsg); err != nil {
		return nil, fmt.Errorf("persisting turn: %w", err)
	}

	if created {
		s.sink.Emit(ctx, events.New(events.TypeConversationStarted, agent.ID, map[string]any{
			"conversation_id": conversation.ConversationID,
			"source":          conversation.Channel,
		}))
	}
	s.sink.Emit(ctx, events.New(events.TypeMessageSent, agent.ID, map[string]any{
		"conversation_id": conversation.ConversationID,
		"tokens_used":     completion.TotalTokens,
	}))

	var tokensUsed *int
	if completion.TotalTokens > 0 {
		tokensUsed = &completion.TotalTokens
	}

	span.SetStatus(codes.Ok, "success")
	return &ChatResponse{
		Response:       completion.Content,
		ConversationID: conversation.ConversationID,
		TokensUsed:     tokensUsed,
		Sources:        sources,
	}, nil
}

// resolveConversation loads the requested conversation or starts a new one
// titled with the opening message.
func (s *Service) resolveConversation(ctx context.Context, agentID uint, req ChatRequest) (*store.Conversation, bool, error) {
	if req.ConversationID != "" {
		c, err := s.repo.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, false, err
		}
		return c, false, nil
	}

	channel := req.Channel
	if channel == "" {
		channel = ChannelPlatform
	}
	c := &store.Conversation{
		AgentID:        agentID,
		ConversationID: uuid.NewString(),
		Title:          truncateTitle(req.Message),
		Channel:        channel,
	}
	if err := s.repo.CreateConversation(ctx, c); err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// buildTranscript assembles the message sequence for the model. With
// context: the retrieval-aware system prompt, recent history, the context
// framing message, then the question. Without: the agent's system prompt,
// recent history, then the question.
func (s *Service) buildTranscript(agent *store.Agent, contextBlock string, history []store.Message, question string) []llm.Message {
	var head, tail []llm.Message
	if contextBlock != "" {
		head = []llm.Message{{
			Role:    llm.RoleSystem,
			Content: rag.SystemPrompt(agent.SystemPrompt, agent.Personality, agent.Guardrails),
		}}
		tail = []llm.Message{
			{Role: llm.RoleSystem, Content: rag.ContextMessage(contextBlock)},
			{Role: llm.RoleUser, Content: question},
		}
	} else {
		head = []llm.Message{{Role: llm.RoleSystem, Content: agent.SystemPrompt}}
		tail = []llm.Message{{Role: llm.RoleUser, Content: question}}
	}

	recent := history
	if len(recent) > s.config.HistoryWindow {
		recent = recent[len(recent)-s.config.HistoryWindow:]
	}

	messages := make([]llm.Message, 0, len(head)+len(recent)+len(tail))
	messages = append(messages, head...)
	for _, m := range recent {
		switch m.Role {
		case string(llm.RoleUser):
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case string(llm.RoleAssistant):
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	return append(messages, tail...)
}

func truncateTitle(message string) string {
	runes := []rune(message)
	if len(runes) > titleLimit {
		return string(runes[:titleLimit])
	}
	return message
}

func collectionID(agentID uint) string {
	return strconv.FormatUint(uint64(agentID), 10)
}
