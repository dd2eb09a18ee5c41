package agent

import (
	"context"
	"errors"

	"github.com/agentforge/agentd/internal/events"
	"github.com/agentforge/agentd/internal/store"
)

// Agent configuration defaults applied at creation.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
	defaultPersonality = "professional"
)

// CreateAgent validates and persists a new agent, applying configuration
// defaults for unset tuning fields.
func (s *Service) CreateAgent(ctx context.Context, a *store.Agent) error {
	if a.Name == "" {
		return errors.New("agent name is required")
	}
	if a.Model == "" {
		return errors.New("agent model is required")
	}
	if a.Temperature == 0 {
		a.Temperature = defaultTemperature
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = defaultMaxTokens
	}
	if a.Personality == "" {
		a.Personality = defaultPersonality
	}
	return s.repo.CreateAgent(ctx, a)
}

// GetAgent returns one agent.
func (s *Service) GetAgent(ctx context.Context, id uint) (*store.Agent, error) {
	return s.repo.GetAgent(ctx, id)
}

// ListAgents returns all agents, newest first.
func (s *Service) ListAgents(ctx context.Context) ([]store.Agent, error) {
	return s.repo.ListAgents(ctx)
}

// UpdateAgent persists changes to an existing agent and emits an
// agent.updated event.
func (s *Service) UpdateAgent(ctx context.Context, a *store.Agent) error {
	if _, err := s.repo.GetAgent(ctx, a.ID); err != nil {
		return err
	}
	if err := s.repo.UpdateAgent(ctx, a); err != nil {
		return err
	}
	s.sink.Emit(ctx, events.New(events.TypeAgentUpdated, a.ID, nil))
	return nil
}

// DeleteAgent removes the agent, its vector collection, and all dependent
// records.
func (s *Service) DeleteAgent(ctx context.Context, id uint) error {
	if _, err := s.repo.GetAgent(ctx, id); err != nil {
		return err
	}
	if err := s.vectors.DeleteCollection(ctx, collectionID(id)); err != nil {
		return err
	}
	return s.repo.DeleteAgent(ctx, id)
}

// AgentCounts returns the agent's document and conversation counts.
func (s *Service) AgentCounts(ctx context.Context, agentID uint) (documents, conversations int64, err error) {
	documents, err = s.repo.CountDocuments(ctx, agentID)
	if err != nil {
		return 0, 0, err
	}
	conversations, err = s.repo.CountConversations(ctx, agentID)
	if err != nil {
		return 0, 0, err
	}
	return documents, conversations, nil
}

// ConversationSummary pairs a conversation with its message count.
type ConversationSummary struct {
	store.Conversation
	MessageCount int64 `json:"message_count"`
}

// ListConversations returns the agent's conversations, most recently
// updated first, optionally filtered by channel.
func (s *Service) ListConversations(ctx context.Context, agentID uint, channel string) ([]ConversationSummary, error) {
	if _, err := s.repo.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}
	convs, err := s.repo.ListConversations(ctx, agentID, channel)
	if err != nil {
		return nil, err
	}
	summaries := make([]ConversationSummary, len(convs))
	for i, c := range convs {
		n, err := s.repo.CountMessages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		summaries[i] = ConversationSummary{Conversation: c, MessageCount: n}
	}
	return summaries, nil
}

// ConversationMessages returns all messages of a conversation by its public
// ID, oldest first.
func (s *Service) ConversationMessages(ctx context.Context, conversationID string) ([]store.Message, error) {
	c, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, c.ID)
}
