package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repo provides database access for agents and their data.
type Repo struct {
	db *gorm.DB
}

// CreateAgent inserts a new agent.
func (r *Repo) CreateAgent(ctx context.Context, a *Agent) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// GetAgent returns the agent with the given ID.
func (r *Repo) GetAgent(ctx context.Context, id uint) (*Agent, error) {
	var a Agent
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListAgents returns all agents, newest first.
func (r *Repo) ListAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

// UpdateAgent saves the full agent record.
func (r *Repo) UpdateAgent(ctx context.Context, a *Agent) error {
	return r.db.WithContext(ctx).Save(a).Error
}

// DeleteAgent removes the agent and everything under it: documents,
// conversations, and their messages, in one transaction.
func (r *Repo) DeleteAgent(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Agent{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAgentNotFound
		}
		if err := tx.Where("agent_id = ?", id).Delete(&Document{}).Error; err != nil {
			return err
		}
		var convIDs []uint
		if err := tx.Model(&Conversation{}).Where("agent_id = ?", id).
			Pluck("id", &convIDs).Error; err != nil {
			return err
		}
		if len(convIDs) > 0 {
			if err := tx.Where("conversation_id IN ?", convIDs).Delete(&Message{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("agent_id = ?", id).Delete(&Conversation{}).Error
	})
}

// CreateDocument inserts a document record.
func (r *Repo) CreateDocument(ctx context.Context, d *Document) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// FindDocumentByHash returns the agent's document with the given content
// hash, or ErrDocumentNotFound.
func (r *Repo) FindDocumentByHash(ctx context.Context, agentID uint, hash string) (*Document, error) {
	var d Document
	err := r.db.WithContext(ctx).
		Where("agent_id = ? AND content_hash = ?", agentID, hash).
		First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListDocuments returns the agent's documents, newest first.
func (r *Repo) ListDocuments(ctx context.Context, agentID uint) ([]Document, error) {
	var docs []Document
	err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("processed_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// CountDocuments returns the number of documents in the agent's knowledge
// base.
func (r *Repo) CountDocuments(ctx context.Context, agentID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Document{}).
		Where("agent_id = ?", agentID).
		Count(&n).Error
	return n, err
}

// DeleteDocuments removes all of the agent's document records.
func (r *Repo) DeleteDocuments(ctx context.Context, agentID uint) error {
	return r.db.WithContext(ctx).Where("agent_id = ?", agentID).Delete(&Document{}).Error
}

// CountConversations returns the number of conversations for the agent.
func (r *Repo) CountConversations(ctx context.Context, agentID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Conversation{}).
		Where("agent_id = ?", agentID).
		Count(&n).Error
	return n, err
}

// CreateConversation inserts a conversation.
func (r *Repo) CreateConversation(ctx context.Context, c *Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// GetConversation returns the conversation with the given public UUID, or
// ErrConversationNotFound.
func (r *Repo) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var c Conversation
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListConversations returns the agent's conversations, most recently
// updated first. A non-empty channel filters to that channel.
func (r *Repo) ListConversations(ctx context.Context, agentID uint, channel string) ([]Conversation, error) {
	q := r.db.WithContext(ctx).Where("agent_id = ?", agentID)
	if channel != "" {
		q = q.Where("source = ?", channel)
	}
	var convs []Conversation
	if err := q.Order("updated_at DESC").Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

// ListMessages returns all messages in the conversation, oldest first.
func (r *Repo) ListMessages(ctx context.Context, conversationID uint) ([]Message, error) {
	var msgs []Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// CountMessages returns the number of messages in the conversation.
func (r *Repo) CountMessages(ctx context.Context, conversationID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&n).Error
	return n, err
}

// AppendTurn persists one user message and the assistant reply as a single
// transaction and touches the conversation's updated_at. Nothing is written
// if any step fails. The two inserts can land on the same stored timestamp;
// the assigned ids keep the user message before the reply, and ListMessages
// breaks timestamp ties by id.
func (r *Repo) AppendTurn(ctx context.Context, conversationID uint, user, assistant *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user.ConversationID = conversationID
		assistant.ConversationID = conversationID
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if err := tx.Create(assistant).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now()).Error
	})
}
