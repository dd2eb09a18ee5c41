package store

import "time"

// Agent is a configured chat agent.
type Agent struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"type:varchar(255);not null;index" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	Model        string    `gorm:"column:llm_model;type:varchar(100);not null" json:"llm_model"`
	SystemPrompt string    `gorm:"type:text;not null" json:"system_prompt"`
	Temperature  float64   `json:"temperature"`
	MaxTokens    int       `json:"max_tokens"`
	Personality  string    `gorm:"type:varchar(100)" json:"personality"`
	Guardrails   string    `gorm:"type:text" json:"guardrails"`
	TemplateName string    `gorm:"type:varchar(100)" json:"template_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Agent) TableName() string { return "agents" }

// Document records one ingested file in an agent's knowledge base.
// ContentHash is the SHA-256 of the raw bytes; (agent_id, content_hash) is
// unique so re-uploads of identical content are deduplicated.
type Document struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AgentID     uint      `gorm:"not null;index:uniq_doc_agent_hash,unique,priority:1" json:"-"`
	Filename    string    `gorm:"type:varchar(255);not null" json:"filename"`
	ContentHash string    `gorm:"type:varchar(64);not null;index:uniq_doc_agent_hash,unique,priority:2" json:"content_hash"`
	FileSize    int64     `gorm:"not null" json:"file_size"`
	FileType    string    `gorm:"type:varchar(50);not null" json:"file_type"`
	ChunkCount  int       `json:"chunk_count"`
	GroupID     string    `gorm:"type:varchar(36)" json:"-"`
	ProcessedAt time.Time `gorm:"autoCreateTime" json:"processed_at"`
}

func (Document) TableName() string { return "documents" }

// Conversation groups the messages of one chat thread. ConversationID is
// the public UUID handed to clients; ID is internal.
type Conversation struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AgentID        uint      `gorm:"not null;index" json:"-"`
	ConversationID string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"conversation_id"`
	Title          string    `gorm:"type:varchar(255)" json:"title"`
	Channel        string    `gorm:"column:source;type:varchar(20);not null" json:"source"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Message is one turn entry in a conversation.
type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ConversationID uint      `gorm:"not null;index" json:"-"`
	Role           string    `gorm:"type:varchar(20);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	TokensUsed     int       `json:"tokens_used,omitempty"`
	Timestamp      time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

func (Message) TableName() string { return "messages" }
