// Package events defines the lifecycle events emitted by the agent service
// and the Sink interface consumers implement. Emission is fire-and-forget;
// sink failures never affect the operation that produced the event.
package events

import (
	"context"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	TypeConversationStarted Type = "conversation.started"
	TypeMessageSent         Type = "message.sent"
	TypeDocumentUploaded    Type = "document.uploaded"
	TypeAgentUpdated        Type = "agent.updated"
)

// Event is one lifecycle notification.
type Event struct {
	Type      Type           `json:"event"`
	AgentID   uint           `json:"agent_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Sink receives events. Implementations must not block on delivery; slow
// consumers should buffer internally.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

// New builds an event stamped with the current time.
func New(t Type, agentID uint, data map[string]any) Event {
	return Event{Type: t, AgentID: agentID, Timestamp: time.Now().UTC(), Data: data}
}
