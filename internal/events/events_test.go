package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/agentforge/agentd/internal/events"
)

func TestNew(t *testing.T) {
	e := events.New(events.TypeDocumentUploaded, 7, map[string]any{"filename": "a.txt"})

	assert.Equal(t, events.TypeDocumentUploaded, e.Type)
	assert.EqualValues(t, 7, e.AgentID)
	assert.Equal(t, "a.txt", e.Data["filename"])
	assert.WithinDuration(t, time.Now().UTC(), e.Timestamp, time.Second)
}

func TestSinks(t *testing.T) {
	e := events.New(events.TypeMessageSent, 1, nil)

	// Neither sink may panic or block.
	events.NopSink{}.Emit(context.Background(), e)
	events.NewLogSink(zap.NewNop()).Emit(context.Background(), e)
	events.NewLogSink(nil).Emit(context.Background(), e)
}
