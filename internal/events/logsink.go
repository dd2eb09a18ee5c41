package events

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes events to the structured log. It is the default sink when
// no external delivery is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink. A nil logger falls back to a no-op logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, e Event) {
	s.logger.Info("event",
		zap.String("type", string(e.Type)),
		zap.Uint("agent_id", e.AgentID),
		zap.Time("timestamp", e.Timestamp),
		zap.Any("data", e.Data),
	)
}
