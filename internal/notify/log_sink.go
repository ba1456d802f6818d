package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes events to the application log. It is the default channel
// when no broker is configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Send(_ context.Context, ev Event) error {
	s.log.Info("notification",
		zap.String("recipient_id", ev.RecipientID.String()),
		zap.String("kind", string(ev.Kind)),
		zap.String("ref", ev.AppointmentRef),
		zap.String("message", ev.Message),
		zap.Time("occurred_at", ev.OccurredAt),
	)
	return nil
}
