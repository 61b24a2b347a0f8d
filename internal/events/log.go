package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes notifications to the structured log. It is the default
// sink when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.L()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.logger.Info("Event published",
		zap.String("topic", topic),
		zap.ByteString("payload", payload))
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
