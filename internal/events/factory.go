package events

import (
	"context"
	"fmt"

	"stream-escrow-go/internal/metrics"
	"stream-escrow-go/internal/models"

	"go.uber.org/zap"
)

const (
	BackendLog   = "log"
	BackendAMQP  = "amqp"
	BackendRedis = "redis"
)

// NewPublisher builds the configured sink. Remote sinks are wrapped in a
// circuit breaker.
func NewPublisher(ctx context.Context, cfg models.EventsConfig, rec *metrics.Recorder) (Publisher, error) {
	breaker := BreakerSettings{
		Name:             cfg.Backend,
		FailureThreshold: uint32(max(cfg.BreakerFailures, 0)),
		Timeout:          cfg.BreakerTimeout,
	}

	switch cfg.Backend {
	case "", BackendLog:
		return NewLogPublisher(zap.L()), nil

	case BackendAMQP:
		if cfg.AmqpUrl == "" {
			return nil, fmt.Errorf("AMQP_URL is required for the amqp events backend")
		}
		p, err := NewAMQPPublisher(cfg.AmqpUrl, cfg.AmqpExchange)
		if err != nil {
			return nil, err
		}
		return NewBreakerPublisher(p, breaker, rec), nil

	case BackendRedis:
		if cfg.RedisUrl == "" {
			return nil, fmt.Errorf("REDIS_URL is required for the redis events backend")
		}
		p, err := NewRedisPublisher(ctx, cfg.RedisUrl, cfg.RedisChannelPrefix)
		if err != nil {
			return nil, err
		}
		return NewBreakerPublisher(p, breaker, rec), nil

	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
