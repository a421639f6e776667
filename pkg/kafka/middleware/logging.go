package kafka_middleware

import (
	"context"
	"time"

	"mentorly/pkg/kafka"
	"mentorly/pkg/logger"
)

// LoggingProducerMiddleware logs every publish with its outcome and latency.
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		duration := time.Since(start)

		if err != nil {
			log.Error("Failed to publish message",
				"key", msg.Key,
				"event_id", msg.GetEventID(),
				"event_type", msg.GetEventType(),
				"duration", duration,
				"error", err,
			)
		} else {
			log.Debug("Published message",
				"key", msg.Key,
				"event_id", msg.GetEventID(),
				"event_type", msg.GetEventType(),
				"duration", duration,
			)
		}

		return err
	}
}
