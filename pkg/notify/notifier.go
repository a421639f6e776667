package notify

import (
	"context"
	"time"

	"mentorly/pkg/kafka"
	"mentorly/pkg/logger"
)

// ProfileNotifier announces that a user's public profile counters may have
// changed (a booking was requested, accepted, or rejected against them).
// Implementations must never fail the booking flow: delivery is best effort.
type ProfileNotifier interface {
	NotifyProfileChanged(userID string)
}

const (
	eventTypeProfileChanged = "profile.changed"
	publishTimeout          = 5 * time.Second
)

type profileChangedEvent struct {
	UserID     string `json:"user_id"`
	OccurredAt int64  `json:"occurred_at"`
}

// KafkaNotifier publishes profile-changed events to a Kafka topic.
type KafkaNotifier struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

func NewKafkaNotifier(producer *kafka.Producer, source string, log *logger.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		source:   source,
		log:      log,
	}
}

// NotifyProfileChanged publishes asynchronously with its own timeout. The
// caller has usually already committed the booking transaction, so errors
// are logged and dropped rather than surfaced.
func (n *KafkaNotifier) NotifyProfileChanged(userID string) {
	if userID == "" {
		return
	}

	msg := kafka.NewMessage().
		WithKey(userID).
		WithEventType(eventTypeProfileChanged).
		WithSource(n.source).
		WithValue(profileChangedEvent{
			UserID:     userID,
			OccurredAt: time.Now().Unix(),
		}).
		Build()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := n.producer.Publish(ctx, msg); err != nil {
			n.log.Error("Failed to publish profile-changed event",
				"user_id", userID,
				"event_id", msg.GetEventID(),
				"error", err,
			)
		}
	}()
}

// NopNotifier drops every notification. Used in tests and in deployments
// without a broker.
type NopNotifier struct{}

func (NopNotifier) NotifyProfileChanged(string) {}
