package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"

	"github.com/maisonceleste/api/internal/services"
)

// PubSubNotifier publishes order lifecycle events to a Pub/Sub topic. The
// mailer and back-office consumers subscribe to it to send confirmation
// emails and refresh dashboards.
type PubSubNotifier struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	eventID func() string
}

// NewPubSubNotifier constructs a Pub/Sub backed order event publisher.
func NewPubSubNotifier(topic *pubsub.Topic) (*PubSubNotifier, error) {
	if topic == nil {
		return nil, errors.New("pubsub notifier: topic is required")
	}
	return &PubSubNotifier{
		topic:   topic,
		marshal: json.Marshal,
		eventID: uuid.NewString,
	}, nil
}

var _ services.Notifier = (*PubSubNotifier)(nil)

// OrderEvent publishes the event on the configured topic.
func (n *PubSubNotifier) OrderEvent(ctx context.Context, event services.OrderEvent) error {
	if n == nil || n.topic == nil {
		return errors.New("pubsub notifier: not initialised")
	}

	data, err := n.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	// Subscribers deduplicate on eventId since Pub/Sub delivery is
	// at-least-once.
	attrs := make(map[string]string)
	setAttr(attrs, "eventId", n.eventID())
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "status", string(event.Status))

	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
