package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

const DefaultTopic = "booking-events"

// Kafka publishes booking events to a topic, keyed by booking ID so events of
// one booking stay ordered within a partition.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *Kafka) BookingCreated(ctx context.Context, b domain.Booking) error {
	return k.publish(ctx, newEvent(TypeBookingCreated, b, time.Now().UTC()))
}

func (k *Kafka) BookingCancelled(ctx context.Context, b domain.Booking) error {
	return k.publish(ctx, newEvent(TypeBookingCancelled, b, time.Now().UTC()))
}

func (k *Kafka) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.BookingID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
