package events

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	sdk "github.com/segmentio/kafka-go"
)

// batchTimeout caps how long a single event waits for its batch to fill.
const batchTimeout = 10 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...sdk.Message) error
	Close() error
}

// KafkaPublisher writes one message per event, keyed by place id so a
// place's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &sdk.Writer{
		Addr:         sdk.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: sdk.RequireAll,
		Balancer:     &sdk.Hash{},
		BatchTimeout: batchTimeout,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	serialized, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	err = p.writer.WriteMessages(ctx, sdk.Message{
		Key:   []byte(ev.PlaceID),
		Value: serialized,
		Headers: []sdk.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("write event %s: %w", ev.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
