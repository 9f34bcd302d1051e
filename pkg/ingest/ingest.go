package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/goldwatch/goldwatch/pkg/models"
)

// MessageKey is the Kafka key used for every record set. A constant key
// pins all sets to one partition so they reach the publisher in fetch
// order.
const MessageKey = "gold-prices"

// Writer abstracts the Kafka producer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message builds the Kafka message carrying one full record set.
func Message(set models.RecordSet) (kafka.Message, error) {
	payload, err := json.Marshal(set)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode record set: %w", err)
	}
	return kafka.Message{Key: []byte(MessageKey), Value: payload}, nil
}
