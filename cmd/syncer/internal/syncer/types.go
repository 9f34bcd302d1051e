package syncer

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/goldwatch/goldwatch/pkg/models"
)

// RecordStore is the durable store capability the pipeline consumes.
type RecordStore interface {
	FindAll(ctx context.Context) (models.RecordSet, error)
	Upsert(ctx context.Context, rec models.PriceRecord) error
}

// EventBus abstracts the pub/sub transport.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// SnapshotCache is the slice of the shared cache the persister needs.
type SnapshotCache interface {
	Invalidate(ctx context.Context) error
}

// KafkaReader abstracts the input stream
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}
