package syncer

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/goldwatch/goldwatch/pkg/bus"
	"github.com/goldwatch/goldwatch/pkg/models"
)

// Publisher is the change gate of the pipeline. It diffs every incoming
// record set against the durable store and emits it on the persistence and
// broadcast channels only when something actually changed. It never writes
// the store or the cache itself; persistence is the subscriber's job, which
// keeps a single decision path between detection and durable writes.
type Publisher struct {
	store  RecordStore
	bus    EventBus
	logger *zap.Logger
}

func NewPublisher(store RecordStore, b EventBus, logger *zap.Logger) *Publisher {
	return &Publisher{store: store, bus: b, logger: logger}
}

// Ingest runs one change-gated propagation. It reports whether the set was
// emitted. Delivery to the two channels is independent and at-least-once:
// a failed publish is returned for logging but not rolled back, the next
// fetch cycle re-diffs against the store and re-propagates.
func (p *Publisher) Ingest(ctx context.Context, incoming models.RecordSet) (bool, error) {
	current, err := p.store.FindAll(ctx)
	if err != nil {
		return false, err
	}

	if !models.Changed(incoming, current) {
		p.logger.Debug("No price changes, skipping publish")
		return false, nil
	}

	payload, err := json.Marshal(incoming)
	if err != nil {
		return false, err
	}

	p.logger.Info("Publishing changed record set", zap.Int("records", len(incoming)))

	var errs []error
	for _, channel := range []string{bus.ChannelPersist, bus.ChannelBroadcast} {
		if err := p.bus.Publish(ctx, channel, payload); err != nil {
			p.logger.Error("Channel publish failed", zap.String("channel", channel), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return true, errors.Join(errs...)
}

// Run consumes record sets from Kafka and feeds them through Ingest until
// ctx is cancelled.
func (p *Publisher) Run(ctx context.Context, reader KafkaReader) {
	p.logger.Info("Publisher started")
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			p.logger.Error("Kafka read error", zap.Error(err))
			continue
		}

		var set models.RecordSet
		if err := json.Unmarshal(m.Value, &set); err != nil {
			p.logger.Error("Malformed record set message", zap.Error(err))
			continue
		}
		set, err = models.Normalize(set)
		if err != nil {
			p.logger.Error("Rejected invalid record set", zap.Error(err))
			continue
		}

		if _, err := p.Ingest(ctx, set); err != nil {
			p.logger.Error("Propagation incomplete", zap.Error(err))
		}
	}
}
