package feeder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/goldwatch/goldwatch/pkg/ingest"
	"github.com/goldwatch/goldwatch/pkg/models"
)

const fetchTimeout = 5 * time.Second

// Feeder periodically pulls a record set from its source and produces it
// onto the ingestion topic. It never diffs or dedupes; change detection is
// the publisher's job downstream.
type Feeder struct {
	logger   *zap.Logger
	source   Source
	writer   ingest.Writer
	interval time.Duration
}

func New(logger *zap.Logger, source Source, writer ingest.Writer, interval time.Duration) *Feeder {
	return &Feeder{
		logger:   logger,
		source:   source,
		writer:   writer,
		interval: interval,
	}
}

// Run fetches once immediately and then on every interval tick until ctx
// is cancelled.
func (f *Feeder) Run(ctx context.Context) {
	f.logger.Info("Feeder started", zap.Duration("interval", f.interval))

	f.cycle(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.cycle(ctx)
		}
	}
}

// cycle runs one fetch-and-produce pass. Every failure is logged and
// dropped; the next tick starts a fresh cycle.
func (f *Feeder) cycle(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	set, err := f.source.Fetch(fetchCtx)
	cancel()
	if err != nil {
		f.logger.Error("Upstream fetch failed", zap.Error(err))
		return
	}

	set, err = models.Normalize(set)
	if err != nil {
		f.logger.Error("Rejected malformed upstream payload", zap.Error(err))
		return
	}
	if len(set) == 0 {
		f.logger.Warn("Upstream returned an empty set, skipping")
		return
	}

	msg, err := ingest.Message(set)
	if err != nil {
		f.logger.Error("Failed to encode record set", zap.Error(err))
		return
	}

	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		f.logger.Error("Kafka write failed", zap.Error(err))
		return
	}

	f.logger.Debug("Produced record set", zap.Int("records", len(set)))
}
