package syncer

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/goldwatch/goldwatch/pkg/models"
)

// Persister applies record sets from the persistence channel to the
// durable store and invalidates the shared cache afterwards. Channel
// delivery is at-least-once, so every delivery is re-checked against the
// store before writing; duplicates become no-ops here rather than
// redundant writes.
type Persister struct {
	store  RecordStore
	cache  SnapshotCache
	logger *zap.Logger
}

func NewPersister(store RecordStore, cache SnapshotCache, logger *zap.Logger) *Persister {
	return &Persister{store: store, cache: cache, logger: logger}
}

// HandleUpdate processes one persistence-channel delivery. Invalidation
// happens strictly after all upserts succeed; on partial failure the old
// cache entry stays in place (stale but consistent with *some* past store
// state) and the next propagated update retries the writes.
func (p *Persister) HandleUpdate(ctx context.Context, payload []byte) {
	var set models.RecordSet
	if err := json.Unmarshal(payload, &set); err != nil {
		p.logger.Error("Malformed persistence payload", zap.Error(err))
		return
	}
	set, err := models.Normalize(set)
	if err != nil {
		p.logger.Error("Rejected invalid persistence payload", zap.Error(err))
		return
	}

	current, err := p.store.FindAll(ctx)
	if err != nil {
		p.logger.Error("Failed to read store for re-check", zap.Error(err))
		return
	}
	if !models.Changed(set, current) {
		p.logger.Debug("Store already current, skipping duplicate delivery")
		return
	}

	for _, rec := range set {
		if err := p.store.Upsert(ctx, rec); err != nil {
			p.logger.Error("Upsert failed, keeping cache entry",
				zap.String("type", rec.Type), zap.Error(err))
			return
		}
	}

	if err := p.cache.Invalidate(ctx); err != nil {
		p.logger.Error("Cache invalidation failed", zap.Error(err))
		return
	}

	p.logger.Info("Persisted price update and invalidated cache", zap.Int("records", len(set)))
}
