package cache

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/goldwatch/goldwatch/pkg/models"
)

// Snapshots is the cache capability the reader consumes.
type Snapshots interface {
	Get(ctx context.Context) ([]byte, bool, error)
	Set(ctx context.Context, payload []byte) error
}

// RecordStore is the durable read capability the reader falls back to.
type RecordStore interface {
	FindAll(ctx context.Context) (models.RecordSet, error)
	FindByType(ctx context.Context, typ string) (*models.PriceRecord, error)
}

// Reader serves reads cache-aside: cache hit first, store read-through and
// cache population on miss. Cache failures degrade to direct store reads
// and are never surfaced to callers.
type Reader struct {
	cache  Snapshots
	store  RecordStore
	logger *zap.Logger
}

func NewReader(cache Snapshots, store RecordStore, logger *zap.Logger) *Reader {
	return &Reader{cache: cache, store: store, logger: logger}
}

// Read returns the full record set.
func (r *Reader) Read(ctx context.Context) (models.RecordSet, error) {
	if set, ok := r.fromCache(ctx); ok {
		return set, nil
	}

	set, err := r.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(set); err == nil {
		if err := r.cache.Set(ctx, payload); err != nil {
			r.logger.Warn("Failed to populate snapshot cache", zap.Error(err))
		}
	}
	return set, nil
}

// ReadOne returns the record for the given type. It scans the cached
// snapshot when one exists (single round trip) and only queries the store
// by key when the cache is empty.
func (r *Reader) ReadOne(ctx context.Context, typ string) (*models.PriceRecord, error) {
	if set, ok := r.fromCache(ctx); ok {
		if rec, found := set.Get(typ); found {
			return &rec, nil
		}
		return nil, models.ErrNotFound
	}
	return r.store.FindByType(ctx, typ)
}

func (r *Reader) fromCache(ctx context.Context) (models.RecordSet, bool) {
	payload, ok, err := r.cache.Get(ctx)
	if err != nil {
		r.logger.Warn("Snapshot cache unavailable, falling back to store", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var set models.RecordSet
	if err := json.Unmarshal(payload, &set); err != nil {
		r.logger.Warn("Corrupt snapshot cache entry, falling back to store", zap.Error(err))
		return nil, false
	}
	return set, true
}
