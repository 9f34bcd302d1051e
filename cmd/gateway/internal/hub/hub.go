package hub

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/goldwatch/goldwatch/cmd/gateway/internal/protocol"
	"github.com/goldwatch/goldwatch/pkg/models"
)

type ClientInterface interface {
	ID() string
	SendBytes(b []byte)
	Close()
}

// SnapshotReader supplies the current record set for cold starts,
// typically the cache-aside reader backed by Redis and the durable store.
type SnapshotReader interface {
	Read(ctx context.Context) (models.RecordSet, error)
}

// Hub pushes price updates to every connected client. There is a single
// feed, so there are no per-symbol subscriptions: connecting is subscribing.
type Hub struct {
	clients map[ClientInterface]bool

	// Last record set pushed to clients. nil until the first update or
	// cold-start read arrives.
	snapshot models.RecordSet

	reader SnapshotReader
	logger *zap.Logger
	mu     sync.RWMutex
}

func NewHub(reader SnapshotReader, logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[ClientInterface]bool),
		reader:  reader,
		logger:  logger,
	}
}

// Register adds a client and sends it the current snapshot. When the hub
// has not seen any data yet it falls back to the reader asynchronously so
// a slow store cannot block the connection handshake.
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	h.clients[client] = true
	snapshot := h.snapshot
	h.mu.Unlock()

	if snapshot != nil {
		h.sendSnapshot(client, snapshot)
		return
	}

	go func() {
		set, err := h.reader.Read(context.Background())
		if err != nil {
			h.logger.Warn("Cold start read failed, client starts empty",
				zap.String("client", client.ID()), zap.Error(err))
			return
		}

		h.mu.Lock()
		if h.snapshot == nil {
			h.snapshot = set
		}
		// A live update may have landed while we were reading. Prefer it.
		set = h.snapshot
		h.mu.Unlock()

		h.sendSnapshot(client, set)
	}()
}

func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client] {
		delete(h.clients, client)
		client.Close()
	}
}

// HandleUpdate ingests a published record set. Sets identical to the
// current snapshot are dropped so redelivered messages never wake clients.
func (h *Hub) HandleUpdate(payload []byte) {
	var incoming models.RecordSet
	if err := json.Unmarshal(payload, &incoming); err != nil {
		h.logger.Error("Dropping malformed price update", zap.Error(err))
		return
	}
	incoming, err := models.Normalize(incoming)
	if err != nil {
		h.logger.Error("Dropping invalid price update", zap.Error(err))
		return
	}

	h.mu.Lock()
	if !models.Changed(incoming, h.snapshot) {
		h.mu.Unlock()
		h.logger.Debug("Suppressing unchanged price update")
		return
	}
	h.snapshot = incoming

	targets := make([]ClientInterface, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.Unlock()

	msg, err := encodeMessage(incoming)
	if err != nil {
		h.logger.Error("Failed to encode price update", zap.Error(err))
		return
	}

	for _, client := range targets {
		client.SendBytes(msg)
	}
	h.logger.Debug("Broadcast price update", zap.Int("clients", len(targets)))
}

// Snapshot returns the last record set the hub has seen, or nil.
func (h *Hub) Snapshot() models.RecordSet {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) sendSnapshot(client ClientInterface, set models.RecordSet) {
	msg, err := encodeMessage(set)
	if err != nil {
		h.logger.Error("Failed to encode snapshot", zap.Error(err))
		return
	}
	client.SendBytes(msg)
}

func encodeMessage(set models.RecordSet) ([]byte, error) {
	data, err := json.Marshal(set)
	if err != nil {
		return nil, err
	}
	return protocol.PricesMessage(data)
}
