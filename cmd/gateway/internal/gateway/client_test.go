package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/goldwatch/goldwatch/cmd/gateway/internal/gateway"
	"github.com/goldwatch/goldwatch/cmd/gateway/internal/hub"
	"github.com/goldwatch/goldwatch/pkg/models"
)

// gatedReader blocks Read until released, modelling a slow store during a
// cold start.
type gatedReader struct {
	release chan struct{}
	set     models.RecordSet
}

func (g *gatedReader) Read(ctx context.Context) (models.RecordSet, error) {
	<-g.release
	return g.set, nil
}

func sampleSet(buy int64, stamp string) models.RecordSet {
	return models.RecordSet{
		{Type: "gold_1", Name: "SJC bar", Karat: "24k", Purity: "999.9", BuyPrice: buy, UpdatedAt: stamp},
	}
}

func encodeSet(t *testing.T, set models.RecordSet) []byte {
	t.Helper()
	b, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("Failed to encode set: %v", err)
	}
	return b
}

// startPipeClient wires a ClientAdapter over net.Pipe and drains the peer
// side so the write pump never stalls.
func startPipeClient(t *testing.T, h *hub.Hub) (*gateway.ClientAdapter, net.Conn) {
	t.Helper()
	server, peer := net.Pipe()
	go io.Copy(io.Discard, peer)

	c := gateway.NewClient(server, h, zap.NewNop())
	c.Start()
	return c, peer
}

func TestClient_DisconnectDuringColdStart(t *testing.T) {
	reader := &gatedReader{release: make(chan struct{}), set: sampleSet(12000000, "t1")}
	h := hub.NewHub(reader, zap.NewNop())

	c, peer := startPipeClient(t, h)
	defer peer.Close()

	// The client goes away while the cold-start read is still in flight.
	h.Unregister(c)
	close(reader.release)

	// The late snapshot delivery must be dropped, not crash the process.
	time.Sleep(100 * time.Millisecond)
	if h.ClientCount() != 0 {
		t.Errorf("Expected 0 registered clients, got %d", h.ClientCount())
	}
}

func TestClient_DeliveryAfterDisconnectIsDropped(t *testing.T) {
	reader := &gatedReader{release: make(chan struct{})}
	h := hub.NewHub(reader, zap.NewNop())
	h.HandleUpdate(encodeSet(t, sampleSet(12000000, "t1")))

	c, peer := startPipeClient(t, h)
	defer peer.Close()

	h.Unregister(c)

	// A fan-out that copied this client before the disconnect may still
	// deliver afterwards. Both paths must be no-ops.
	c.SendBytes([]byte("late frame"))
	h.HandleUpdate(encodeSet(t, sampleSet(12100000, "t2")))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	reader := &gatedReader{release: make(chan struct{})}
	h := hub.NewHub(reader, zap.NewNop())
	h.HandleUpdate(encodeSet(t, sampleSet(12000000, "t1")))

	c, peer := startPipeClient(t, h)
	defer peer.Close()

	c.Close()
	c.Close()
	c.SendBytes([]byte("late frame"))
}
