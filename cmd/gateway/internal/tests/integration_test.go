package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gobwas/ws"
	"github.com/gorilla/websocket" // Using Gorilla for the test CLIENT
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/goldwatch/goldwatch/cmd/gateway/internal/gateway"
	"github.com/goldwatch/goldwatch/cmd/gateway/internal/httpapi"
	"github.com/goldwatch/goldwatch/cmd/gateway/internal/hub"
	"github.com/goldwatch/goldwatch/cmd/gateway/internal/protocol"
	"github.com/goldwatch/goldwatch/cmd/gateway/internal/testutils"
	"github.com/goldwatch/goldwatch/pkg/bus"
	"github.com/goldwatch/goldwatch/pkg/cache"
	"github.com/goldwatch/goldwatch/pkg/models"
	"github.com/goldwatch/goldwatch/pkg/store"
)

func seedRecords() models.RecordSet {
	return models.RecordSet{
		{Type: "gold_1", Name: "SJC bar", Karat: "24k", Purity: "999.9", BuyPrice: 12000000, SellPrice: models.Sell(12200000), UpdatedAt: "t1"},
		{Type: "gold_2", Name: "SJC ring", Karat: "24k", Purity: "999.9", BuyPrice: 11500000, UpdatedAt: "t1"},
	}
}

func startServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	st, err := store.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	for _, rec := range seedRecords() {
		if err := st.Upsert(context.Background(), rec); err != nil {
			t.Fatalf("Failed to seed store: %v", err)
		}
	}

	reader := cache.NewReader(cache.NewRedis(rdb), st, zap.NewNop())
	wsHub := hub.NewHub(reader, zap.NewNop())

	b := bus.NewRedis(rdb, bus.ChannelBroadcast)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() { cancel(); b.Close() })
	go b.Listen(ctx, func(channel string, payload []byte) {
		wsHub.HandleUpdate(payload)
	})

	mux := http.NewServeMux()
	httpapi.NewHandler(reader, &testutils.MockProducer{}, zap.NewNop()).Routes(mux)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		gateway.NewClient(conn, wsHub, zap.NewNop()).Start()
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, mr
}

func connectWS(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	wsConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	return wsConn
}

func readEnvelope(t *testing.T, wsConn *websocket.Conn) (protocol.WSMessage, models.RecordSet) {
	t.Helper()
	wsConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := wsConn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg protocol.WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("Message is not a valid envelope: %v", err)
	}
	var set models.RecordSet
	if err := json.Unmarshal(msg.Data, &set); err != nil {
		t.Fatalf("Envelope data is not a record set: %v", err)
	}
	return msg, set
}

func TestEndToEnd_SnapshotThenBroadcast(t *testing.T) {
	server, mr := startServer(t)

	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	// Snapshot on connect, served from the store via the cache-aside reader.
	msg, set := readEnvelope(t, wsConn)
	if msg.Type != protocol.TypePrices {
		t.Errorf("Expected event %q, got %q", protocol.TypePrices, msg.Type)
	}
	if len(set) != 2 || set[0].BuyPrice != 12000000 {
		t.Errorf("Unexpected snapshot: %+v", set)
	}

	// A changed set published on the broadcast channel reaches the client.
	updated := seedRecords()
	updated[0].BuyPrice = 12100000
	updated[0].UpdatedAt = "t2"
	payload, _ := json.Marshal(updated)
	mr.Publish(bus.ChannelBroadcast, string(payload))

	_, set = readEnvelope(t, wsConn)
	if set[0].BuyPrice != 12100000 {
		t.Errorf("Expected updated buy price, got %+v", set[0])
	}

	// Republishing the same set must not produce another frame.
	mr.Publish(bus.ChannelBroadcast, string(payload))
	wsConn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := wsConn.ReadMessage(); err == nil {
		t.Error("Duplicate publish should not reach the client")
	}
}

func TestEndToEnd_TwoClientsShareTheFeed(t *testing.T) {
	server, mr := startServer(t)

	c1 := connectWS(t, server.URL)
	defer c1.Close()
	c2 := connectWS(t, server.URL)
	defer c2.Close()

	readEnvelope(t, c1)
	readEnvelope(t, c2)

	updated := seedRecords()
	updated[1].BuyPrice = 11550000
	updated[1].UpdatedAt = "t2"
	payload, _ := json.Marshal(updated)
	mr.Publish(bus.ChannelBroadcast, string(payload))

	for _, c := range []*websocket.Conn{c1, c2} {
		_, set := readEnvelope(t, c)
		if set[1].BuyPrice != 11550000 {
			t.Errorf("Client missed the update: %+v", set[1])
		}
	}
}

func TestEndToEnd_RESTAlongsideWebsocket(t *testing.T) {
	server, _ := startServer(t)

	resp, err := http.Get(server.URL + "/api/prices/gold_1")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var rec models.PriceRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if rec.BuyPrice != 12000000 {
		t.Errorf("Unexpected record: %+v", rec)
	}
}
