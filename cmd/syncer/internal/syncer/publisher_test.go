package syncer_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/goldwatch/goldwatch/cmd/syncer/internal/syncer"
	"github.com/goldwatch/goldwatch/cmd/syncer/internal/testutils"
	"github.com/goldwatch/goldwatch/pkg/bus"
	"github.com/goldwatch/goldwatch/pkg/models"
)

func ingestSet() models.RecordSet {
	return models.RecordSet{
		{Type: "gold_1", Name: "SJC bar", Karat: "24k", Purity: "999.9", BuyPrice: 100, SellPrice: models.Sell(110), UpdatedAt: "t1"},
	}
}

func TestIngest_EmptyStorePropagates(t *testing.T) {
	store := testutils.NewMockRecordStore()
	mb := testutils.NewMockBus()
	pub := syncer.NewPublisher(store, mb, zap.NewNop())

	propagated, err := pub.Ingest(context.Background(), ingestSet())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if !propagated {
		t.Fatal("First ingest into an empty store must propagate")
	}

	mb.Mu.Lock()
	defer mb.Mu.Unlock()
	for _, channel := range []string{bus.ChannelPersist, bus.ChannelBroadcast} {
		msgs := mb.Published[channel]
		if len(msgs) != 1 {
			t.Fatalf("Expected 1 message on %s, got %d", channel, len(msgs))
		}
		var set models.RecordSet
		if err := json.Unmarshal(msgs[0], &set); err != nil {
			t.Fatalf("Payload on %s is not a record set: %v", channel, err)
		}
		if models.Changed(set, ingestSet()) {
			t.Errorf("Payload on %s differs from the ingested set", channel)
		}
	}

	if store.UpsertCalls != 0 {
		t.Error("Publisher must never write the store itself")
	}
}

func TestIngest_UnchangedSetIsSuppressed(t *testing.T) {
	store := testutils.NewMockRecordStore()
	store.Seed(ingestSet()) // store already holds the same set
	mb := testutils.NewMockBus()
	pub := syncer.NewPublisher(store, mb, zap.NewNop())

	propagated, err := pub.Ingest(context.Background(), ingestSet())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if propagated {
		t.Error("Unchanged set must not propagate")
	}

	mb.Mu.Lock()
	defer mb.Mu.Unlock()
	if len(mb.Published) != 0 {
		t.Errorf("Expected no channel emissions, got %v", mb.Published)
	}
}

func TestIngest_FieldChangePropagates(t *testing.T) {
	store := testutils.NewMockRecordStore()
	store.Seed(ingestSet())
	mb := testutils.NewMockBus()
	pub := syncer.NewPublisher(store, mb, zap.NewNop())

	updated := models.RecordSet{
		{Type: "gold_1", Name: "SJC bar", Karat: "24k", Purity: "999.9", BuyPrice: 105, SellPrice: models.Sell(110), UpdatedAt: "t2"},
	}

	propagated, err := pub.Ingest(context.Background(), updated)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if !propagated {
		t.Error("Changed buy price must propagate")
	}
}

func TestIngest_StoreErrorBlocksPropagation(t *testing.T) {
	store := testutils.NewMockRecordStore()
	store.FindAllErr = context.DeadlineExceeded
	mb := testutils.NewMockBus()
	pub := syncer.NewPublisher(store, mb, zap.NewNop())

	propagated, err := pub.Ingest(context.Background(), ingestSet())
	if err == nil {
		t.Error("Store read failure must surface as an error")
	}
	if propagated {
		t.Error("A failed diff must never count as propagated")
	}
	mb.Mu.Lock()
	defer mb.Mu.Unlock()
	if len(mb.Published) != 0 {
		t.Error("Nothing may be emitted when the current state is unknown")
	}
}

func TestIngest_PublishFailureIsReportedNotRetried(t *testing.T) {
	store := testutils.NewMockRecordStore()
	mb := testutils.NewMockBus()
	mb.ShouldFail = true
	pub := syncer.NewPublisher(store, mb, zap.NewNop())

	propagated, err := pub.Ingest(context.Background(), ingestSet())
	if !propagated {
		t.Error("Change detection result stands even when delivery fails")
	}
	if err == nil {
		t.Error("Delivery failure must be reported to the caller")
	}
}

func TestRun_ConsumesKafkaMessages(t *testing.T) {
	set := ingestSet()
	payload, _ := json.Marshal(set)

	reader := &testutils.MockKafkaReader{Messages: []kafka.Message{
		{Key: []byte("gold-prices"), Value: payload},
		{Key: []byte("gold-prices"), Value: []byte("{broken-json")},
		{Key: []byte("gold-prices"), Value: payload},
	}}

	store := testutils.NewMockRecordStore()
	mb := testutils.NewMockBus()
	pub := syncer.NewPublisher(store, mb, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pub.Run(ctx, reader) // returns when the mock reader reports DeadlineExceeded

	mb.Mu.Lock()
	defer mb.Mu.Unlock()
	// The publisher diffs against the store, and the store is only written
	// by the persister; with no persister in this test both valid messages
	// propagate while the malformed one is dropped.
	if len(mb.Published[bus.ChannelBroadcast]) != 2 {
		t.Errorf("Expected 2 broadcast emissions, got %d", len(mb.Published[bus.ChannelBroadcast]))
	}
}
