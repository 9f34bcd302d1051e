package testutils

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/goldwatch/goldwatch/pkg/models"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	RawBytes []string // Stores raw frames in arrival order
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) Received() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]string, len(m.RawBytes))
	copy(out, m.RawBytes)
	return out
}

// MockSnapshotReader simulates the cache-aside reader
type MockSnapshotReader struct {
	Set       models.RecordSet
	Err       error
	ReadCalls int
	Mu        sync.Mutex
}

func (m *MockSnapshotReader) Read(ctx context.Context) (models.RecordSet, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.ReadCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Set, nil
}

func (m *MockSnapshotReader) ReadOne(ctx context.Context, typ string) (*models.PriceRecord, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if rec, found := m.Set.Get(typ); found {
		return &rec, nil
	}
	return nil, models.ErrNotFound
}

// MockProducer records messages written to the ingest topic
type MockProducer struct {
	Messages   []kafka.Message
	ShouldFail bool
	Mu         sync.Mutex
}

func (m *MockProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return context.DeadlineExceeded
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}
