package testutils

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/goldwatch/goldwatch/pkg/models"
)

// MockRecordStore simulates the durable store
type MockRecordStore struct {
	Records     map[string]models.PriceRecord
	FailType    string // Upsert of this type returns an error
	FindAllErr  error
	UpsertCalls int
	Mu          sync.Mutex
}

func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{Records: make(map[string]models.PriceRecord)}
}

func (m *MockRecordStore) FindAll(ctx context.Context) (models.RecordSet, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.FindAllErr != nil {
		return nil, m.FindAllErr
	}
	set := models.RecordSet{}
	for _, rec := range m.Records {
		set = append(set, rec)
	}
	return set, nil
}

func (m *MockRecordStore) Upsert(ctx context.Context, rec models.PriceRecord) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.UpsertCalls++
	if m.FailType != "" && rec.Type == m.FailType {
		return errors.New("store error")
	}
	m.Records[rec.Type] = rec
	return nil
}

// Seed loads records without counting as upsert traffic.
func (m *MockRecordStore) Seed(set models.RecordSet) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	for _, rec := range set {
		m.Records[rec.Type] = rec
	}
}

// MockBus records published payloads per channel
type MockBus struct {
	Published  map[string][][]byte
	ShouldFail bool
	Mu         sync.Mutex
}

func NewMockBus() *MockBus {
	return &MockBus{Published: make(map[string][][]byte)}
}

func (m *MockBus) Publish(ctx context.Context, channel string, payload []byte) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("bus error")
	}
	m.Published[channel] = append(m.Published[channel], payload)
	return nil
}

// MockSnapshotCache counts invalidations
type MockSnapshotCache struct {
	Invalidations int
	ShouldFail    bool
	Mu            sync.Mutex
}

func (m *MockSnapshotCache) Invalidate(ctx context.Context) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("cache error")
	}
	m.Invalidations++
	return nil
}

type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	// Closed simulates a closed connection or end of stream
	Closed bool
}

func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Closed {
		return kafka.Message{}, io.EOF
	}

	if m.Index >= len(m.Messages) {
		// Returning DeadlineExceeded is a clean way to stop the publisher loop in tests
		return kafka.Message{}, context.DeadlineExceeded
	}

	msg := m.Messages[m.Index]
	m.Index++
	return msg, nil
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}
