package testutils

import (
	"context"
	"sync"

	"github.com/streamrelay/streamrelay/pkg/quota"
)

// MockQuotaStore is an in-memory quota.Store that records calls.
type MockQuotaStore struct {
	mu sync.Mutex

	Records map[string]int64

	// FailGet and FailDecrement make the matching call return this error.
	FailGet       error
	FailDecrement error

	Gets       int
	Decrements int
}

// NewMockQuotaStore creates a store seeded with records.
func NewMockQuotaStore(records map[string]int64) *MockQuotaStore {
	if records == nil {
		records = make(map[string]int64)
	}
	return &MockQuotaStore{Records: records}
}

func (m *MockQuotaStore) Get(_ context.Context, token string) (quota.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Gets++
	if m.FailGet != nil {
		return quota.Record{}, m.FailGet
	}
	n, ok := m.Records[token]
	if !ok {
		return quota.Record{}, quota.ErrNoRecord
	}
	return quota.Record{Token: token, Remaining: n}, nil
}

func (m *MockQuotaStore) Set(_ context.Context, token string, value int64, _ quota.SetOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Records[token] = value
	return nil
}

func (m *MockQuotaStore) Decrement(_ context.Context, token string) (quota.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Decrements++
	if m.FailDecrement != nil {
		return quota.Record{}, m.FailDecrement
	}
	m.Records[token]--
	return quota.Record{Token: token, Remaining: m.Records[token]}, nil
}

// Remaining returns the current count for token.
func (m *MockQuotaStore) Remaining(token string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Records[token]
}

// DecrementCount returns how many times Decrement was called.
func (m *MockQuotaStore) DecrementCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Decrements
}

// GetCount returns how many times Get was called.
func (m *MockQuotaStore) GetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Gets
}
