package storage

import (
	"context"
	"sync"
)

// Storage is a durable key/value blob store.
type Storage interface {
	// Read returns the blob stored under key and whether it exists.
	Read(ctx context.Context, key string) (string, bool, error)

	// Write stores data under key, replacing any previous blob.
	Write(ctx context.Context, key, data string) error

	// Clear removes the blob stored under key. Clearing a missing key is
	// not an error.
	Clear(ctx context.Context, key string) error
}

// Memory is an in-memory Storage. The zero value is ready to use.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: map[string]string{}}
}

func (m *Memory) Read(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	return data, ok, nil
}

func (m *Memory) Write(_ context.Context, key, data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blobs == nil {
		m.blobs = map[string]string{}
	}
	m.blobs[key] = data
	return nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}
