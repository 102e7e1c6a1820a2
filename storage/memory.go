package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ruteri/watchstate/interfaces"
)

// MemoryBackend is an in-memory KVStore. Contents are lost on restart.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := []string{}
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Update applies fn under the write lock.
func (m *MemoryBackend) Update(_ context.Context, key string, fn interfaces.UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current []byte
	if v, ok := m.data[key]; ok {
		current = append([]byte(nil), v...)
	}
	next, err := fn(current)
	if errors.Is(err, interfaces.ErrNoUpdate) {
		return nil
	}
	if err != nil {
		return err
	}
	m.data[key] = append([]byte(nil), next...)
	return nil
}

func (m *MemoryBackend) Available(context.Context) bool { return true }

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) LocationURI() string { return "memory://" }

func (m *MemoryBackend) Close() error { return nil }
