package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"sync"
)

// Memory keeps collections as encoded JSON so callers never share slices
// with the store.
type Memory struct {
	mu   sync.RWMutex
	docs map[Collection][]byte
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[Collection][]byte)}
}

func (m *Memory) Read(_ context.Context, c Collection, dest any) (bool, error) {
	m.mu.RLock()
	data, ok := m.docs[c]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", c, err)
	}
	return true, nil
}

func (m *Memory) WriteAll(_ context.Context, c Collection, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	m.mu.Lock()
	m.docs[c] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) RunMigrations(context.Context, fs.FS) error { return nil }

func (m *Memory) Close() error { return nil }
