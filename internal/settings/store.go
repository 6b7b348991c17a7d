// Package settings persists the hotel knowledge base.
package settings

import (
	"context"
	"fmt"
	"sync"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/storage"
)

// Store reads and replaces the config collection. A missing document reads
// as hotel.DefaultConfig.
type Store struct {
	store storage.Port

	mu sync.Mutex
}

// New builds a settings store.
func New(store storage.Port) *Store {
	return &Store{store: store}
}

// Get returns the current config.
func (s *Store) Get(ctx context.Context) (hotel.Config, error) {
	var cfg hotel.Config
	ok, err := s.store.Read(ctx, storage.Config, &cfg)
	if err != nil {
		return hotel.Config{}, fmt.Errorf("load config: %w", err)
	}
	if !ok {
		return hotel.DefaultConfig(), nil
	}
	return cfg, nil
}

// Put replaces the config.
func (s *Store) Put(ctx context.Context, cfg hotel.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.WriteAll(ctx, storage.Config, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
