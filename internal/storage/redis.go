package storage

import (
	"context"
	"fmt"
	"io/fs"

	"hotel-receptionist/internal/cache"
)

// Redis keeps collections as JSON strings under "<prefix>:collection:<name>".
type Redis struct {
	cache *cache.Redis
}

// NewRedis wraps an existing cache client.
func NewRedis(c *cache.Redis) *Redis {
	return &Redis{cache: c}
}

func (r *Redis) key(c Collection) string {
	return r.cache.Key("collection", string(c))
}

func (r *Redis) Read(ctx context.Context, c Collection, dest any) (bool, error) {
	ok, err := r.cache.GetJSON(ctx, r.key(c), dest)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", c, err)
	}
	return ok, nil
}

func (r *Redis) WriteAll(ctx context.Context, c Collection, value any) error {
	if err := r.cache.SetJSON(ctx, r.key(c), value, 0); err != nil {
		return fmt.Errorf("write %s: %w", c, err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.cache.Ping(ctx) }

// RunMigrations is a no-op; Redis keys need no schema.
func (r *Redis) RunMigrations(context.Context, fs.FS) error { return nil }

func (r *Redis) Close() error { return r.cache.Close() }
