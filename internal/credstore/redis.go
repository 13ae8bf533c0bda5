package credstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps credentials in Redis under "namespace:key".
// Useful when several client processes on different hosts share one login.
type RedisStore struct {
	namespace string
	client    *redis.Client
	closed    bool
	mu        sync.RWMutex
}

// NewRedisStore connects to cfg.Addr and verifies the connection.
func NewRedisStore(namespace string, cfg RedisConfig) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("credstore/redis: failed to connect to %s: %w", cfg.Addr, err)
	}

	return NewRedisStoreFromClient(namespace, client), nil
}

// NewRedisStoreFromClient wraps an existing client. The store owns it from then on.
func NewRedisStoreFromClient(namespace string, client *redis.Client) *RedisStore {
	return &RedisStore{namespace: namespace, client: client}
}

// Read returns the value stored under key.
func (r *RedisStore) Read(ctx context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return "", false, ErrClosed
	}

	value, err := r.client.Get(ctx, namespacedKey(r.namespace, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("credstore/redis: get failed: %w", err)
	}
	return value, true, nil
}

// Write stores value under key without expiry; the session tracks expiry itself.
func (r *RedisStore) Write(ctx context.Context, key, value string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrClosed
	}

	if err := r.client.Set(ctx, namespacedKey(r.namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("credstore/redis: set failed: %w", err)
	}
	return nil
}

// Delete removes key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrClosed
	}

	if err := r.client.Del(ctx, namespacedKey(r.namespace, key)).Err(); err != nil {
		return fmt.Errorf("credstore/redis: delete failed: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	r.closed = true
	return r.client.Close()
}
