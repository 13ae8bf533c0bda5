// Package credstore provides the persistent credential store behind the
// session: a small string key/value abstraction with Memory, File, LevelDB
// and Redis implementations.
package credstore

import (
	"context"
	"errors"
	"fmt"
)

// Store is the secure key/value storage the session persists into.
// All implementations must be safe for concurrent use.
type Store interface {
	// Read returns the value for key. found is false when the key is absent.
	Read(ctx context.Context, key string) (value string, found bool, err error)

	// Write stores value under key, replacing any previous value.
	Write(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources. Operations after Close return ErrClosed.
	Close() error
}

// ErrClosed is returned when an operation is attempted on a closed store.
var ErrClosed = errors.New("credstore: store is closed")

// Config selects and configures a Store backend.
type Config struct {
	// Type is one of "memory", "file", "leveldb" or "redis"
	Type string `yaml:"type" json:"type"`

	// Namespace isolates keys of one app/profile from another
	Namespace string `yaml:"namespace" json:"namespace"`

	File    FileConfig    `yaml:"file" json:"file"`
	LevelDB LevelDBConfig `yaml:"leveldb" json:"leveldb"`
	Redis   RedisConfig   `yaml:"redis" json:"redis"`
}

// FileConfig configures the JSON file store.
type FileConfig struct {
	// Path of the credentials file. Defaults to <user config dir>/fundi/credentials.json
	Path string `yaml:"path" json:"path"`
}

// LevelDBConfig configures the LevelDB store.
type LevelDBConfig struct {
	// Path is the database directory. Defaults to <user cache dir>/fundi-credentials
	Path string `yaml:"path" json:"path"`

	// SyncWrites fsyncs every write.
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

// New creates a Store for the configured backend.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(cfg.Namespace), nil
	case "file":
		return NewFileStore(cfg.Namespace, cfg.File)
	case "leveldb":
		return NewLevelDBStore(cfg.Namespace, cfg.LevelDB)
	case "redis":
		return NewRedisStore(cfg.Namespace, cfg.Redis)
	default:
		return nil, fmt.Errorf("credstore: unsupported store type: %s", cfg.Type)
	}
}

func namespacedKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}
