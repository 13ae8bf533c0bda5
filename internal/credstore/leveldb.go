package credstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBStore persists credentials in a LevelDB database on the local filesystem.
type LevelDBStore struct {
	namespace string
	db        *leveldb.DB
	sync      bool
	closed    bool
	mu        sync.RWMutex
}

// NewLevelDBStore opens (or creates) the database at cfg.Path.
func NewLevelDBStore(namespace string, cfg LevelDBConfig) (*LevelDBStore, error) {
	dbPath := cfg.Path
	if dbPath == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			cacheDir = os.TempDir()
		}
		dbPath = filepath.Join(cacheDir, "fundi-credentials")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("credstore/leveldb: failed to create directory: %w", err)
	}

	opts := &opt.Options{
		Strict:      opt.DefaultStrict,
		Compression: opt.SnappyCompression,
	}

	db, err := leveldb.OpenFile(dbPath, opts)
	if err != nil {
		// Try to recover if database is corrupted
		if lerrors.IsCorrupted(err) {
			db, err = leveldb.RecoverFile(dbPath, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("credstore/leveldb: failed to open database at %s: %w", dbPath, err)
		}
	}

	return &LevelDBStore{
		namespace: namespace,
		db:        db,
		sync:      cfg.SyncWrites,
	}, nil
}

// Read returns the value stored under key.
func (l *LevelDBStore) Read(ctx context.Context, key string) (string, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return "", false, ErrClosed
	}

	value, err := l.db.Get([]byte(namespacedKey(l.namespace, key)), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("credstore/leveldb: get failed: %w", err)
	}
	return string(value), true, nil
}

// Write stores value under key.
func (l *LevelDBStore) Write(ctx context.Context, key, value string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrClosed
	}

	err := l.db.Put([]byte(namespacedKey(l.namespace, key)), []byte(value), &opt.WriteOptions{Sync: l.sync})
	if err != nil {
		return fmt.Errorf("credstore/leveldb: put failed: %w", err)
	}
	return nil
}

// Delete removes key.
func (l *LevelDBStore) Delete(ctx context.Context, key string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrClosed
	}

	err := l.db.Delete([]byte(namespacedKey(l.namespace, key)), &opt.WriteOptions{Sync: l.sync})
	if err != nil && err != leveldb.ErrNotFound {
		return fmt.Errorf("credstore/leveldb: delete failed: %w", err)
	}
	return nil
}

// Close closes the database.
func (l *LevelDBStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.closed = true

	if err := l.db.Close(); err != nil {
		return fmt.Errorf("credstore/leveldb: close failed: %w", err)
	}
	return nil
}
