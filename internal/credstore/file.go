package credstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// FileStore keeps all credentials in a single JSON document on disk.
// The file is re-read on every operation so separate processes sharing it
// (e.g. two CLI invocations) observe each other's writes.
type FileStore struct {
	namespace string
	path      string
	mu        sync.Mutex
	closed    bool
}

// NewFileStore creates a store backed by the file at cfg.Path.
func NewFileStore(namespace string, cfg FileConfig) (*FileStore, error) {
	path := cfg.Path
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		path = filepath.Join(dir, "fundi", "credentials.json")
	}

	// Create directory if needed
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "credstore/file: failed to create directory")
	}

	return &FileStore{namespace: namespace, path: path}, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Read returns the value stored under key.
func (f *FileStore) Read(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return "", false, ErrClosed
	}

	entries, err := f.load()
	if err != nil {
		return "", false, err
	}

	value, ok := entries[namespacedKey(f.namespace, key)]
	return value, ok, nil
}

// Write stores value under key.
func (f *FileStore) Write(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	entries, err := f.load()
	if err != nil {
		return err
	}
	entries[namespacedKey(f.namespace, key)] = value
	return f.save(entries)
}

// Delete removes key.
func (f *FileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	entries, err := f.load()
	if err != nil {
		return err
	}

	nk := namespacedKey(f.namespace, key)
	if _, ok := entries[nk]; !ok {
		return nil
	}
	delete(entries, nk)
	return f.save(entries)
}

// Close marks the store closed. The file is left in place.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	f.closed = true
	return nil
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, errors.Wrap(err, "credstore/file: failed to read credentials file")
	}

	entries := make(map[string]string)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "credstore/file: failed to unmarshal credentials")
	}
	return entries, nil
}

// save writes to a temp file and renames it over the target so readers never see a torn file.
func (f *FileStore) save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "credstore/file: failed to marshal credentials")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credentials-*")
	if err != nil {
		return errors.Wrap(err, "credstore/file: failed to create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "credstore/file: failed to write credentials")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "credstore/file: failed to close temp file")
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "credstore/file: failed to set permissions")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "credstore/file: failed to replace credentials file")
	}
	return nil
}
