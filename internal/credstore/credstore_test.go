package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories builds one of each backend for the contract tests
func storeFactories(t *testing.T) map[string]func(namespace string) Store {
	t.Helper()

	mr := miniredis.RunT(t)
	dir := t.TempDir()

	return map[string]func(string) Store{
		"memory": func(ns string) Store {
			return NewMemoryStore(ns)
		},
		"file": func(ns string) Store {
			s, err := NewFileStore(ns, FileConfig{Path: filepath.Join(dir, "file-"+ns, "credentials.json")})
			require.NoError(t, err)
			return s
		},
		"leveldb": func(ns string) Store {
			s, err := NewLevelDBStore(ns, LevelDBConfig{Path: filepath.Join(dir, "leveldb-"+ns)})
			require.NoError(t, err)
			return s
		},
		"redis": func(ns string) Store {
			s, err := NewRedisStore(ns, RedisConfig{Addr: mr.Addr()})
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory("contract")
			defer store.Close()

			// Missing key
			_, found, err := store.Read(ctx, "auth_token")
			require.NoError(t, err)
			assert.False(t, found)

			// Write then read
			require.NoError(t, store.Write(ctx, "auth_token", "abc"))
			value, found, err := store.Read(ctx, "auth_token")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "abc", value)

			// Overwrite
			require.NoError(t, store.Write(ctx, "auth_token", "xyz"))
			value, _, err = store.Read(ctx, "auth_token")
			require.NoError(t, err)
			assert.Equal(t, "xyz", value)

			// Delete is idempotent
			require.NoError(t, store.Delete(ctx, "auth_token"))
			require.NoError(t, store.Delete(ctx, "auth_token"))
			_, found, err = store.Read(ctx, "auth_token")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestStoreNamespaceIsolation(t *testing.T) {
	for name, factory := range storeFactories(t) {
		if name == "file" || name == "leveldb" {
			// separate namespaces use separate paths in the factory; isolation is trivially true
			continue
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := factory("alpha")
			b := factory("beta")
			defer a.Close()
			defer b.Close()

			require.NoError(t, a.Write(ctx, "auth_token", "alpha-token"))

			_, found, err := b.Read(ctx, "auth_token")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestStoreClosed(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory("closed")
			require.NoError(t, store.Close())

			_, _, err := store.Read(ctx, "k")
			assert.ErrorIs(t, err, ErrClosed)
			assert.ErrorIs(t, store.Write(ctx, "k", "v"), ErrClosed)
			assert.ErrorIs(t, store.Delete(ctx, "k"), ErrClosed)
			assert.ErrorIs(t, store.Close(), ErrClosed)
		})
	}
}

func TestFileStore_SharedBetweenInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "creds.json")

	first, err := NewFileStore("", FileConfig{Path: path})
	require.NoError(t, err)
	second, err := NewFileStore("", FileConfig{Path: path})
	require.NoError(t, err)

	require.NoError(t, first.Write(ctx, "auth_token", "shared"))

	value, found, err := second.Read(ctx, "auth_token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "shared", value)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store, err := NewFileStore("", FileConfig{Path: path})
	require.NoError(t, err)

	_, _, err = store.Read(ctx, "auth_token")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	store, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = New(Config{Type: "sqlite"})
	assert.Error(t, err)

	store, err = New(Config{Type: "file", File: FileConfig{Path: filepath.Join(t.TempDir(), "c.json")}})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
}
