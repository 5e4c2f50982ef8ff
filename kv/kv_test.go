package kv_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/deskfs/kv"
	"github.com/brettbedarf/deskfs/kv/kvtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Conformance(t *testing.T) {
	kvtest.RunConformanceSuite(t, func(t *testing.T) kv.Store {
		return kv.NewMemoryStore()
	})
}

func TestFileStore_Conformance(t *testing.T) {
	kvtest.RunConformanceSuite(t, func(t *testing.T) kv.Store {
		s, err := kv.NewFileStore(t.TempDir())
		require.NoError(t, err)
		return s
	})
	kvtest.RunPersistenceSuite(t, func(t *testing.T) func() kv.Store {
		dir := t.TempDir()
		return func() kv.Store {
			s, err := kv.NewFileStore(dir)
			require.NoError(t, err)
			return s
		}
	})
}

func TestBadgerStore_Conformance(t *testing.T) {
	kvtest.RunConformanceSuite(t, func(t *testing.T) kv.Store {
		s, err := kv.NewBadgerStore(filepath.Join(t.TempDir(), "badger"))
		require.NoError(t, err)
		return s
	})
	kvtest.RunPersistenceSuite(t, func(t *testing.T) func() kv.Store {
		dir := filepath.Join(t.TempDir(), "badger")
		return func() kv.Store {
			s, err := kv.NewBadgerStore(dir)
			require.NoError(t, err)
			return s
		}
	})
}

func TestBadgerStore_InMemory(t *testing.T) {
	kvtest.RunConformanceSuite(t, func(t *testing.T) kv.Store {
		s, err := kv.NewBadgerStore("")
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStore_Conformance(t *testing.T) {
	kvtest.RunConformanceSuite(t, func(t *testing.T) kv.Store {
		s, err := kv.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "kv.db"))
		require.NoError(t, err)
		return s
	})
	kvtest.RunPersistenceSuite(t, func(t *testing.T) func() kv.Store {
		path := filepath.Join(t.TempDir(), "nested", "kv.db")
		return func() kv.Store {
			s, err := kv.NewSQLiteStore(context.Background(), path)
			require.NoError(t, err)
			return s
		}
	})
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	cases := []struct {
		backend kv.Backend
		path    string
	}{
		{kv.BackendMemory, ""},
		{kv.BackendFile, filepath.Join(dir, "files")},
		{kv.BackendBadger, filepath.Join(dir, "badger")},
		{kv.BackendSQLite, filepath.Join(dir, "kv.db")},
	}
	for _, tc := range cases {
		s, err := kv.Open(ctx, tc.backend, tc.path)
		require.NoError(t, err, tc.backend)
		require.NoError(t, s.Set(ctx, "k", []byte("v")), tc.backend)
		require.NoError(t, s.Close(), tc.backend)
	}

	_, err := kv.Open(ctx, "etcd", "")
	assert.Error(t, err)
	_, err = kv.Open(ctx, kv.BackendFile, "")
	assert.Error(t, err)
}

func TestParseBackend(t *testing.T) {
	t.Parallel()

	b, err := kv.ParseBackend(" Badger ")
	require.NoError(t, err)
	assert.Equal(t, kv.BackendBadger, b)

	_, err = kv.ParseBackend("redis")
	assert.Error(t, err)
}

func TestContextCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := kv.NewMemoryStore()
	assert.ErrorIs(t, s.Set(ctx, "k", nil), context.Canceled)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
