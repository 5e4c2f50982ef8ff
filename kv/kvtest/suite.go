// Package kvtest is a conformance suite every kv.Store backend must pass.
package kvtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/brettbedarf/deskfs/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory creates a fresh Store for each test. It receives *testing.T so
// it can use t.TempDir() for paths; the suite closes the store itself.
type StoreFactory func(t *testing.T) kv.Store

// ReopenFactory opens a Store over the same backing data on every call.
// Used to check values survive Close.
type ReopenFactory func(t *testing.T) func() kv.Store

// RunConformanceSuite runs the full suite against factory
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	run := func(name string, fn func(t *testing.T, s kv.Store)) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}

	run("GetMissing", testGetMissing)
	run("SetGet", testSetGet)
	run("Overwrite", testOverwrite)
	run("Remove", testRemove)
	run("KeysAreIndependent", testKeysAreIndependent)
	run("ValueIsCopied", testValueIsCopied)
	run("ConcurrentWriters", testConcurrentWriters)
}

// RunPersistenceSuite checks that values written before Close are readable
// after reopening
func RunPersistenceSuite(t *testing.T, reopen ReopenFactory) {
	t.Helper()

	t.Run("SurvivesReopen", func(t *testing.T) {
		open := reopen(t)
		ctx := context.Background()

		s := open()
		require.NoError(t, s.Set(ctx, "prathvios-files", []byte(`{"root":{}}`)))
		require.NoError(t, s.Close())

		s = open()
		defer s.Close()
		got, err := s.Get(ctx, "prathvios-files")
		require.NoError(t, err)
		assert.Equal(t, `{"root":{}}`, string(got))
	})
}

func testGetMissing(t *testing.T, s kv.Store) {
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func testSetGet(t *testing.T, s kv.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("value")))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	require.NoError(t, s.Set(ctx, "empty", []byte{}))
	got, err = s.Get(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testOverwrite(t *testing.T, s kv.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("first")))
	require.NoError(t, s.Set(ctx, "k", []byte("second")))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func testRemove(t *testing.T, s kv.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Remove(ctx, "k"))
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	assert.NoError(t, s.Remove(ctx, "k"), "removing a missing key is not an error")
}

func testKeysAreIndependent(t *testing.T, s kv.Store) {
	ctx := context.Background()
	keys := []string{"a", "a/b", "with space", "ünïcode"}
	for _, k := range keys {
		require.NoError(t, s.Set(ctx, k, []byte("v:"+k)))
	}
	for _, k := range keys {
		got, err := s.Get(ctx, k)
		require.NoError(t, err, k)
		assert.Equal(t, "v:"+k, string(got))
	}
}

func testValueIsCopied(t *testing.T, s kv.Store) {
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[0] = 'y'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func testConcurrentWriters(t *testing.T, s kv.Store) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Set(ctx, "shared", []byte(fmt.Sprintf("w%d", i))))
		}(i)
	}
	wg.Wait()

	// last write wins; any writer's value is acceptable
	got, err := s.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Regexp(t, `^w[0-7]$`, string(got))
}
