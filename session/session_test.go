package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/brettbedarf/deskfs/filesystem"
	"github.com/brettbedarf/deskfs/internal/mocks"
	"github.com/brettbedarf/deskfs/kv"
	"github.com/brettbedarf/deskfs/metrics"
	"github.com/brettbedarf/deskfs/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) (*Session, kv.Store) {
	t.Helper()
	store := kv.NewMemoryStore()
	s, err := Open(context.Background(), store, Options{})
	require.NoError(t, err)
	return s, store
}

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		m := mf.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			return c.GetValue()
		}
		return m.GetGauge().GetValue()
	}
	return 0
}

func TestOpen_SeedsAndPersists(t *testing.T) {
	t.Parallel()

	s, store := openMemory(t)
	assert.Equal(t, 2, s.Len())

	children, err := s.ChildrenOf(filesystem.RootID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Pictures", children[0].Name)

	_, err = store.Get(context.Background(), snapshot.DefaultKey)
	assert.NoError(t, err, "seeded tree is written immediately")
}

func TestOpen_RestoresSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, store := openMemory(t)
	c := s.NewCursor()
	f, err := c.CreateFile("notes.txt", "hello")
	require.NoError(t, err)

	again, err := Open(ctx, store, Options{})
	require.NoError(t, err)
	got, err := again.Lookup(f.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, s.Nodes(), again.Nodes())
}

func TestOpen_CorruptSnapshotFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "custom", []byte(`{"x":{"id":"x","type":"folder"}}`)))

	_, err := Open(ctx, store, Options{SnapshotKey: "custom"})
	assert.Error(t, err)
}

func TestCursor_CreateRenameUpdate(t *testing.T) {
	t.Parallel()

	s, _ := openMemory(t)
	c := s.NewCursor()

	docs, err := c.CreateFolder("Docs")
	require.NoError(t, err)
	require.NoError(t, c.Enter(docs.ID))

	f, err := c.CreateFile("a.txt", "")
	require.NoError(t, err)
	assert.Equal(t, docs.ID, f.Parent)

	require.NoError(t, s.RenameNode(f.ID, "  b.txt  "))
	require.NoError(t, s.UpdateFileContent(f.ID, "body"))
	got, err := s.Lookup(f.ID)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", got.Name)
	assert.Equal(t, "body", got.Content)

	p, err := c.PathString()
	require.NoError(t, err)
	assert.Equal(t, "/Docs", p)

	crumbs, err := c.Breadcrumbs()
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "Docs"}, crumbs)

	err = s.RenameNode(f.ID, "   ")
	assert.True(t, filesystem.IsInvalidOperation(err))
	assert.True(t, filesystem.IsInvalidOperation(s.UpdateFileContent(docs.ID, "x")))
}

func TestCursor_StaleAfterForeignDelete(t *testing.T) {
	t.Parallel()

	s, _ := openMemory(t)
	browser := s.NewCursor()
	shell := s.NewCursor()

	docs, err := browser.CreateFolder("Docs")
	require.NoError(t, err)
	require.NoError(t, browser.Enter(docs.ID))
	sub, err := browser.CreateFolder("sub")
	require.NoError(t, err)
	require.NoError(t, browser.Enter(sub.ID))

	require.NoError(t, shell.DeleteNode(docs.ID))
	assert.Equal(t, []filesystem.NodeID{filesystem.RootID}, shell.Path())

	// browser keeps its stale path and cannot create into it
	assert.True(t, browser.IsStale())
	_, err = browser.CreateFile("x", "")
	assert.True(t, filesystem.IsStaleReference(err), "got %v", err)
	assert.Equal(t, []filesystem.NodeID{filesystem.RootID, docs.ID, sub.ID}, browser.Path())
	_, err = browser.Current()
	assert.True(t, filesystem.IsStaleReference(err))
	_, err = browser.PathString()
	assert.True(t, filesystem.IsStaleReference(err))

	browser.Up()
	assert.Equal(t, []filesystem.NodeID{filesystem.RootID}, browser.Path())
	_, err = browser.CreateFile("x", "")
	assert.NoError(t, err)
}

func TestCursor_FollowsMovedAncestor(t *testing.T) {
	t.Parallel()

	s, _ := openMemory(t)
	c := s.NewCursor()
	other := s.NewCursor()
	a, err := c.CreateFolder("A")
	require.NoError(t, err)
	dest, err := c.CreateFolder("C")
	require.NoError(t, err)
	require.NoError(t, c.Enter(a.ID))
	b, err := c.CreateFolder("B")
	require.NoError(t, err)
	require.NoError(t, c.Enter(b.ID))
	require.NoError(t, other.NavigateTo([]filesystem.NodeID{filesystem.RootID, a.ID, b.ID}))

	require.NoError(t, c.MoveNode(a.ID, dest.ID))

	for _, cur := range []*Cursor{c, other} {
		assert.False(t, cur.IsStale())
		f, err := cur.CreateFile("f", "")
		require.NoError(t, err)
		assert.Equal(t, b.ID, f.Parent)
		assert.Equal(t, []filesystem.NodeID{filesystem.RootID, dest.ID, a.ID, b.ID}, cur.Path())
		p, err := cur.PathString()
		require.NoError(t, err)
		assert.Equal(t, "/C/A/B", p)
	}

	// the old ancestor is no longer on the path, so deleting it is harmless
	c.Up()
	assert.Equal(t, a.ID, c.CurrentID())
	require.NoError(t, c.Enter(b.ID))
	require.NoError(t, other.MoveNode(b.ID, filesystem.RootID))
	require.NoError(t, c.DeleteNode(a.ID))
	assert.Equal(t, []filesystem.NodeID{filesystem.RootID, b.ID}, c.Path())
}

func TestCursor_DeleteResetsOwnPath(t *testing.T) {
	t.Parallel()

	s, _ := openMemory(t)
	c := s.NewCursor()
	a, err := c.CreateFolder("A")
	require.NoError(t, err)
	require.NoError(t, c.Enter(a.ID))
	b, err := c.CreateFolder("B")
	require.NoError(t, err)
	f, err := c.CreateFile("f", "")
	require.NoError(t, err)

	// deleting something off the path keeps position
	require.NoError(t, c.DeleteNode(f.ID))
	assert.Equal(t, []filesystem.NodeID{filesystem.RootID, a.ID}, c.Path())

	require.NoError(t, c.Enter(b.ID))
	require.NoError(t, c.DeleteNode(a.ID))
	assert.Equal(t, []filesystem.NodeID{filesystem.RootID}, c.Path())
	assert.Equal(t, 2, s.Len())

	assert.True(t, filesystem.IsNotFound(c.DeleteNode(a.ID)))
	assert.True(t, filesystem.IsInvalidOperation(c.DeleteNode(filesystem.RootID)))
}

func TestCursor_NavigateTo(t *testing.T) {
	t.Parallel()

	s, _ := openMemory(t)
	c := s.NewCursor()
	a, _ := c.CreateFolder("A")
	f, _ := c.CreateFile("f", "")
	require.NoError(t, c.Enter(a.ID))
	b, _ := c.CreateFolder("B")
	c.Reset()

	require.NoError(t, c.NavigateTo([]filesystem.NodeID{filesystem.RootID, a.ID, b.ID}))
	assert.Equal(t, b.ID, c.CurrentID())

	invalid := [][]filesystem.NodeID{
		{},
		{a.ID},
		{filesystem.RootID, b.ID},
		{filesystem.RootID, f.ID},
		{filesystem.RootID, a.ID, "missing"},
	}
	for _, p := range invalid {
		err := c.NavigateTo(p)
		assert.True(t, filesystem.IsInvalidPath(err), "path %v", p)
		assert.Equal(t, b.ID, c.CurrentID(), "no partial navigation")
	}
}

func TestCursor_EnterAndUp(t *testing.T) {
	t.Parallel()

	s, _ := openMemory(t)
	c := s.NewCursor()
	a, _ := c.CreateFolder("A")
	f, _ := c.CreateFile("f", "")

	assert.True(t, filesystem.IsInvalidPath(c.Enter(f.ID)))
	assert.True(t, filesystem.IsInvalidPath(c.Enter("missing")))

	c.Up()
	assert.Equal(t, []filesystem.NodeID{filesystem.RootID}, c.Path(), "up at root is a no-op")

	require.NoError(t, c.Enter(a.ID))
	c.Up()
	assert.Equal(t, []filesystem.NodeID{filesystem.RootID}, c.Path())
}

func TestSession_MoveAndCopy(t *testing.T) {
	t.Parallel()

	s, _ := openMemory(t)
	c := s.NewCursor()
	a, _ := c.CreateFolder("A")
	require.NoError(t, c.Enter(a.ID))
	b, _ := c.CreateFolder("B")

	err := s.MoveNode(a.ID, b.ID)
	assert.True(t, filesystem.IsInvalidOperation(err))

	cp, err := s.CopyNode(a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", cp.Name)
	assert.Equal(t, b.ID, cp.Parent)

	require.NoError(t, s.MoveNode(b.ID, filesystem.RootID))
	chain, err := s.Ancestry(cp.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, []filesystem.NodeID{filesystem.RootID, b.ID, cp.ID},
		[]filesystem.NodeID{chain[0].ID, chain[1].ID, chain[2].ID})
}

func TestResolve(t *testing.T) {
	t.Parallel()

	s, _ := openMemory(t)
	c := s.NewCursor()
	file, _ := c.CreateFile("dup", "file")
	dir, _ := c.CreateFolder("dup")
	require.NoError(t, c.Enter(dir.ID))
	inner, _ := c.CreateFile("inner.txt", "x")

	got, err := c.ResolveByName("dup", filesystem.RootID, nil)
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID, "first match wins")

	folder := filesystem.Folder
	got, err = c.ResolveByName("dup", filesystem.RootID, &folder)
	require.NoError(t, err)
	assert.Equal(t, dir.ID, got.ID)

	_, err = c.ResolveByName("nope", filesystem.RootID, nil)
	assert.True(t, filesystem.IsNotFound(err))

	got, err = c.ResolveNamePath("/dup/inner.txt")
	require.NoError(t, err)
	assert.Equal(t, inner.ID, got.ID)

	got, err = c.ResolveNamePath("inner.txt")
	require.NoError(t, err)
	assert.Equal(t, inner.ID, got.ID)

	got, err = c.ResolveNamePath("../dup")
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)

	got, err = c.ResolveNamePath("/")
	require.NoError(t, err)
	assert.Equal(t, filesystem.RootID, got.ID)

	_, err = c.ResolveNamePath("inner.txt/more")
	assert.True(t, filesystem.IsNotFound(err))
}

func TestPersistFailure_KeepsChange(t *testing.T) {
	t.Parallel()

	store := new(mocks.MockKVStore)
	store.On("Get", mock.Anything, snapshot.DefaultKey).Return(nil, kv.ErrNotFound)
	store.On("Set", mock.Anything, snapshot.DefaultKey, mock.Anything).Return(errors.New("disk full"))

	reg := prometheus.NewRegistry()
	var warnings []error
	s, err := Open(context.Background(), store, Options{
		Metrics:        metrics.New(reg),
		OnPersistError: func(err error) { warnings = append(warnings, err) },
	})
	require.NoError(t, err)
	require.Len(t, warnings, 1, "seed write failed")

	c := s.NewCursor()
	f, err := c.CreateFile("kept.txt", "data")
	require.NoError(t, err, "persistence failures do not fail the mutation")

	got, err := s.Lookup(f.ID)
	require.NoError(t, err)
	assert.Equal(t, "data", got.Content)
	assert.Len(t, warnings, 2)
	assert.Equal(t, 2.0, gatherValue(t, reg, "deskfs_persist_failures_total"))
	assert.Equal(t, 3.0, gatherValue(t, reg, "deskfs_nodes"))
	store.AssertExpectations(t)
}

func TestPersistFailure_CallbackMayUseSession(t *testing.T) {
	t.Parallel()

	store := new(mocks.MockKVStore)
	store.On("Get", mock.Anything, snapshot.DefaultKey).Return(nil, kv.ErrNotFound)
	store.On("Set", mock.Anything, snapshot.DefaultKey, mock.Anything).Return(errors.New("nope"))

	var s *Session
	var sizes []int
	s, err := Open(context.Background(), store, Options{
		OnPersistError: func(error) {
			if s != nil {
				sizes = append(sizes, s.Len())
			}
		},
	})
	require.NoError(t, err)

	_, err = s.NewCursor().CreateFolder("x")
	require.NoError(t, err)
	assert.Equal(t, []int{3}, sizes)
}

func TestClose_FlushesOnce(t *testing.T) {
	t.Parallel()

	store := new(mocks.MockKVStore)
	store.On("Get", mock.Anything, snapshot.DefaultKey).Return(nil, kv.ErrNotFound)
	store.On("Set", mock.Anything, snapshot.DefaultKey, mock.Anything).Return(nil)
	store.On("Close").Return(nil).Once()

	s, err := Open(context.Background(), store, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	// seed write plus the final flush
	store.AssertNumberOfCalls(t, "Set", 2)
	store.AssertExpectations(t)
}

func TestFlush_WritesCurrentTree(t *testing.T) {
	t.Parallel()

	s, store := openMemory(t)
	_, err := s.NewCursor().CreateFolder("Docs")
	require.NoError(t, err)
	require.NoError(t, store.Remove(context.Background(), snapshot.DefaultKey))

	require.NoError(t, s.Flush(context.Background()))
	tree, found, err := snapshot.Load(context.Background(), store, snapshot.DefaultKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, s.Len(), tree.Len())
}

func TestClose_RejectsLaterMutations(t *testing.T) {
	t.Parallel()

	s, _ := openMemory(t)
	c := s.NewCursor()
	require.NoError(t, s.Close())

	_, err := c.CreateFolder("late")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.RenameNode("root", "x"), ErrClosed)
	assert.ErrorIs(t, s.Flush(context.Background()), ErrClosed)
	assert.Equal(t, 2, s.Len(), "tree is unchanged")
}

func TestMetrics_RecordsOperations(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, err := Open(context.Background(), kv.NewMemoryStore(), Options{Metrics: metrics.New(reg)})
	require.NoError(t, err)

	c := s.NewCursor()
	_, err = c.CreateFolder("A")
	require.NoError(t, err)
	assert.Error(t, s.RenameNode(filesystem.RootID, "x"))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	results := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetName() != "deskfs_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var op, result string
			for _, l := range m.GetLabel() {
				switch l.GetName() {
				case "op":
					op = l.GetValue()
				case "result":
					result = l.GetValue()
				}
			}
			results[op+"/"+result] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{"create_folder/ok": 1, "rename/error": 1}, results)
}

func TestConcurrentReadersDuringMutation(t *testing.T) {
	t.Parallel()

	s, _ := openMemory(t)
	c := s.NewCursor()
	dir, err := c.CreateFolder("busy")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := s.ChildrenOf(dir.ID)
				assert.NoError(t, err)
				_ = s.Nodes()
			}
		}()
	}
	require.NoError(t, c.Enter(dir.ID))
	for j := 0; j < 50; j++ {
		_, err := c.CreateFile("f", "x")
		require.NoError(t, err)
	}
	wg.Wait()

	children, err := s.ChildrenOf(dir.ID)
	require.NoError(t, err)
	assert.Len(t, children, 50)
}
