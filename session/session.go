// Package session owns the file tree for the lifetime of a desktop session.
// It serializes mutations, mirrors every successful change to the kv store,
// and hands out per-collaborator navigation cursors.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/brettbedarf/deskfs/filesystem"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/brettbedarf/deskfs/kv"
	"github.com/brettbedarf/deskfs/metrics"
	"github.com/brettbedarf/deskfs/snapshot"
)

// ErrClosed is returned by mutations and Flush after Close
var ErrClosed = errors.New("session closed")

// Options configures Open. The zero value is usable.
type Options struct {
	// SnapshotKey defaults to snapshot.DefaultKey
	SnapshotKey string
	// Metrics may be nil
	Metrics *metrics.Metrics
	// OnPersistError is called, after the session lock is released, whenever
	// a snapshot write fails. The in-memory change is kept regardless.
	OnPersistError func(error)
	TreeOptions    []filesystem.TreeOption
}

// Session is the single owner of the tree. Methods are safe for concurrent
// use; readers (such as the FUSE view) only take the read lock.
type Session struct {
	mu      sync.RWMutex
	tree    *filesystem.Tree
	store   kv.Store
	key     string
	metrics *metrics.Metrics
	onFail  func(error)
	closed  bool
}

// Open restores the tree stored under the snapshot key, or seeds a new one
// when the store has none. A snapshot that exists but cannot be restored is
// an error, not a reason to reseed.
func Open(ctx context.Context, store kv.Store, opts Options) (*Session, error) {
	logger := util.GetLogger("Session.Open")

	key := opts.SnapshotKey
	if key == "" {
		key = snapshot.DefaultKey
	}

	tree, found, err := snapshot.Load(ctx, store, key, opts.TreeOptions...)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	s := &Session{
		store:   store,
		key:     key,
		metrics: opts.Metrics,
		onFail:  opts.OnPersistError,
	}
	if found {
		s.tree = tree
		logger.Info().Str("key", key).Int("nodes", tree.Len()).Msg("Restored tree from snapshot")
	} else {
		s.tree = filesystem.NewSeeded(opts.TreeOptions...)
		logger.Info().Str("key", key).Msg("No snapshot found, seeded new tree")
		s.mu.Lock()
		perr := s.persistLocked(ctx)
		s.mu.Unlock()
		s.reportPersist(perr)
	}
	s.metrics.SetNodeCount(s.tree.Len())
	return s, nil
}

// Close writes a final snapshot and closes the store. Further calls are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	saveErr := snapshot.Save(context.Background(), s.store, s.key, s.tree)
	closeErr := s.store.Close()
	return errors.Join(saveErr, closeErr)
}

// Flush writes the current tree to the store and returns any error
func (s *Session) Flush(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return snapshot.Save(ctx, s.store, s.key, s.tree)
}

// persistLocked writes the snapshot. Caller holds s.mu.
func (s *Session) persistLocked(ctx context.Context) error {
	return snapshot.Save(ctx, s.store, s.key, s.tree)
}

// reportPersist handles a failed write. Must be called without s.mu held so
// the callback may use the session.
func (s *Session) reportPersist(err error) {
	if err == nil {
		return
	}
	util.GetLogger("Session.persist").Warn().Err(err).Str("key", s.key).
		Msg("Failed to persist snapshot, keeping in-memory change")
	s.metrics.RecordPersistFailure()
	if s.onFail != nil {
		s.onFail(err)
	}
}

// mutate runs fn under the write lock, then persists if fn succeeded.
// Persistence failures never change the returned error. A closed session
// rejects every mutation with ErrClosed.
func (s *Session) mutate(op string, fn func(t *filesystem.Tree) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	err := fn(s.tree)
	var perr error
	if err == nil {
		perr = s.persistLocked(context.Background())
		s.metrics.SetNodeCount(s.tree.Len())
	}
	s.mu.Unlock()

	s.metrics.RecordOperation(op, err)
	s.reportPersist(perr)
	return err
}

// read runs fn under the read lock
func (s *Session) read(fn func(t *filesystem.Tree) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.tree)
}

// NewCursor returns a cursor positioned at root
func (s *Session) NewCursor() *Cursor {
	return &Cursor{s: s, path: []filesystem.NodeID{filesystem.RootID}}
}

// Len returns the node count including root
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Nodes returns copies of every node ordered by ID
func (s *Session) Nodes() []filesystem.FileNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Nodes()
}

// Lookup returns a copy of the node
func (s *Session) Lookup(id filesystem.NodeID) (filesystem.FileNode, error) {
	var n filesystem.FileNode
	err := s.read(func(t *filesystem.Tree) (err error) {
		n, err = t.Lookup(id)
		return err
	})
	return n, err
}

// ChildrenOf returns the folder's children in insertion order
func (s *Session) ChildrenOf(id filesystem.NodeID) ([]filesystem.FileNode, error) {
	var children []filesystem.FileNode
	err := s.read(func(t *filesystem.Tree) (err error) {
		children, err = t.ChildrenOf(id)
		return err
	})
	return children, err
}

// Walk visits id and its descendants in pre-order under the read lock.
// fn must not call back into the session.
func (s *Session) Walk(id filesystem.NodeID, fn func(node filesystem.FileNode, depth int) bool) error {
	return s.read(func(t *filesystem.Tree) error {
		return t.Walk(id, fn)
	})
}

// Ancestry returns the nodes from root down to id inclusive
func (s *Session) Ancestry(id filesystem.NodeID) ([]filesystem.FileNode, error) {
	var chain []filesystem.FileNode
	err := s.read(func(t *filesystem.Tree) error {
		ids, err := chainLocked(t, id)
		if err != nil {
			return err
		}
		chain = make([]filesystem.FileNode, 0, len(ids))
		for _, cid := range ids {
			n, err := t.Lookup(cid)
			if err != nil {
				return err
			}
			chain = append(chain, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// chainLocked returns the IDs from root down to id inclusive
func chainLocked(t *filesystem.Tree, id filesystem.NodeID) ([]filesystem.NodeID, error) {
	var chain []filesystem.NodeID
	cur := id
	for steps := t.Len(); steps >= 0; steps-- {
		n, err := t.Lookup(cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, n.ID)
		if n.Parent == "" {
			slices.Reverse(chain)
			return chain, nil
		}
		cur = n.Parent
	}
	return nil, filesystem.NewInvalidOperationError(id, "parent chain does not reach root")
}

// RenameNode trims name and renames id. Blank names are rejected.
func (s *Session) RenameNode(id filesystem.NodeID, name string) error {
	name = strings.TrimSpace(name)
	return s.mutate("rename", func(t *filesystem.Tree) error {
		if name == "" {
			return filesystem.NewInvalidOperationError(id, "name cannot be empty")
		}
		return t.Rename(id, name)
	})
}

// UpdateFileContent replaces a file's content
func (s *Session) UpdateFileContent(id filesystem.NodeID, text string) error {
	return s.mutate("update", func(t *filesystem.Tree) error {
		return t.SetContent(id, text)
	})
}

// MoveNode reparents id under target
func (s *Session) MoveNode(id, target filesystem.NodeID) error {
	return s.mutate("move", func(t *filesystem.Tree) error {
		return t.Reparent(id, target)
	})
}

// CopyNode deep-copies id under target and returns the new subtree root
func (s *Session) CopyNode(id, target filesystem.NodeID) (filesystem.FileNode, error) {
	var cp filesystem.FileNode
	err := s.mutate("copy", func(t *filesystem.Tree) (err error) {
		cp, err = t.CloneSubtree(id, target)
		return err
	})
	return cp, err
}

// ResolveByName returns the first child of folderID named name, optionally
// restricted to kind. Children are scanned in insertion order.
func (s *Session) ResolveByName(name string, folderID filesystem.NodeID, kind *filesystem.Kind) (filesystem.FileNode, error) {
	var found filesystem.FileNode
	err := s.read(func(t *filesystem.Tree) error {
		n, err := resolveChild(t, name, folderID, kind)
		found = n
		return err
	})
	return found, err
}

func resolveChild(t *filesystem.Tree, name string, folderID filesystem.NodeID, kind *filesystem.Kind) (filesystem.FileNode, error) {
	children, err := t.ChildrenOf(folderID)
	if err != nil {
		return filesystem.FileNode{}, err
	}
	for _, c := range children {
		if c.Name == name && (kind == nil || c.Kind == *kind) {
			return c, nil
		}
	}
	return filesystem.FileNode{}, filesystem.NewNotFoundError(folderID, fmt.Sprintf("child %q", name))
}
