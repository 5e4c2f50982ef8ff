package filesystem

import (
	"time"

	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// Tree is the in-memory node table. Nodes reference each other only by
// [NodeID]; the table is the sole owner of every record.
//
// Every exported method either fully applies its change or returns an
// error without touching the table. Tree does not serialize writers itself:
// callers with more than one writer must hold their own lock (see session).
type Tree struct {
	nodes *xsync.Map[NodeID, *FileNode] // maps NodeIDs to owned node records
	now   func() time.Time
	newID func() NodeID
}

// TreeOption customizes a Tree at construction time
type TreeOption func(*Tree)

// WithClock replaces the timestamp source
func WithClock(now func() time.Time) TreeOption {
	return func(t *Tree) { t.now = now }
}

// WithIDGenerator replaces the ID source. Generated IDs that collide with an
// existing node are discarded and regenerated.
func WithIDGenerator(gen func() NodeID) TreeOption {
	return func(t *Tree) { t.newID = gen }
}

func defaultClock() time.Time {
	return time.Now().UTC().Round(0)
}

func defaultID() NodeID {
	return NodeID(uuid.NewString())
}

func newEmptyTree(opts ...TreeOption) *Tree {
	t := &Tree{
		nodes: xsync.NewMap[NodeID, *FileNode](),
		now:   defaultClock,
		newID: defaultID,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewTree creates a tree holding only the root folder
func NewTree(opts ...TreeOption) *Tree {
	t := newEmptyTree(opts...)
	now := t.now()
	t.nodes.Store(RootID, &FileNode{
		ID:         RootID,
		Name:       RootName,
		Kind:       Folder,
		Children:   []NodeID{},
		CreatedAt:  now,
		ModifiedAt: now,
	})
	return t
}

// NewSeeded creates the initial tree used when no snapshot exists:
// the root plus one example folder.
func NewSeeded(opts ...TreeOption) *Tree {
	t := NewTree(opts...)
	if _, err := t.Insert(RootID, NewFolder("Pictures")); err != nil {
		// root always exists in a fresh tree
		panic(err)
	}
	return t
}

// mintID returns an identifier not present in the table
func (t *Tree) mintID() NodeID {
	for {
		id := t.newID()
		if id == "" {
			continue
		}
		if _, taken := t.nodes.Load(id); !taken {
			return id
		}
	}
}

// get returns the owned record for id
func (t *Tree) get(id NodeID) (*FileNode, bool) {
	return t.nodes.Load(id)
}

// folder returns the owned record for id, requiring it to be a Folder
func (t *Tree) folder(id NodeID) (*FileNode, error) {
	n, ok := t.get(id)
	if !ok {
		return nil, NewNotFoundError(id, "folder")
	}
	if n.Kind != Folder {
		return nil, NewNotFoundError(id, "folder")
	}
	return n, nil
}

// Root returns a copy of the root folder
func (t *Tree) Root() FileNode {
	root, _ := t.get(RootID)
	return root.clone()
}

// Len returns the number of nodes including root
func (t *Tree) Len() int {
	return t.nodes.Size()
}

// Contains reports whether id resolves to a node
func (t *Tree) Contains(id NodeID) bool {
	_, ok := t.get(id)
	return ok
}

// Lookup returns a copy of the node
func (t *Tree) Lookup(id NodeID) (FileNode, error) {
	n, ok := t.get(id)
	if !ok {
		return FileNode{}, NewNotFoundError(id, "node")
	}
	return n.clone(), nil
}

// ChildrenOf returns copies of the folder's children in insertion order
func (t *Tree) ChildrenOf(parentID NodeID) ([]FileNode, error) {
	parent, err := t.folder(parentID)
	if err != nil {
		return nil, err
	}
	children := make([]FileNode, 0, len(parent.Children))
	for _, id := range parent.Children {
		child, ok := t.get(id)
		if !ok {
			// unreachable while invariants hold
			continue
		}
		children = append(children, child.clone())
	}
	return children, nil
}

// Insert attaches node under parentID and returns the stored copy.
//
// An empty node.ID is replaced with a freshly minted one; zero timestamps are
// set to the current time. Parent is always overwritten.
func (t *Tree) Insert(parentID NodeID, node FileNode) (FileNode, error) {
	logger := util.GetLogger("Tree.Insert")

	parent, err := t.folder(parentID)
	if err != nil {
		return FileNode{}, err
	}
	switch node.Kind {
	case File:
		if len(node.Children) > 0 {
			return FileNode{}, NewInvalidOperationError(node.ID, "file nodes cannot have children")
		}
	case Folder:
		if node.Content != "" {
			return FileNode{}, NewInvalidOperationError(node.ID, "folder nodes cannot have content")
		}
		if len(node.Children) > 0 {
			return FileNode{}, NewInvalidOperationError(node.ID, "inserted folders must be empty")
		}
	default:
		return FileNode{}, NewInvalidOperationError(node.ID, "unknown node kind")
	}
	if node.ID == "" {
		node.ID = t.mintID()
	} else if t.Contains(node.ID) {
		return FileNode{}, NewInvalidOperationError(node.ID, "identifier already in use")
	}

	now := t.now()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	if node.ModifiedAt.IsZero() {
		node.ModifiedAt = now
	}
	node.Parent = parentID
	if node.Kind == Folder {
		node.Children = []NodeID{}
	} else {
		node.Children = nil
	}

	stored := node.clone()
	t.nodes.Store(stored.ID, &stored)
	parent.Children = append(parent.Children, stored.ID)
	parent.touch(now)

	logger.Debug().Str("id", string(stored.ID)).Str("parent", string(parentID)).
		Str("kind", stored.Kind.String()).Str("name", stored.Name).Msg("Inserted node")
	return stored.clone(), nil
}

// Remove detaches id from its parent and deletes its entire subtree.
// The removed identifiers are returned in post-order (descendants before
// their folder, id itself last).
func (t *Tree) Remove(id NodeID) ([]NodeID, error) {
	logger := util.GetLogger("Tree.Remove")

	if id == RootID {
		return nil, NewInvalidOperationError(id, "cannot remove root")
	}
	node, ok := t.get(id)
	if !ok {
		return nil, NewNotFoundError(id, "node")
	}
	parent, ok := t.get(node.Parent)
	if !ok {
		return nil, NewNotFoundError(node.Parent, "parent")
	}

	removed := t.postOrder(id)
	parent.removeChild(id)
	parent.touch(t.now())
	for _, rid := range removed {
		t.nodes.Delete(rid)
	}

	logger.Debug().Str("id", string(id)).Int("removed", len(removed)).Msg("Removed subtree")
	return removed, nil
}

// Rename changes the display name. Sibling names are not required to be unique.
func (t *Tree) Rename(id NodeID, name string) error {
	if id == RootID {
		return NewInvalidOperationError(id, "cannot rename root")
	}
	node, ok := t.get(id)
	if !ok {
		return NewNotFoundError(id, "node")
	}
	node.Name = name
	node.touch(t.now())
	return nil
}

// SetContent replaces a file's text payload
func (t *Tree) SetContent(id NodeID, text string) error {
	node, ok := t.get(id)
	if !ok {
		return NewNotFoundError(id, "node")
	}
	if node.Kind != File {
		return NewInvalidOperationError(id, "content can only be set on files")
	}
	node.Content = text
	node.touch(t.now())
	return nil
}

// Reparent moves id and its unchanged subtree under newParentID, appending it
// to the end of the new parent's children.
func (t *Tree) Reparent(id, newParentID NodeID) error {
	logger := util.GetLogger("Tree.Reparent")

	node, ok := t.get(id)
	if !ok {
		return NewNotFoundError(id, "node")
	}
	target, err := t.folder(newParentID)
	if err != nil {
		return err
	}
	if id == RootID {
		return NewInvalidOperationError(id, "cannot move root")
	}
	if newParentID == id {
		return NewInvalidOperationError(id, "cannot move a folder into itself")
	}
	if t.IsAncestor(id, newParentID) {
		return NewInvalidOperationError(id, "cannot move a folder into its own descendant")
	}
	oldParent, ok := t.get(node.Parent)
	if !ok {
		return NewNotFoundError(node.Parent, "parent")
	}

	now := t.now()
	oldParent.removeChild(id)
	oldParent.touch(now)
	target.Children = append(target.Children, id)
	target.touch(now)
	node.Parent = newParentID

	logger.Debug().Str("id", string(id)).Str("from", string(oldParent.ID)).
		Str("to", string(newParentID)).Msg("Moved node")
	return nil
}

// CloneSubtree deep-copies the subtree rooted at id under newParentID with
// fresh identifiers and returns the copy's root.
//
// Copying into the node itself or into one of its descendants is allowed: the
// source subtree is captured before anything is attached, so the copy never
// contains itself and the original is left intact.
func (t *Tree) CloneSubtree(id, newParentID NodeID) (FileNode, error) {
	logger := util.GetLogger("Tree.CloneSubtree")

	if _, ok := t.get(id); !ok {
		return FileNode{}, NewNotFoundError(id, "node")
	}
	target, err := t.folder(newParentID)
	if err != nil {
		return FileNode{}, err
	}
	if id == RootID {
		return FileNode{}, NewInvalidOperationError(id, "cannot copy root")
	}

	// Capture the source pre-order and assign fresh ids before mutating
	source := t.preOrder(id)
	fresh := make(map[NodeID]NodeID, len(source))
	used := make(map[NodeID]struct{}, len(source))
	for _, sid := range source {
		nid := t.mintID()
		for _, dup := used[nid]; dup; _, dup = used[nid] {
			nid = t.mintID()
		}
		used[nid] = struct{}{}
		fresh[sid] = nid
	}

	now := t.now()
	copies := make([]*FileNode, 0, len(source))
	for _, sid := range source {
		src, _ := t.get(sid)
		cp := src.clone()
		cp.ID = fresh[sid]
		cp.CreatedAt = now
		cp.ModifiedAt = now
		if sid == id {
			cp.Parent = newParentID
		} else {
			cp.Parent = fresh[src.Parent]
		}
		if cp.Kind == Folder {
			for i, child := range cp.Children {
				cp.Children[i] = fresh[child]
			}
		}
		copies = append(copies, &cp)
	}

	for _, cp := range copies {
		t.nodes.Store(cp.ID, cp)
	}
	target.Children = append(target.Children, fresh[id])
	target.touch(now)

	logger.Debug().Str("id", string(id)).Str("copy", string(fresh[id])).
		Str("to", string(newParentID)).Int("nodes", len(copies)).Msg("Copied subtree")
	return copies[0].clone(), nil
}
