package filesystem

import (
	"cmp"
	"fmt"
	"slices"
)

// preOrder returns id followed by all of its descendants, parents first
func (t *Tree) preOrder(id NodeID) []NodeID {
	var out []NodeID
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := t.get(cur)
		if !ok {
			continue
		}
		out = append(out, cur)
		// push in reverse so children are visited in insertion order
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// postOrder returns the subtree of id with every folder after its descendants
func (t *Tree) postOrder(id NodeID) []NodeID {
	var out []NodeID
	var visit func(NodeID)
	visit = func(cur NodeID) {
		n, ok := t.get(cur)
		if !ok {
			return
		}
		for _, child := range n.Children {
			visit(child)
		}
		out = append(out, cur)
	}
	visit(id)
	return out
}

// IsAncestor reports whether ancestor is a proper ancestor of id, by walking
// parent links up from id.
func (t *Tree) IsAncestor(ancestor, id NodeID) bool {
	n, ok := t.get(id)
	// bounded so a corrupted table cannot loop forever
	for steps := t.Len(); ok && n.Parent != "" && steps > 0; steps-- {
		if n.Parent == ancestor {
			return true
		}
		n, ok = t.get(n.Parent)
	}
	return false
}

// Walk visits id and its descendants in pre-order. depth is 0 for id itself.
// Returning false from fn skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(node FileNode, depth int) bool) error {
	if !t.Contains(id) {
		return NewNotFoundError(id, "node")
	}
	var visit func(NodeID, int)
	visit = func(cur NodeID, depth int) {
		n, ok := t.get(cur)
		if !ok {
			return
		}
		if !fn(n.clone(), depth) {
			return
		}
		for _, child := range n.Children {
			visit(child, depth+1)
		}
	}
	visit(id, 0)
	return nil
}

// Nodes returns copies of every node ordered by ID
func (t *Tree) Nodes() []FileNode {
	out := make([]FileNode, 0, t.Len())
	t.nodes.Range(func(_ NodeID, n *FileNode) bool {
		out = append(out, n.clone())
		return true
	})
	slices.SortFunc(out, func(a, b FileNode) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Check verifies the structural invariants and returns the first violation:
//   - exactly one parentless node, the root, which is a Folder
//   - every parent link resolves to a Folder listing the node exactly once
//   - every children entry resolves to a node pointing back at the folder
//   - only folders have children and only files have content
//   - parent links from every node reach root
func (t *Tree) Check() error {
	root, ok := t.get(RootID)
	if !ok {
		return NewInvalidOperationError(RootID, "root missing")
	}
	if root.Kind != Folder {
		return NewInvalidOperationError(RootID, "root is not a folder")
	}
	if root.Parent != "" {
		return NewInvalidOperationError(RootID, "root has a parent")
	}

	var violation error
	fail := func(id NodeID, format string, args ...any) bool {
		violation = NewInvalidOperationError(id, fmt.Sprintf(format, args...))
		return false
	}

	t.nodes.Range(func(key NodeID, n *FileNode) bool {
		if key != n.ID {
			return fail(key, "table key does not match node id %q", n.ID)
		}
		switch n.Kind {
		case File:
			if n.Children != nil {
				return fail(n.ID, "file has a children list")
			}
		case Folder:
			if n.Content != "" {
				return fail(n.ID, "folder has content")
			}
			seen := make(map[NodeID]struct{}, len(n.Children))
			for _, cid := range n.Children {
				if _, dup := seen[cid]; dup {
					return fail(n.ID, "child %q listed twice", cid)
				}
				seen[cid] = struct{}{}
				child, ok := t.get(cid)
				if !ok {
					return fail(n.ID, "dangling child %q", cid)
				}
				if child.Parent != n.ID {
					return fail(n.ID, "child %q has parent %q", cid, child.Parent)
				}
			}
		default:
			return fail(n.ID, "unknown kind %d", n.Kind)
		}

		if n.ID == RootID {
			return true
		}
		if n.Parent == "" {
			return fail(n.ID, "second parentless node")
		}
		parent, ok := t.get(n.Parent)
		if !ok {
			return fail(n.ID, "parent %q missing", n.Parent)
		}
		if parent.Kind != Folder {
			return fail(n.ID, "parent %q is not a folder", n.Parent)
		}
		if !slices.Contains(parent.Children, n.ID) {
			return fail(n.ID, "orphan: parent %q does not list it", n.Parent)
		}
		if !t.IsAncestor(RootID, n.ID) {
			return fail(n.ID, "parent chain does not reach root")
		}
		return true
	})
	return violation
}

// Restore rebuilds a tree from a full node set, as produced by [Tree.Nodes]
// or decoded from a snapshot. The set must satisfy every invariant checked
// by [Tree.Check].
func Restore(nodes []FileNode, opts ...TreeOption) (*Tree, error) {
	t := newEmptyTree(opts...)
	for i := range nodes {
		n := nodes[i].clone()
		if n.ID == "" {
			return nil, NewInvalidOperationError("", "node without id")
		}
		if _, dup := t.nodes.LoadOrStore(n.ID, &n); dup {
			return nil, NewInvalidOperationError(n.ID, "duplicate node id")
		}
	}
	if err := t.Check(); err != nil {
		return nil, fmt.Errorf("restore tree: %w", err)
	}
	return t, nil
}
