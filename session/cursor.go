package session

import (
	"path"
	"slices"
	"strings"

	"github.com/brettbedarf/deskfs/filesystem"
)

// Cursor is one collaborator's position in the tree: the chain of folder IDs
// from root to the current folder. Another collaborator may delete part of
// that chain at any time, leaving the cursor stale until it is moved.
//
// A Cursor is not safe for concurrent use.
type Cursor struct {
	s    *Session
	path []filesystem.NodeID
}

// validPrefix returns how many leading elements of p form a valid folder
// chain from root. Caller holds the read lock.
func validPrefix(t *filesystem.Tree, p []filesystem.NodeID) int {
	if len(p) == 0 || p[0] != filesystem.RootID {
		return 0
	}
	for i, id := range p {
		n, err := t.Lookup(id)
		if err != nil || n.Kind != filesystem.Folder {
			return i
		}
		if i > 0 && n.Parent != p[i-1] {
			return i
		}
	}
	return len(p)
}

// currentLocked returns the current folder ID. When an ancestor was moved the
// path is rebuilt from the folder's ancestry; only a deleted current folder
// yields StaleReference. Caller holds the read lock.
func (c *Cursor) currentLocked(t *filesystem.Tree) (filesystem.NodeID, error) {
	cur := c.path[len(c.path)-1]
	n, err := t.Lookup(cur)
	if err != nil || n.Kind != filesystem.Folder {
		return "", filesystem.NewStaleReferenceError(cur, "current folder no longer exists")
	}
	if validPrefix(t, c.path) != len(c.path) {
		chain, err := chainLocked(t, cur)
		if err != nil {
			return "", err
		}
		c.path = chain
	}
	return cur, nil
}

// Session returns the session the cursor navigates
func (c *Cursor) Session() *Session { return c.s }

// Path returns a copy of the navigation path
func (c *Cursor) Path() []filesystem.NodeID {
	_ = c.s.read(func(t *filesystem.Tree) error {
		_, err := c.currentLocked(t)
		return err
	})
	return slices.Clone(c.path)
}

// IsStale reports whether the current folder was deleted
func (c *Cursor) IsStale() bool {
	err := c.s.read(func(t *filesystem.Tree) error {
		_, err := c.currentLocked(t)
		return err
	})
	return err != nil
}

// Current returns the current folder
func (c *Cursor) Current() (filesystem.FileNode, error) {
	var cur filesystem.FileNode
	err := c.s.read(func(t *filesystem.Tree) error {
		id, err := c.currentLocked(t)
		if err != nil {
			return err
		}
		cur, err = t.Lookup(id)
		return err
	})
	return cur, err
}

// CurrentID returns the current folder's ID without validating the path
func (c *Cursor) CurrentID() filesystem.NodeID {
	return c.path[len(c.path)-1]
}

// Children lists the current folder
func (c *Cursor) Children() ([]filesystem.FileNode, error) {
	var children []filesystem.FileNode
	err := c.s.read(func(t *filesystem.Tree) error {
		id, err := c.currentLocked(t)
		if err != nil {
			return err
		}
		children, err = t.ChildrenOf(id)
		return err
	})
	return children, err
}

// CreateFile adds a file to the current folder. A stale cursor yields
// StaleReference and is left as is.
func (c *Cursor) CreateFile(name, content string) (filesystem.FileNode, error) {
	return c.create("create_file", filesystem.NewFile(name, content))
}

// CreateFolder adds an empty folder to the current folder
func (c *Cursor) CreateFolder(name string) (filesystem.FileNode, error) {
	return c.create("create_folder", filesystem.NewFolder(name))
}

func (c *Cursor) create(op string, tmpl filesystem.FileNode) (filesystem.FileNode, error) {
	var created filesystem.FileNode
	err := c.s.mutate(op, func(t *filesystem.Tree) error {
		parent, err := c.currentLocked(t)
		if err != nil {
			return err
		}
		created, err = t.Insert(parent, tmpl)
		return err
	})
	return created, err
}

// DeleteNode removes id and its subtree. If anything removed lies on this
// cursor's path the cursor returns to root; other cursors are not touched.
func (c *Cursor) DeleteNode(id filesystem.NodeID) error {
	var removed []filesystem.NodeID
	err := c.s.mutate("delete", func(t *filesystem.Tree) (err error) {
		// resync first so the check below sees current ancestors
		_, _ = c.currentLocked(t)
		removed, err = t.Remove(id)
		return err
	})
	if err != nil {
		return err
	}
	for _, rid := range removed {
		if slices.Contains(c.path, rid) {
			c.Reset()
			break
		}
	}
	return nil
}

// NavigateTo replaces the path after validating all of it. path must start
// at root, each element must be a child folder of the previous one.
func (c *Cursor) NavigateTo(p []filesystem.NodeID) error {
	if len(p) == 0 {
		return filesystem.NewInvalidPathError("empty path")
	}
	var ok bool
	_ = c.s.read(func(t *filesystem.Tree) error {
		ok = validPrefix(t, p) == len(p)
		return nil
	})
	if !ok {
		return filesystem.NewInvalidPathError("path does not name a folder chain from root")
	}
	c.path = slices.Clone(p)
	return nil
}

// Enter descends into a child folder of the current folder
func (c *Cursor) Enter(childID filesystem.NodeID) error {
	return c.s.read(func(t *filesystem.Tree) error {
		cur, err := c.currentLocked(t)
		if err != nil {
			return err
		}
		child, err := t.Lookup(childID)
		if err != nil || child.Parent != cur || child.Kind != filesystem.Folder {
			return filesystem.NewInvalidPathError("not a folder in the current folder")
		}
		c.path = append(c.path, childID)
		return nil
	})
}

// Up moves to the parent folder. At root it does nothing. A stale cursor
// falls back to the deepest part of its path that still exists.
func (c *Cursor) Up() {
	_ = c.s.read(func(t *filesystem.Tree) error {
		_, _ = c.currentLocked(t)
		valid := validPrefix(t, c.path)
		switch {
		case valid == 0:
			c.path = []filesystem.NodeID{filesystem.RootID}
		case valid < len(c.path):
			c.path = c.path[:valid]
		case len(c.path) > 1:
			c.path = c.path[:len(c.path)-1]
		}
		return nil
	})
}

// Reset returns to root
func (c *Cursor) Reset() {
	c.path = []filesystem.NodeID{filesystem.RootID}
}

// Breadcrumbs returns the folder names along the path, root first
func (c *Cursor) Breadcrumbs() ([]string, error) {
	var names []string
	err := c.s.read(func(t *filesystem.Tree) error {
		if _, err := c.currentLocked(t); err != nil {
			return err
		}
		names = make([]string, 0, len(c.path))
		for _, id := range c.path {
			n, err := t.Lookup(id)
			if err != nil {
				return err
			}
			names = append(names, n.Name)
		}
		return nil
	})
	return names, err
}

// PathString renders the path as "/Docs/sub"; root is "/"
func (c *Cursor) PathString() (string, error) {
	names, err := c.Breadcrumbs()
	if err != nil {
		return "", err
	}
	return "/" + strings.Join(names[1:], "/"), nil
}

// ResolveByName finds the first child named name in folderID
func (c *Cursor) ResolveByName(name string, folderID filesystem.NodeID, kind *filesystem.Kind) (filesystem.FileNode, error) {
	return c.s.ResolveByName(name, folderID, kind)
}

// ResolveNamePath resolves a slash-separated name path. Absolute paths start
// at root, relative ones at the current folder. "." and ".." are honored;
// ".." at root stays at root. Each segment takes the first matching child,
// preferring folders for intermediate segments.
func (c *Cursor) ResolveNamePath(p string) (filesystem.FileNode, error) {
	var found filesystem.FileNode
	err := c.s.read(func(t *filesystem.Tree) error {
		start := filesystem.RootID
		if !strings.HasPrefix(p, "/") {
			cur, err := c.currentLocked(t)
			if err != nil {
				return err
			}
			start = cur
		}
		n, err := t.Lookup(start)
		if err != nil {
			return err
		}

		segs := splitNamePath(p)
		folder := filesystem.Folder
		for i, seg := range segs {
			switch seg {
			case ".":
				continue
			case "..":
				if n.Parent != "" {
					if n, err = t.Lookup(n.Parent); err != nil {
						return err
					}
				}
				continue
			}
			if n.Kind != filesystem.Folder {
				return filesystem.NewNotFoundError(n.ID, "folder")
			}
			var kind *filesystem.Kind
			if i < len(segs)-1 {
				kind = &folder
			}
			if n, err = resolveChild(t, seg, n.ID, kind); err != nil {
				return err
			}
		}
		found = n
		return nil
	})
	return found, err
}

func splitNamePath(p string) []string {
	var segs []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}

// JoinNamePath is the inverse of splitting a name path
func JoinNamePath(names ...string) string {
	return path.Join(append([]string{"/"}, names...)...)
}

// NavigateToNode moves to the folder id, deriving the path from its ancestry
func (c *Cursor) NavigateToNode(id filesystem.NodeID) error {
	var p []filesystem.NodeID
	err := c.s.read(func(t *filesystem.Tree) (err error) {
		p, err = chainLocked(t, id)
		return err
	})
	if err != nil {
		return filesystem.NewInvalidPathError("folder does not exist")
	}
	return c.NavigateTo(p)
}

// Lookup returns a copy of any node by ID
func (c *Cursor) Lookup(id filesystem.NodeID) (filesystem.FileNode, error) {
	return c.s.Lookup(id)
}

func (c *Cursor) RenameNode(id filesystem.NodeID, name string) error {
	return c.s.RenameNode(id, name)
}

func (c *Cursor) UpdateFileContent(id filesystem.NodeID, text string) error {
	return c.s.UpdateFileContent(id, text)
}

func (c *Cursor) MoveNode(id, target filesystem.NodeID) error {
	return c.s.MoveNode(id, target)
}

func (c *Cursor) CopyNode(id, target filesystem.NodeID) (filesystem.FileNode, error) {
	return c.s.CopyNode(id, target)
}
