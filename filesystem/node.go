package filesystem

import (
	"fmt"
	"slices"
	"time"
)

// NodeID is the opaque, stable identifier of a node. IDs are never reused
// after deletion.
type NodeID string

// RootID is the identifier of the tree root
const RootID NodeID = "root"

// RootName is the display name given to the root folder
const RootName = "root"

// Kind is the node variant
type Kind uint8

const (
	File Kind = iota + 1
	Folder
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Folder:
		return "folder"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind is the inverse of [Kind.String]
func ParseKind(s string) (Kind, error) {
	switch s {
	case "file":
		return File, nil
	case "folder":
		return Folder, nil
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

// FileNode is a single file or folder record.
//
// Values handed out by [Tree] are copies; mutating them has no effect on the
// tree. Content is only meaningful for File nodes and Children only for
// Folder nodes (nil for files, non-nil for folders).
type FileNode struct {
	ID         NodeID
	Name       string
	Kind       Kind
	Content    string
	Children   []NodeID // ordered by insertion
	Parent     NodeID   // empty for root
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// NewFile returns an unattached File template suitable for [Tree.Insert]
func NewFile(name, content string) FileNode {
	return FileNode{Name: name, Kind: File, Content: content}
}

// NewFolder returns an unattached Folder template suitable for [Tree.Insert]
func NewFolder(name string) FileNode {
	return FileNode{Name: name, Kind: Folder, Children: []NodeID{}}
}

func (n *FileNode) IsFolder() bool { return n.Kind == Folder }
func (n *FileNode) IsFile() bool   { return n.Kind == File }
func (n *FileNode) IsRoot() bool   { return n.ID == RootID }

// Size is the content length in bytes; folders report 0
func (n *FileNode) Size() int {
	if n.Kind != File {
		return 0
	}
	return len(n.Content)
}

// clone returns a copy that shares no memory with n
func (n *FileNode) clone() FileNode {
	c := *n
	if n.Children != nil {
		c.Children = slices.Clone(n.Children)
	}
	return c
}

// touch bumps ModifiedAt
func (n *FileNode) touch(now time.Time) {
	n.ModifiedAt = now
}

// removeChild drops the first occurrence of id from the children list.
// Returns false when id was not present.
func (n *FileNode) removeChild(id NodeID) bool {
	idx := slices.Index(n.Children, id)
	if idx < 0 {
		return false
	}
	n.Children = slices.Delete(n.Children, idx, idx+1)
	return true
}
