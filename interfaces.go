package deskfs

import (
	"github.com/brettbedarf/deskfs/filesystem"
)

// Navigator is the position-tracking surface every collaborator shares
type Navigator interface {
	Path() []filesystem.NodeID
	CurrentID() filesystem.NodeID
	Current() (filesystem.FileNode, error)
	IsStale() bool
	NavigateTo(path []filesystem.NodeID) error
	NavigateToNode(id filesystem.NodeID) error
	Enter(childID filesystem.NodeID) error
	Up()
	Reset()
}

// Browser is what the file browser window needs: a folder view with
// breadcrumbs plus every mutation its context menu offers
type Browser interface {
	Navigator
	Children() ([]filesystem.FileNode, error)
	Breadcrumbs() ([]string, error)
	Lookup(id filesystem.NodeID) (filesystem.FileNode, error)
	CreateFile(name, content string) (filesystem.FileNode, error)
	CreateFolder(name string) (filesystem.FileNode, error)
	DeleteNode(id filesystem.NodeID) error
	RenameNode(id filesystem.NodeID, name string) error
	MoveNode(id, target filesystem.NodeID) error
	CopyNode(id, target filesystem.NodeID) (filesystem.FileNode, error)
}

// ShellBackend is what the command-line shell needs. Names are resolved
// against the current folder with first-match semantics.
type ShellBackend interface {
	Navigator
	Children() ([]filesystem.FileNode, error)
	PathString() (string, error)
	ResolveByName(name string, folderID filesystem.NodeID, kind *filesystem.Kind) (filesystem.FileNode, error)
	ResolveNamePath(p string) (filesystem.FileNode, error)
	CreateFile(name, content string) (filesystem.FileNode, error)
	CreateFolder(name string) (filesystem.FileNode, error)
	DeleteNode(id filesystem.NodeID) error
	MoveNode(id, target filesystem.NodeID) error
	CopyNode(id, target filesystem.NodeID) (filesystem.FileNode, error)
}

// EditorBackend is what the text editor needs to open and save files
type EditorBackend interface {
	CurrentID() filesystem.NodeID
	Lookup(id filesystem.NodeID) (filesystem.FileNode, error)
	CreateFile(name, content string) (filesystem.FileNode, error)
	UpdateFileContent(id filesystem.NodeID, text string) error
}
