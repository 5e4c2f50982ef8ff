// Package editor is the text editor collaborator: a single buffer with
// linear undo history that is saved into the file tree.
package editor

import (
	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/filesystem"
	"github.com/brettbedarf/deskfs/internal/util"
)

// DefaultFileName is used until a file is opened or saved under a name
const DefaultFileName = "untitled.txt"

type Editor struct {
	fs       deskfs.EditorBackend
	fileID   filesystem.NodeID // empty until opened or first saved
	fileName string
	history  []string // history[index] is the buffer
	index    int
	saved    string
}

func New(backend deskfs.EditorBackend) *Editor {
	return &Editor{
		fs:       backend,
		fileName: DefaultFileName,
		history:  []string{""},
	}
}

func (e *Editor) Content() string           { return e.history[e.index] }
func (e *Editor) FileName() string          { return e.fileName }
func (e *Editor) FileID() filesystem.NodeID { return e.fileID }

// Modified reports whether the buffer differs from the last open or save
func (e *Editor) Modified() bool { return e.Content() != e.saved }

func (e *Editor) CanUndo() bool { return e.index > 0 }
func (e *Editor) CanRedo() bool { return e.index < len(e.history)-1 }

// SetFileName changes the name used by the next Save of an unsaved buffer
func (e *Editor) SetFileName(name string) {
	e.fileName = name
}

// Open loads a file into the buffer and resets history
func (e *Editor) Open(id filesystem.NodeID) error {
	n, err := e.fs.Lookup(id)
	if err != nil {
		return err
	}
	if !n.IsFile() {
		return filesystem.NewNotFoundError(id, "file")
	}
	e.fileID = n.ID
	e.fileName = n.Name
	e.history = []string{n.Content}
	e.index = 0
	e.saved = n.Content
	return nil
}

// SetContent replaces the buffer, discarding any redo entries
func (e *Editor) SetContent(text string) {
	if text == e.Content() {
		return
	}
	e.history = append(e.history[:e.index+1], text)
	e.index++
}

// Undo steps back one edit. Returns false when there is nothing to undo.
func (e *Editor) Undo() bool {
	if !e.CanUndo() {
		return false
	}
	e.index--
	return true
}

// Redo re-applies an undone edit
func (e *Editor) Redo() bool {
	if !e.CanRedo() {
		return false
	}
	e.index++
	return true
}

// Save writes the buffer to the open file, or creates a new file named
// FileName in the backend's current folder when nothing is open. If the
// open file was deleted elsewhere, Save returns StaleReference and keeps
// the buffer.
func (e *Editor) Save() (filesystem.FileNode, error) {
	logger := util.GetLogger("Editor.Save")

	if e.fileID == "" {
		return e.create(e.fileName)
	}
	if err := e.fs.UpdateFileContent(e.fileID, e.Content()); err != nil {
		if filesystem.IsNotFound(err) {
			return filesystem.FileNode{}, filesystem.NewStaleReferenceError(e.fileID, "open file was deleted")
		}
		return filesystem.FileNode{}, err
	}
	e.saved = e.Content()
	logger.Debug().Str("id", string(e.fileID)).Msg("Updated file")
	return e.fs.Lookup(e.fileID)
}

// SaveAs always creates a new file and makes it the open file
func (e *Editor) SaveAs(name string) (filesystem.FileNode, error) {
	return e.create(name)
}

func (e *Editor) create(name string) (filesystem.FileNode, error) {
	n, err := e.fs.CreateFile(name, e.Content())
	if err != nil {
		return filesystem.FileNode{}, err
	}
	e.fileID = n.ID
	e.fileName = n.Name
	e.saved = e.Content()
	util.GetLogger("Editor.Save").Debug().Str("id", string(n.ID)).Str("name", n.Name).Msg("Created file")
	return n, nil
}
