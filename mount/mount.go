// Package mount exposes a session's tree as a read-only FUSE filesystem.
// Folders appear as directories and files as regular files whose bytes are
// the node content. Duplicate sibling names resolve to the first child.
package mount

import (
	"context"
	"syscall"
	"time"

	"github.com/brettbedarf/deskfs/config"
	"github.com/brettbedarf/deskfs/filesystem"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// View is the read surface the mount needs. *session.Session satisfies it.
type View interface {
	Lookup(id filesystem.NodeID) (filesystem.FileNode, error)
	ChildrenOf(id filesystem.NodeID) ([]filesystem.FileNode, error)
}

const (
	dirMode  = fuse.S_IFDIR | 0o555
	fileMode = fuse.S_IFREG | 0o444
)

// fillAttr copies node metadata into out
func fillAttr(n filesystem.FileNode, out *fuse.Attr) {
	if n.IsFolder() {
		out.Mode = dirMode
		out.Nlink = 2
	} else {
		out.Mode = fileMode
		out.Nlink = 1
		out.Size = uint64(n.Size())
	}
	mtime := n.ModifiedAt
	ctime := n.CreatedAt
	out.SetTimes(&mtime, &mtime, &ctime)
}

// readAt returns the slice of data visible at off for a len(dest) read
func readAt(data string, dest []byte, off int64) []byte {
	if off >= int64(len(data)) {
		return nil
	}
	n := copy(dest, data[off:])
	return dest[:n]
}

// errno maps store errors to FUSE status codes
func errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case filesystem.IsNotFound(err):
		return syscall.ENOENT
	default:
		return syscall.EIO
	}
}

// node is one tree entry. It only holds the ID; every call re-reads the
// session so deletions elsewhere surface as ENOENT.
type node struct {
	fs.Inode
	view View
	id   filesystem.NodeID
}

var _ = (fs.NodeLookuper)((*node)(nil))
var _ = (fs.NodeReaddirer)((*node)(nil))
var _ = (fs.NodeGetattrer)((*node)(nil))
var _ = (fs.NodeOpener)((*node)(nil))
var _ = (fs.NodeReader)((*node)(nil))

func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fn, err := n.view.Lookup(n.id)
	if err != nil {
		return errno(err)
	}
	fillAttr(fn, &out.Attr)
	return 0
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	logger := util.GetLogger("Mount.Lookup")

	children, err := n.view.ChildrenOf(n.id)
	if err != nil {
		return nil, errno(err)
	}
	for _, c := range children {
		if c.Name != name {
			continue
		}
		fillAttr(c, &out.Attr)
		mode := uint32(fuse.S_IFREG)
		if c.IsFolder() {
			mode = fuse.S_IFDIR
		}
		logger.Trace().Str("parent", string(n.id)).Str("name", name).Str("id", string(c.ID)).Msg("Resolved")
		child := &node{view: n.view, id: c.ID}
		return n.NewInode(ctx, child, fs.StableAttr{Mode: mode}), 0
	}
	return nil, syscall.ENOENT
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	children, err := n.view.ChildrenOf(n.id)
	if err != nil {
		return nil, errno(err)
	}
	entries := make([]fuse.DirEntry, 0, len(children))
	for _, c := range children {
		mode := uint32(fuse.S_IFREG)
		if c.IsFolder() {
			mode = fuse.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: c.Name, Mode: mode})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND) != 0 {
		return nil, 0, syscall.EROFS
	}
	fn, err := n.view.Lookup(n.id)
	if err != nil {
		return nil, 0, errno(err)
	}
	if fn.IsFolder() {
		return nil, 0, syscall.EISDIR
	}
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *node) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	fn, err := n.view.Lookup(n.id)
	if err != nil {
		return nil, errno(err)
	}
	return fuse.ReadResultData(readAt(fn.Content, dest, off)), 0
}

// Server serves one mount of a View
type Server struct {
	view   View
	opts   config.MountOptions
	logLvl util.LogLevel
	server *fuse.Server
}

// New creates a Server. Nothing is mounted until Serve.
func New(view View, opts config.MountOptions, logLvl util.LogLevel) *Server {
	return &Server{view: view, opts: opts, logLvl: logLvl}
}

// Serve mounts the tree at mountPoint and returns once the kernel has
// acknowledged the mount. Requests are served in the background.
func (s *Server) Serve(mountPoint string) error {
	logger := util.GetLogger("Mount.Serve")

	attrTimeout := time.Duration(s.opts.AttrTimeout * float64(time.Second))
	entryTimeout := time.Duration(s.opts.EntryTimeout * float64(time.Second))
	root := &node{view: s.view, id: filesystem.RootID}

	srv, err := fs.Mount(mountPoint, root, &fs.Options{
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,
		MountOptions: fuse.MountOptions{
			Name:   s.opts.Name,
			FsName: s.opts.FsName,
			Debug:  s.opts.Debug || s.logLvl == util.TraceLevel,
			Logger: util.NewLogLogger("FuseServer", util.TraceLevel),
		},
	})
	if err != nil {
		return err
	}
	s.server = srv
	logger.Info().Str("mountPoint", mountPoint).Msg("Mounted")
	return nil
}

// Wait blocks until the filesystem is unmounted, by Unmount or externally
// (fusermount -u)
func (s *Server) Wait() {
	if s.server != nil {
		s.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem.
func (s *Server) Unmount() error {
	if s.server == nil {
		return nil
	}
	return s.server.Unmount()
}
