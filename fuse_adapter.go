//go:build linux || darwin
// +build linux darwin

package uigen

import (
	"context"
	"errors"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// WorkspaceFSDir represents a directory of the workspace tree in the FUSE
// filesystem. Paths are derived from the inode tree on every call, so
// renames never leave a node pointing at a stale path.
type WorkspaceFSDir struct {
	fs.Inode
	ws *Workspace
}

// Ensure WorkspaceFSDir implements the required interfaces
var (
	_ fs.NodeReaddirer = (*WorkspaceFSDir)(nil)
	_ fs.NodeLookuper  = (*WorkspaceFSDir)(nil)
	_ fs.NodeGetattrer = (*WorkspaceFSDir)(nil)
	_ fs.NodeCreater   = (*WorkspaceFSDir)(nil)
	_ fs.NodeMkdirer   = (*WorkspaceFSDir)(nil)
	_ fs.NodeUnlinker  = (*WorkspaceFSDir)(nil)
	_ fs.NodeRmdirer   = (*WorkspaceFSDir)(nil)
	_ fs.NodeRenamer   = (*WorkspaceFSDir)(nil)
)

// NewWorkspaceFSRoot creates the root node for a FUSE view of ws
func NewWorkspaceFSRoot(ws *Workspace) *WorkspaceFSDir {
	return &WorkspaceFSDir{ws: ws}
}

// inodePath maps an inode to its tree path
func inodePath(n *fs.Inode) string {
	rel := n.Path(nil)
	if rel == "" {
		return RootPath
	}
	return "/" + rel
}

// errnoFor translates tree errors into errno values
func errnoFor(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, ErrAlreadyExists):
		return syscall.EEXIST
	case errors.Is(err, ErrTypeMismatch):
		return syscall.ENOTDIR
	case errors.Is(err, ErrInvalidPath), errors.Is(err, ErrInvalidArguments):
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

func (d *WorkspaceFSDir) path() string { return inodePath(&d.Inode) }

func (d *WorkspaceFSDir) rebuild() {
	if d.ws.pipeline != nil {
		d.ws.RebuildAsync()
	}
}

// Readdir implements NodeReaddirer interface
func (d *WorkspaceFSDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	dir := d.path()
	var entries []fuse.DirEntry
	err := d.ws.View(func(t *Tree) error {
		names, err := t.ListDirectory(dir)
		if err != nil {
			return err
		}
		for _, name := range names {
			mode := uint32(syscall.S_IFREG)
			if info, err := t.Stat(joinPath(dir, name)); err == nil && info.IsDir() {
				mode = syscall.S_IFDIR
			}
			entries = append(entries, fuse.DirEntry{Name: name, Mode: mode})
		}
		return nil
	})
	if err != nil {
		return nil, errnoFor(err)
	}
	return fs.NewListDirStream(entries), 0
}

// Lookup implements NodeLookuper interface
func (d *WorkspaceFSDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childPath := joinPath(d.path(), name)

	var info NodeInfo
	err := d.ws.View(func(t *Tree) error {
		var err error
		info, err = t.Stat(childPath)
		return err
	})
	if err != nil {
		return nil, errnoFor(err)
	}

	if info.IsDir() {
		out.Mode = syscall.S_IFDIR | 0o755
		return d.NewInode(ctx, &WorkspaceFSDir{ws: d.ws}, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
	}
	out.Mode = syscall.S_IFREG | 0o644
	out.Size = uint64(info.Size)
	return d.NewInode(ctx, &WorkspaceFSFile{ws: d.ws}, fs.StableAttr{Mode: syscall.S_IFREG}), 0
}

// Getattr implements NodeGetattrer interface
func (d *WorkspaceFSDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o755
	return 0
}

// Create implements NodeCreater interface
func (d *WorkspaceFSDir) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	p := joinPath(d.path(), name)
	err := d.ws.Update("create", p, func(t *Tree) error {
		return t.CreateFile(p, "")
	})
	if err != nil {
		return nil, nil, 0, errnoFor(err)
	}
	d.rebuild()

	file := &WorkspaceFSFile{ws: d.ws}
	inode := d.NewInode(ctx, file, fs.StableAttr{Mode: syscall.S_IFREG})
	out.Mode = syscall.S_IFREG | 0o644
	return inode, &WorkspaceFSFileHandle{file: file}, 0, 0
}

// Mkdir implements NodeMkdirer interface
func (d *WorkspaceFSDir) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := joinPath(d.path(), name)
	err := d.ws.Update("mkdir", p, func(t *Tree) error {
		if t.Exists(p) {
			return pathErr("mkdir", p, ErrAlreadyExists)
		}
		return t.CreateDirectory(p)
	})
	if err != nil {
		return nil, errnoFor(err)
	}
	out.Mode = syscall.S_IFDIR | 0o755
	return d.NewInode(ctx, &WorkspaceFSDir{ws: d.ws}, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
}

// Unlink implements NodeUnlinker interface
func (d *WorkspaceFSDir) Unlink(ctx context.Context, name string) syscall.Errno {
	p := joinPath(d.path(), name)
	err := d.ws.Update("delete", p, func(t *Tree) error {
		return t.DeleteFile(p)
	})
	if err == nil {
		d.rebuild()
	}
	return errnoFor(err)
}

// Rmdir implements NodeRmdirer interface. Only empty directories are
// removed, as rmdir(2) requires.
func (d *WorkspaceFSDir) Rmdir(ctx context.Context, name string) syscall.Errno {
	p := joinPath(d.path(), name)
	var notEmpty bool
	err := d.ws.Update("rmdir", p, func(t *Tree) error {
		names, err := t.ListDirectory(p)
		if err != nil {
			return err
		}
		if len(names) > 0 {
			notEmpty = true
			return nil
		}
		return t.DeleteDirectory(p)
	})
	if notEmpty {
		return syscall.ENOTEMPTY
	}
	return errnoFor(err)
}

// Rename implements NodeRenamer interface. An existing destination file is
// replaced, as rename(2) does.
func (d *WorkspaceFSDir) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	from := joinPath(d.path(), name)
	to := joinPath(inodePath(newParent.EmbeddedInode()), newName)
	err := replaceRename(d.ws, from, to)
	if err == nil {
		d.rebuild()
	}
	return errnoFor(err)
}

// replaceRename moves from to to inside ws, replacing a destination of the
// same kind that is a file or an empty directory.
func replaceRename(ws *Workspace, from, to string) error {
	change := ChangeRecord{Path: from, NewPath: to, Operation: CmdRename}
	return ws.UpdateChange(change, func(t *Tree) error {
		src, err := t.Stat(from)
		if err != nil {
			return err
		}
		if dst, err := t.Stat(to); err == nil {
			switch {
			case src.IsDir() != dst.IsDir():
				return pathErr("rename", to, ErrTypeMismatch)
			case dst.IsDir() && dst.Children > 0:
				return pathErr("rename", to, ErrAlreadyExists)
			}
			if err := t.Delete(to); err != nil {
				return err
			}
		}
		return t.Rename(from, to)
	})
}

// WorkspaceFSFile represents a file of the workspace tree
type WorkspaceFSFile struct {
	fs.Inode
	ws *Workspace
}

// Ensure WorkspaceFSFile implements the required interfaces
var (
	_ fs.NodeOpener    = (*WorkspaceFSFile)(nil)
	_ fs.NodeGetattrer = (*WorkspaceFSFile)(nil)
	_ fs.NodeSetattrer = (*WorkspaceFSFile)(nil)
)

func (f *WorkspaceFSFile) path() string { return inodePath(&f.Inode) }

// Open implements NodeOpener interface
func (f *WorkspaceFSFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	fh := &WorkspaceFSFileHandle{file: f}
	if flags&syscall.O_TRUNC != 0 {
		p := f.path()
		if err := f.ws.Update("write", p, func(t *Tree) error { return t.UpdateFile(p, "") }); err != nil {
			return nil, 0, errnoFor(err)
		}
		fh.dirty = true
	}
	return fh, fuse.FOPEN_DIRECT_IO, 0
}

// Getattr implements NodeGetattrer interface
func (f *WorkspaceFSFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	p := f.path()
	var info NodeInfo
	err := f.ws.View(func(t *Tree) error {
		var err error
		info, err = t.Stat(p)
		return err
	})
	if err != nil {
		return errnoFor(err)
	}
	out.Size = uint64(info.Size)
	out.Mode = syscall.S_IFREG | 0o644
	return 0
}

// Setattr implements NodeSetattrer interface; only size changes are applied.
func (f *WorkspaceFSFile) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		p := f.path()
		err := f.ws.Update("truncate", p, func(t *Tree) error {
			content, err := t.ViewFile(p)
			if err != nil {
				return err
			}
			return t.UpdateFile(p, string(resize([]byte(content), int(size))))
		})
		if err != nil {
			return errnoFor(err)
		}
		if h, ok := fh.(*WorkspaceFSFileHandle); ok {
			h.dirty = true
		} else if f.ws.pipeline != nil {
			f.ws.RebuildAsync()
		}
	}
	return f.Getattr(ctx, fh, out)
}

func resize(data []byte, size int) []byte {
	if size <= len(data) {
		return data[:size]
	}
	grown := make([]byte, size)
	copy(grown, data)
	return grown
}

// WorkspaceFSFileHandle is a file handle for workspace files. Writes go
// straight to the tree; the preview is rebuilt when the handle is flushed.
type WorkspaceFSFileHandle struct {
	file  *WorkspaceFSFile
	dirty bool
}

// Ensure WorkspaceFSFileHandle implements the required interfaces
var (
	_ fs.FileReader  = (*WorkspaceFSFileHandle)(nil)
	_ fs.FileWriter  = (*WorkspaceFSFileHandle)(nil)
	_ fs.FileFlusher = (*WorkspaceFSFileHandle)(nil)
)

// Read implements FileReader interface
func (fh *WorkspaceFSFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	p := fh.file.path()
	var content string
	err := fh.file.ws.View(func(t *Tree) error {
		var err error
		content, err = t.ViewFile(p)
		return err
	})
	if err != nil {
		return nil, errnoFor(err)
	}

	if off >= int64(len(content)) {
		return fuse.ReadResultData(nil), 0
	}
	end := int(off) + len(dest)
	if end > len(content) {
		end = len(content)
	}
	return fuse.ReadResultData([]byte(content[off:end])), 0
}

// Write implements FileWriter interface
func (fh *WorkspaceFSFileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	p := fh.file.path()
	err := fh.file.ws.Update("write", p, func(t *Tree) error {
		existing, err := t.ViewFile(p)
		if err != nil {
			return err
		}
		buf := []byte(existing)
		if end := int(off) + len(data); end > len(buf) {
			buf = resize(buf, end)
		}
		copy(buf[off:], data)
		return t.UpdateFile(p, string(buf))
	})
	if err != nil {
		return 0, errnoFor(err)
	}
	fh.dirty = true
	return uint32(len(data)), 0
}

// Flush implements FileFlusher interface
func (fh *WorkspaceFSFileHandle) Flush(ctx context.Context) syscall.Errno {
	if fh.dirty && fh.file.ws.pipeline != nil {
		fh.file.ws.RebuildAsync()
	}
	fh.dirty = false
	return 0
}

// MountWorkspace mounts ws as a FUSE filesystem at mountPoint. Editors and
// shell tools then operate on the tree directly; every change is recorded
// in the workspace history and triggers a preview rebuild.
//
// Example:
//
//	server, err := MountWorkspace(ws, "/mnt/uigen", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Unmount()
//	server.Wait()
func MountWorkspace(ws *Workspace, mountPoint string, options *fuse.MountOptions) (*fuse.Server, error) {
	opts := &fs.Options{}
	if options != nil {
		opts.MountOptions = *options
	} else {
		opts.MountOptions = fuse.MountOptions{
			FsName: "uigen",
			Name:   "uigen",
		}
	}

	// fs.Mount starts serving in the background
	return fs.Mount(mountPoint, NewWorkspaceFSRoot(ws), opts)
}
