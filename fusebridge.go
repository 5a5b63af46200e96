package wfs

import (
	"context"
	"syscall"

	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// This file is the thin FUSE bridge: it adapts go-fuse's InodeEmbedder
// node-callback interfaces to the *FS operation handlers in ops.go. All
// decision logic — path resolution, allocation, replication, voting —
// lives in ops.go and its helpers; this file only translates calling
// convention and turns an Errno into a syscall.Errno, the single boundary
// spec.md calls out for that translation.

// node is one FUSE-visible entry: a path into the wfs tree plus a back
// pointer to the filesystem it belongs to.
type node struct {
	gofs.Inode
	fsys *FS
	path string
}

var (
	_ gofs.InodeEmbedder = (*node)(nil)
	_ gofs.NodeLookuper  = (*node)(nil)
	_ gofs.NodeGetattrer = (*node)(nil)
	_ gofs.NodeReaddirer = (*node)(nil)
	_ gofs.NodeMkdirer   = (*node)(nil)
	_ gofs.NodeMknoder   = (*node)(nil)
	_ gofs.NodeUnlinker  = (*node)(nil)
	_ gofs.NodeRmdirer   = (*node)(nil)
	_ gofs.NodeOpener    = (*node)(nil)
	_ gofs.NodeReader    = (*node)(nil)
	_ gofs.NodeWriter    = (*node)(nil)
)

func joinPath(parent, name string) string {
	if parent == "" || parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func (n *node) child(name string) *node {
	return &node{fsys: n.fsys, path: joinPath(n.path, name)}
}

// errnoOf translates a classified *FSError into the matching
// syscall.Errno. Any other error (a programming bug, not a filesystem
// condition) becomes EIO.
func errnoOf(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	fse, ok := err.(*FSError)
	if !ok {
		return syscall.EIO
	}
	switch fse.Kind {
	case EnoNotFound:
		return syscall.ENOENT
	case EnoExists:
		return syscall.EEXIST
	case EnoNotDir:
		return syscall.ENOTDIR
	case EnoIsDir:
		return syscall.EISDIR
	case EnoNoSpace:
		return syscall.ENOSPC
	case EnoNameTooLong:
		return syscall.ENAMETOOLONG
	case EnoFileTooBig:
		return syscall.EFBIG
	case EnoNotEmpty:
		return syscall.ENOTEMPTY
	case EnoBadFd:
		return syscall.EBADF
	default:
		return syscall.EINVAL
	}
}

func fillAttr(a Attr, out *fuse.Attr) {
	out.Ino = uint64(a.Ino)
	out.Size = a.Size
	out.Mode = a.Mode
	out.Nlink = a.Nlinks
	out.Uid = a.Uid
	out.Gid = a.Gid
	out.Atime = uint64(a.Atim)
	out.Mtime = uint64(a.Mtim)
	out.Ctime = uint64(a.Ctim)
}

func stableAttrFor(a Attr) gofs.StableAttr {
	mode := uint32(syscall.S_IFREG)
	if a.Kind == Directory {
		mode = syscall.S_IFDIR
	}
	return gofs.StableAttr{Mode: mode, Ino: uint64(a.Ino)}
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	c := n.child(name)
	attr, err := n.fsys.Getattr(c.path)
	if err != nil {
		return nil, errnoOf(err)
	}
	fillAttr(attr, &out.Attr)
	return n.NewInode(ctx, c, stableAttrFor(attr)), 0
}

func (n *node) Getattr(ctx context.Context, f gofs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, err := n.fsys.Getattr(n.path)
	if err != nil {
		return errnoOf(err)
	}
	fillAttr(attr, &out.Attr)
	return 0
}

func (n *node) Readdir(ctx context.Context) (gofs.DirStream, syscall.Errno) {
	entries, err := n.fsys.Readdir(n.path)
	if err != nil {
		return nil, errnoOf(err)
	}
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(syscall.S_IFREG)
		// "." and ".." are directories by construction; every other entry's
		// kind is whatever its own inode records.
		if e.Name == "." || e.Name == ".." {
			mode = syscall.S_IFDIR
		} else if attr, err := n.fsys.Getattr(joinPath(n.path, e.Name)); err == nil && attr.Kind == Directory {
			mode = syscall.S_IFDIR
		}
		list = append(list, fuse.DirEntry{Name: e.Name, Ino: uint64(e.Ino), Mode: mode})
	}
	return gofs.NewListDirStream(list), 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	c := n.child(name)
	attr, err := n.fsys.Mkdir(c.path, mode)
	if err != nil {
		return nil, errnoOf(err)
	}
	fillAttr(attr, &out.Attr)
	return n.NewInode(ctx, c, stableAttrFor(attr)), 0
}

func (n *node) Mknod(ctx context.Context, name string, mode, dev uint32, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	c := n.child(name)
	attr, err := n.fsys.Mknod(c.path, mode)
	if err != nil {
		return nil, errnoOf(err)
	}
	fillAttr(attr, &out.Attr)
	return n.NewInode(ctx, c, stableAttrFor(attr)), 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.fsys.Unlink(joinPath(n.path, name)))
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.fsys.Rmdir(joinPath(n.path, name)))
}

func (n *node) Open(ctx context.Context, flags uint32) (gofs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *node) Read(ctx context.Context, f gofs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	nr, err := n.fsys.Read(n.path, dest, off)
	if err != nil {
		return nil, errnoOf(err)
	}
	return fuse.ReadResultData(dest[:nr]), 0
}

func (n *node) Write(ctx context.Context, f gofs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	nw, err := n.fsys.Write(n.path, data, off)
	if err != nil {
		return uint32(nw), errnoOf(err)
	}
	return uint32(nw), 0
}

// Mount mounts fsys at mountPoint and returns the running server; the
// caller's server.Wait() blocks until the filesystem is unmounted. Requests
// are served one at a time, since *FS holds no locks.
func Mount(mountPoint string, fsys *FS, debug bool) (*fuse.Server, error) {
	root := &node{fsys: fsys, path: "/"}
	server, err := gofs.Mount(mountPoint, root, &gofs.Options{
		MountOptions: fuse.MountOptions{
			Debug:          debug,
			FsName:         "wfs",
			Name:           "wfs",
			AllowOther:     false,
			SingleThreaded: true,
		},
	})
	if err != nil {
		return nil, err
	}
	return server, nil
}
