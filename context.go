package wfs

import "encoding/binary"

var byteOrder = binary.LittleEndian

// FS is the single object every operation hangs off: it owns the disk set
// and, through it, the superblock and both bitmaps. Nothing in this package
// keeps filesystem state outside an *FS value — the C original's global
// disk array, superblock pointer and mmap base are all folded in here.
type FS struct {
	ds *DiskSet
}

// New wraps an already-opened disk set as a usable filesystem context.
func New(ds *DiskSet) *FS {
	return &FS{ds: ds}
}

// Close releases the underlying disk set.
func (fsys *FS) Close() error {
	return fsys.ds.Close()
}

// RootInode is always inode 0, allocated by Format before anything else.
const RootInode = 0

func (fsys *FS) readInode(ino uint32) (*Inode, error) {
	return fsys.ds.ReadInode(ino)
}

func (fsys *FS) writeInode(in *Inode) error {
	return fsys.ds.WriteInode(in)
}

// destroyInode zeroes ino's table slot on every disk and returns its bit to
// the inode bitmap. The zeroed slot is metadata and gets mirrored the same
// as any other metadata write, matching the original's memset-then-
// replicate sequence on inode destruction.
func (fsys *FS) destroyInode(ino uint32) {
	fsys.ds.writeMetadata(fsys.ds.sb.InodeOffset(ino), make([]byte, BlockSize))
	fsys.ds.FreeInode(ino)
}
