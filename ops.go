package wfs

import (
	"os"
	"time"
)

// This file holds the eight filesystem operations as methods on *FS. Each
// one mirrors its C counterpart's semantics (see DESIGN.md) but reports
// failures as a classified *FSError instead of a raw negative errno, so the
// FUSE bridge is the only place that ever turns a condition into a
// syscall.Errno.

func now() int64 {
	return time.Now().Unix()
}

// Getattr returns the attributes of the inode named by path, touching atim
// the same as the original's stat handler.
func (fsys *FS) Getattr(path string) (Attr, error) {
	ino, err := fsys.resolvePath(path)
	if err != nil {
		return Attr{}, newFSError("getattr", path, ErrNotFound)
	}
	in, err := fsys.readInode(ino)
	if err != nil {
		return Attr{}, newFSError("getattr", path, err)
	}
	in.Atim = now()
	if err := fsys.writeInode(in); err != nil {
		return Attr{}, newFSError("getattr", path, err)
	}
	return in.Attr(), nil
}

// create is shared by Mknod and Mkdir: it allocates a new inode, links it
// into the parent directory, and, for directories, bumps the parent's
// nlinks for the new ".." reference.
func (fsys *FS) create(path string, mode uint32) (Attr, error) {
	if _, err := fsys.resolvePath(path); err == nil {
		return Attr{}, newFSError("create", path, ErrExists)
	}

	name, parentPath := splitParentChild(path)
	if name == "" {
		return Attr{}, newFSError("create", path, ErrEmptyName)
	}

	parentIno, err := fsys.resolvePath(parentPath)
	if err != nil {
		return Attr{}, newFSError("create", path, ErrNotFound)
	}
	parent, err := fsys.readInode(parentIno)
	if err != nil {
		return Attr{}, newFSError("create", path, err)
	}
	if parent.Kind() != Directory {
		return Attr{}, newFSError("create", path, ErrNotDirectory)
	}

	childIno, err := fsys.ds.AllocateInode()
	if err != nil {
		return Attr{}, newFSError("create", path, ErrNoSpace)
	}

	if err := fsys.addEntry(parent, name, childIno); err != nil {
		fsys.ds.FreeInode(childIno)
		return Attr{}, newFSError("create", path, err)
	}

	t := now()
	child := &Inode{
		Num:    childIno,
		Mode:   mode,
		Uid:    uint32(os.Getuid()),
		Gid:    uint32(os.Getgid()),
		Size:   0,
		Nlinks: 1,
		Atim:   t,
		Mtim:   t,
		Ctim:   t,
	}
	if kindOf(mode) == Directory {
		parent.Nlinks++
	}
	parent.Mtim = t
	parent.Atim = t

	if err := fsys.writeInode(child); err != nil {
		return Attr{}, newFSError("create", path, err)
	}
	if err := fsys.writeInode(parent); err != nil {
		return Attr{}, newFSError("create", path, err)
	}
	return child.Attr(), nil
}

// Mknod creates a regular file.
func (fsys *FS) Mknod(path string, mode uint32) (Attr, error) {
	return fsys.create(path, mode&^S_IFMT|S_IFREG)
}

// Mkdir creates a directory.
func (fsys *FS) Mkdir(path string, mode uint32) (Attr, error) {
	return fsys.create(path, mode&^S_IFMT|S_IFDIR)
}

// remove is shared by Unlink and Rmdir. It removes the directory entry from
// the parent, frees the target's data blocks and inode, and — only for
// directories, which the spec restricts to always being empty on disk by
// the time they're removable — requires zero content.
func (fsys *FS) remove(path string, wantDir bool) error {
	ino, err := fsys.resolvePath(path)
	if err != nil {
		return newFSError("remove", path, ErrNotFound)
	}
	target, err := fsys.readInode(ino)
	if err != nil {
		return newFSError("remove", path, err)
	}
	if wantDir && target.Kind() != Directory {
		return newFSError("remove", path, ErrNotDirectory)
	}
	if !wantDir && target.Kind() == Directory {
		return newFSError("remove", path, ErrIsDirectory)
	}
	if wantDir && target.Size > 0 {
		return newFSError("remove", path, ErrNotEmpty)
	}

	name, parentPath := splitParentChild(path)
	parentIno, err := fsys.resolvePath(parentPath)
	if err != nil {
		return newFSError("remove", path, ErrNotFound)
	}
	parent, err := fsys.readInode(parentIno)
	if err != nil {
		return newFSError("remove", path, err)
	}

	if wantDir {
		parent.Nlinks--
	}
	if err := fsys.removeEntry(parent, name); err != nil {
		return newFSError("remove", path, err)
	}

	fsys.freeInodeBlocks(target)
	fsys.destroyInode(ino)

	if err := fsys.writeInode(parent); err != nil {
		return newFSError("remove", path, err)
	}
	return nil
}

// freeInodeBlocks releases every data block (direct, indirect pointers, and
// the indirect block itself) owned by in, zeroing each before freeing.
func (fsys *FS) freeInodeBlocks(in *Inode) {
	if in.Blocks[IndBlock] != 0 {
		pointers, err := fsys.readIndirect(in.Blocks[IndBlock])
		if err == nil {
			for _, p := range pointers {
				if p != 0 {
					fsys.zeroBlock(p)
					fsys.freeBlock(p)
				}
			}
		}
		fsys.zeroBlock(in.Blocks[IndBlock])
		fsys.freeBlock(in.Blocks[IndBlock])
	}
	for i := 0; i < DirectBlocks; i++ {
		if in.Blocks[i] != 0 {
			fsys.zeroBlock(in.Blocks[i])
			fsys.freeBlock(in.Blocks[i])
		}
	}
}

func (fsys *FS) zeroBlock(off uint64) {
	idx := fsys.ds.sb.blockIndexFromOffset(off)
	fsys.ds.WriteDataBlock(idx, make([]byte, BlockSize), false)
}

// Unlink removes a regular file.
func (fsys *FS) Unlink(path string) error {
	return fsys.remove(path, false)
}

// Rmdir removes an empty directory.
func (fsys *FS) Rmdir(path string) error {
	return fsys.remove(path, true)
}

// Read copies up to len(dest) bytes starting at offset from the file named
// by path, stopping early at EOF or at the first unallocated block (a hole
// reads as a short read, matching the original's hole-stops-the-loop
// behavior rather than synthesizing zero bytes).
func (fsys *FS) Read(path string, dest []byte, offset int64) (int, error) {
	ino, err := fsys.resolvePath(path)
	if err != nil {
		return 0, newFSError("read", path, ErrNotFound)
	}
	in, err := fsys.readInode(ino)
	if err != nil {
		return 0, newFSError("read", path, err)
	}
	if in.Kind() != Regular {
		return 0, newFSError("read", path, ErrIsDirectory)
	}
	if uint64(offset) >= in.Size {
		return 0, nil
	}

	in.Atim = now()
	if err := fsys.writeInode(in); err != nil {
		return 0, newFSError("read", path, err)
	}

	fileData := in.Kind() == Regular
	n := 0
	for n < len(dest) && uint64(int64(n)+offset) < in.Size {
		curOff := uint64(offset) + uint64(n)
		blockOff, ok, err := fsys.blockForOffset(in, curOff, false)
		if err != nil {
			return n, newFSError("read", path, err)
		}
		if !ok {
			break
		}
		idx := fsys.ds.sb.blockIndexFromOffset(blockOff)
		block, err := fsys.ds.ReadDataBlock(idx, fileData)
		if err != nil {
			return n, newFSError("read", path, err)
		}
		within := int(curOff % BlockSize)
		chunk := len(dest) - n
		if avail := BlockSize - within; chunk > avail {
			chunk = avail
		}
		if remain := int(in.Size - curOff); chunk > remain {
			chunk = remain
		}
		copy(dest[n:n+chunk], block[within:within+chunk])
		n += chunk
	}
	return n, nil
}

// Write copies data into the file named by path at offset, allocating new
// blocks (direct then indirect) as needed, and growing the file's recorded
// size to max(size, offset+written) — see SPEC_FULL.md §9 Open Question 1.
func (fsys *FS) Write(path string, data []byte, offset int64) (int, error) {
	ino, err := fsys.resolvePath(path)
	if err != nil {
		return 0, newFSError("write", path, ErrNotFound)
	}
	in, err := fsys.readInode(ino)
	if err != nil {
		return 0, newFSError("write", path, err)
	}
	if in.Kind() != Regular {
		return 0, newFSError("write", path, ErrIsDirectory)
	}
	if uint64(offset)+uint64(len(data)) > MaxFileSize {
		return 0, newFSError("write", path, ErrFileTooBig)
	}

	in.Atim = now()
	in.Mtim = now()

	n := 0
	for n < len(data) {
		curOff := uint64(offset) + uint64(n)
		blockOff, _, err := fsys.blockForOffset(in, curOff, true)
		if err != nil {
			break
		}
		idx := fsys.ds.sb.blockIndexFromOffset(blockOff)
		block, err := fsys.ds.ReadDataBlock(idx, true)
		if err != nil {
			break
		}
		within := int(curOff % BlockSize)
		chunk := len(data) - n
		if avail := BlockSize - within; chunk > avail {
			chunk = avail
		}
		copy(block[within:within+chunk], data[n:n+chunk])
		if err := fsys.ds.WriteDataBlock(idx, block, true); err != nil {
			break
		}
		n += chunk
	}

	if end := uint64(offset) + uint64(n); end > in.Size {
		in.Size = end
	}
	if err := fsys.writeInode(in); err != nil {
		return n, newFSError("write", path, err)
	}
	if n == 0 && len(data) > 0 {
		return 0, newFSError("write", path, ErrNoSpace)
	}
	return n, nil
}

// Readdir lists the entries of the directory named by path. "." and ".."
// are synthesized here rather than stored on disk — see SPEC_FULL.md §9
// Open Question 5.
func (fsys *FS) Readdir(path string) ([]DirEntry, error) {
	ino, err := fsys.resolvePath(path)
	if err != nil {
		return nil, newFSError("readdir", path, ErrNotFound)
	}
	in, err := fsys.readInode(ino)
	if err != nil {
		return nil, newFSError("readdir", path, err)
	}
	if in.Kind() != Directory {
		return nil, newFSError("readdir", path, ErrNotDirectory)
	}

	in.Atim = now()
	if err := fsys.writeInode(in); err != nil {
		return nil, newFSError("readdir", path, err)
	}

	entries, err := fsys.listEntries(in)
	if err != nil {
		return nil, newFSError("readdir", path, err)
	}

	parentIno := ino
	if path != "/" {
		_, parentPath := splitParentChild(path)
		if p, err := fsys.resolvePath(parentPath); err == nil {
			parentIno = p
		}
	}

	out := make([]DirEntry, 0, len(entries)+2)
	out = append(out, DirEntry{Name: ".", Ino: ino})
	out = append(out, DirEntry{Name: "..", Ino: parentIno})
	out = append(out, entries...)
	return out, nil
}
