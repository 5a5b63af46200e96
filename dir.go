package wfs

import (
	"strings"
)

// entrySize is the fixed size of one directory record: a zero-padded name
// plus the inode index it names.
const entrySize = MaxName + 4
const entriesPerBlock = BlockSize / entrySize

// DirEntry is one name -> inode mapping inside a directory.
type DirEntry struct {
	Name string
	Ino  uint32
}

func encodeEntry(e DirEntry) []byte {
	buf := make([]byte, entrySize)
	copy(buf[:MaxName], e.Name)
	byteOrder.PutUint32(buf[MaxName:], e.Ino)
	return buf
}

func decodeEntry(buf []byte) DirEntry {
	end := 0
	for end < MaxName && buf[end] != 0 {
		end++
	}
	return DirEntry{
		Name: string(buf[:end]),
		Ino:  byteOrder.Uint32(buf[MaxName:]),
	}
}

// splitPath tokenizes an absolute path into its components, mirroring
// strtok(path, "/"): leading/trailing/duplicate slashes are ignored.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitParentChild splits a path into its final component and the path of
// its containing directory, e.g. "/a/b/c" -> ("c", "/a/b").
func splitParentChild(path string) (child, parent string) {
	comps := splitPath(path)
	if len(comps) == 0 {
		return "", "/"
	}
	child = comps[len(comps)-1]
	if len(comps) == 1 {
		return child, "/"
	}
	return child, "/" + strings.Join(comps[:len(comps)-1], "/")
}

// resolvePath walks path component by component from the root inode,
// returning the inode index of the final component.
func (fsys *FS) resolvePath(path string) (uint32, error) {
	ino := uint32(RootInode)
	for _, comp := range splitPath(path) {
		in, err := fsys.readInode(ino)
		if err != nil {
			return 0, err
		}
		if in.Kind() != Directory {
			return 0, newFSError("resolvePath", path, ErrNotDirectory)
		}
		child, err := fsys.lookupChild(in, comp)
		if err != nil {
			return 0, newFSError("resolvePath", path, ErrNotFound)
		}
		ino = child
	}
	return ino, nil
}

// readDirBlocks returns every allocated direct directory block's raw bytes,
// in order, stopping at the first unallocated direct slot — directories
// never use the indirect pointer.
func (fsys *FS) readDirBlocks(in *Inode) ([][]byte, error) {
	var blocks [][]byte
	for i := 0; i < DirectBlocks; i++ {
		if in.Blocks[i] == 0 {
			break
		}
		idx := fsys.ds.sb.blockIndexFromOffset(in.Blocks[i])
		buf, err := fsys.ds.ReadDataBlock(idx, false)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, buf)
	}
	return blocks, nil
}

// listEntries returns every populated directory entry of in, in on-disk
// order. A block's used entries are packed from offset 0 with no internal
// gaps, so a zero-name record marks the end of that block's used entries.
func (fsys *FS) listEntries(in *Inode) ([]DirEntry, error) {
	blocks, err := fsys.readDirBlocks(in)
	if err != nil {
		return nil, err
	}
	var entries []DirEntry
	for _, block := range blocks {
		for i := 0; i < entriesPerBlock; i++ {
			rec := block[i*entrySize : (i+1)*entrySize]
			if rec[0] == 0 {
				break
			}
			entries = append(entries, decodeEntry(rec))
		}
	}
	return entries, nil
}

// lookupChild finds name directly within directory inode in.
func (fsys *FS) lookupChild(in *Inode, name string) (uint32, error) {
	entries, err := fsys.listEntries(in)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e.Ino, nil
		}
	}
	return 0, ErrNotFound
}

// addEntry appends (name, ino) to directory in, allocating a new direct
// block when the current last block is full. Directory occupancy is
// tracked in in.Size as entryCount*entrySize, exactly as the original
// reused the "file size" field to mean "bytes of directory entries".
func (fsys *FS) addEntry(in *Inode, name string, ino uint32) error {
	if len(name) >= MaxName {
		return ErrNameTooLong
	}
	blockNum := int(in.Size) / BlockSize
	off := int(in.Size) % BlockSize

	if blockNum >= DirectBlocks {
		return ErrDirectoryFull
	}
	if off == 0 && in.Blocks[blockNum] == 0 {
		blockOff, err := fsys.allocZeroedBlock()
		if err != nil {
			return err
		}
		in.Blocks[blockNum] = blockOff
	}

	idx := fsys.ds.sb.blockIndexFromOffset(in.Blocks[blockNum])
	buf, err := fsys.ds.ReadDataBlock(idx, false)
	if err != nil {
		return err
	}
	copy(buf[off:off+entrySize], encodeEntry(DirEntry{Name: name, Ino: ino}))
	if err := fsys.ds.WriteDataBlock(idx, buf, false); err != nil {
		return err
	}

	in.Size += entrySize
	return nil
}

// removeEntry deletes the entry named name from directory in, compacting
// the entry table by swapping in the current last entry (swap-with-last),
// matching the original's in-place compaction instead of leaving a hole.
func (fsys *FS) removeEntry(in *Inode, name string) error {
	blocks, err := fsys.readDirBlocks(in)
	if err != nil {
		return err
	}

	foundBlock, foundIndex := -1, -1
outer:
	for b, block := range blocks {
		for i := 0; i < entriesPerBlock; i++ {
			rec := block[i*entrySize : (i+1)*entrySize]
			if rec[0] == 0 {
				continue
			}
			if decodeEntry(rec).Name == name {
				foundBlock, foundIndex = b, i
				break outer
			}
		}
	}
	if foundBlock < 0 {
		return ErrNotFound
	}

	in.Size -= entrySize
	lastBlock := int(in.Size) / BlockSize
	lastOffset := int(in.Size) % BlockSize
	lastIndex := lastOffset / entrySize

	if lastBlock == foundBlock && lastIndex == foundIndex {
		return fsys.writeEntryAt(in, foundBlock, foundIndex, make([]byte, entrySize))
	}

	lastBlockBuf, err := fsys.blockBufAt(in, lastBlock)
	if err != nil {
		return err
	}
	lastRec := append([]byte(nil), lastBlockBuf[lastIndex*entrySize:(lastIndex+1)*entrySize]...)

	if err := fsys.writeEntryAt(in, foundBlock, foundIndex, lastRec); err != nil {
		return err
	}
	return fsys.writeEntryAt(in, lastBlock, lastIndex, make([]byte, entrySize))
}

func (fsys *FS) blockBufAt(in *Inode, blockNum int) ([]byte, error) {
	idx := fsys.ds.sb.blockIndexFromOffset(in.Blocks[blockNum])
	return fsys.ds.ReadDataBlock(idx, false)
}

func (fsys *FS) writeEntryAt(in *Inode, blockNum, entryIdx int, rec []byte) error {
	buf, err := fsys.blockBufAt(in, blockNum)
	if err != nil {
		return err
	}
	copy(buf[entryIdx*entrySize:(entryIdx+1)*entrySize], rec)
	idx := fsys.ds.sb.blockIndexFromOffset(in.Blocks[blockNum])
	return fsys.ds.WriteDataBlock(idx, buf, false)
}
