package wfs

// Block pointers stored in an Inode (and in an indirect block) are absolute
// byte offsets into the data region, with 0 meaning "unallocated" — the
// data region itself never starts at offset 0, so 0 is never a valid
// pointer. This mirrors the original allocator's blocks[] convention
// directly instead of reintroducing a separate index space.

// blockIndexFromOffset converts a data-region byte offset back to the
// block index the bitmap allocator tracks.
func (sb *Superblock) blockIndexFromOffset(off uint64) uint32 {
	return uint32((off - sb.DBlocksPtr) / BlockSize)
}

// blockPointer returns the data block offset stored at direct/indirect slot
// `slot` (0..DirectBlocks+PointersPerIndirect-1) of in. When alloc is true
// and the slot is empty, a new block is allocated, zeroed and wired into the
// slot (allocating the indirect block itself first, when slot is
// DirectBlocks or more).
func (fsys *FS) blockPointer(in *Inode, slot int, alloc bool) (uint64, bool, error) {
	if slot < DirectBlocks {
		if in.Blocks[slot] != 0 {
			return in.Blocks[slot], true, nil
		}
		if !alloc {
			return 0, false, nil
		}
		off, err := fsys.allocZeroedBlock()
		if err != nil {
			return 0, false, err
		}
		in.Blocks[slot] = off
		return off, true, nil
	}

	// Indirect-addressed slot.
	indirectIdx := slot - DirectBlocks
	if indirectIdx >= PointersPerIndirect {
		return 0, false, ErrFileTooBig
	}

	indirectOff := in.Blocks[IndBlock]
	if indirectOff == 0 {
		if !alloc {
			return 0, false, nil
		}
		off, err := fsys.allocZeroedBlock()
		if err != nil {
			return 0, false, err
		}
		in.Blocks[IndBlock] = off
		indirectOff = off
	}

	pointers, err := fsys.readIndirect(indirectOff)
	if err != nil {
		return 0, false, err
	}
	if pointers[indirectIdx] != 0 {
		return pointers[indirectIdx], true, nil
	}
	if !alloc {
		return 0, false, nil
	}
	off, err := fsys.allocZeroedBlock()
	if err != nil {
		return 0, false, err
	}
	pointers[indirectIdx] = off
	if err := fsys.writeIndirect(indirectOff, pointers); err != nil {
		return 0, false, err
	}
	return off, true, nil
}

// blockForOffset maps a byte offset within a file/directory's content to
// the underlying data-region offset, optionally allocating on demand.
func (fsys *FS) blockForOffset(in *Inode, off uint64, alloc bool) (uint64, bool, error) {
	slot := int(off / BlockSize)
	if slot >= NBlocks-1+PointersPerIndirect {
		return 0, false, ErrFileTooBig
	}
	return fsys.blockPointer(in, slot, alloc)
}

func (fsys *FS) allocZeroedBlock() (uint64, error) {
	idx, err := fsys.ds.AllocateDataBlock()
	if err != nil {
		return 0, err
	}
	zero := make([]byte, BlockSize)
	if err := fsys.ds.WriteDataBlock(idx, zero, false); err != nil {
		return 0, err
	}
	return fsys.ds.sb.DataBlockOffset(idx), nil
}

func (fsys *FS) freeBlock(off uint64) {
	if off == 0 {
		return
	}
	fsys.ds.FreeDataBlock(fsys.ds.sb.blockIndexFromOffset(off))
}

func (fsys *FS) readIndirect(off uint64) ([]uint64, error) {
	idx := fsys.ds.sb.blockIndexFromOffset(off)
	buf, err := fsys.ds.ReadDataBlock(idx, false)
	if err != nil {
		return nil, err
	}
	pointers := make([]uint64, PointersPerIndirect)
	for i := range pointers {
		pointers[i] = byteOrder.Uint64(buf[i*8 : i*8+8])
	}
	return pointers, nil
}

func (fsys *FS) writeIndirect(off uint64, pointers []uint64) error {
	idx := fsys.ds.sb.blockIndexFromOffset(off)
	buf := make([]byte, BlockSize)
	for i, p := range pointers {
		byteOrder.PutUint64(buf[i*8:i*8+8], p)
	}
	return fsys.ds.WriteDataBlock(idx, buf, false)
}
