package wfs

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// diskImage is one backing file, mmap'd in full so every region (bitmaps,
// inode table, data blocks) is addressable as a plain byte slice.
type diskImage struct {
	f    *os.File
	data []byte
}

// DiskSet bundles the disk images that make up one filesystem instance plus
// the superblock that describes their shared layout. It replaces the C
// original's global disk array and superblock pointer: every accessor in
// this package hangs off a *DiskSet or the *FS that wraps one.
type DiskSet struct {
	disks []*diskImage
	sb    Superblock
}

// OpenDiskSet mmaps every path in order. Disk order is significant: it is
// the striping order and the tie-break order for majority voting.
func OpenDiskSet(paths []string) (*DiskSet, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("wfs: no disks given")
	}

	ds := &DiskSet{}
	for _, p := range paths {
		f, err := os.OpenFile(p, os.O_RDWR, 0)
		if err != nil {
			ds.Close()
			return nil, fmt.Errorf("wfs: open %s: %w", p, err)
		}
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			ds.Close()
			return nil, err
		}
		data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			ds.Close()
			return nil, fmt.Errorf("wfs: mmap %s: %w", p, err)
		}
		ds.disks = append(ds.disks, &diskImage{f: f, data: data})
	}

	var sb Superblock
	if err := sb.UnmarshalBinary(ds.disks[0].data); err != nil {
		ds.Close()
		return nil, fmt.Errorf("wfs: reading superblock: %w", err)
	}
	ds.sb = sb

	if int(sb.DiskCount) != len(paths) {
		ds.Close()
		return nil, fmt.Errorf("wfs: superblock expects %d disks, got %d", sb.DiskCount, len(paths))
	}
	for i, d := range ds.disks {
		if uint64(len(d.data)) < sb.TotalSize() {
			ds.Close()
			return nil, fmt.Errorf("wfs: disk %d too small for filesystem layout", i)
		}
	}

	return ds, nil
}

// Close unmaps and closes every backing disk.
func (ds *DiskSet) Close() error {
	var first error
	for _, d := range ds.disks {
		if d.data != nil {
			if err := unix.Munmap(d.data); err != nil && first == nil {
				first = err
			}
		}
		if d.f != nil {
			if err := d.f.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Superblock returns a copy of the shared layout.
func (ds *DiskSet) Superblock() Superblock {
	return ds.sb
}

// DiskCount returns the number of disks in the set.
func (ds *DiskSet) DiskCount() int {
	return len(ds.disks)
}

// InodeBitmap views disk 0's inode bitmap; metadata, including bitmaps, is
// mirrored on every disk so any one copy reflects the allocator's state.
func (ds *DiskSet) InodeBitmap() *Bitmap {
	start := ds.sb.IBitmapPtr
	end := ds.sb.DBitmapPtr
	return NewBitmap(ds.disks[0].data[start:end], int(ds.sb.NumInodes))
}

// DataBitmap views disk 0's data-block bitmap.
func (ds *DiskSet) DataBitmap() *Bitmap {
	start := ds.sb.DBitmapPtr
	end := ds.sb.IBlocksPtr
	return NewBitmap(ds.disks[0].data[start:end], int(ds.sb.NumDataBlocks))
}

// mirrorBitmaps copies disk 0's bitmap region onto every other disk. Called
// after an allocator mutation so every disk's copy of the metadata agrees,
// matching the C original's replicate_dataMap/replicate_inode helpers.
func (ds *DiskSet) mirrorBitmaps() {
	region := ds.disks[0].data[ds.sb.IBitmapPtr:ds.sb.IBlocksPtr]
	for _, d := range ds.disks[1:] {
		copy(d.data[ds.sb.IBitmapPtr:ds.sb.IBlocksPtr], region)
	}
}

// AllocateInode reserves the lowest-numbered free inode slot.
func (ds *DiskSet) AllocateInode() (uint32, error) {
	bm := ds.InodeBitmap()
	i := bm.Allocate()
	if i < 0 {
		return 0, ErrNoSpace
	}
	ds.mirrorBitmaps()
	return uint32(i), nil
}

// FreeInode releases an inode slot back to the allocator.
func (ds *DiskSet) FreeInode(ino uint32) {
	ds.InodeBitmap().Free(int(ino))
	ds.mirrorBitmaps()
}

// AllocateDataBlock reserves the lowest-numbered free data block.
func (ds *DiskSet) AllocateDataBlock() (uint32, error) {
	bm := ds.DataBitmap()
	i := bm.Allocate()
	if i < 0 {
		return 0, ErrNoSpace
	}
	ds.mirrorBitmaps()
	return uint32(i), nil
}

// FreeDataBlock releases a data block back to the allocator.
func (ds *DiskSet) FreeDataBlock(idx uint32) {
	ds.DataBitmap().Free(int(idx))
	ds.mirrorBitmaps()
}

// StripeOwner returns which disk owns a given data block's payload bytes
// under striped mode: deterministic, round-robin by block index.
func (ds *DiskSet) StripeOwner(blockIdx uint32) int {
	return int(blockIdx) % len(ds.disks)
}

// metadataDisks returns every disk, since metadata (inodes, directory
// blocks, bitmaps, the superblock) is always fully mirrored regardless of
// RaidMode — only regular-file payload bytes are striped.
func (ds *DiskSet) metadataDisks() []*diskImage {
	return ds.disks
}

// ReadInode reads and decodes inode ino. Inode records are metadata, so
// majority-vote repair applies the same as any other metadata block.
func (ds *DiskSet) ReadInode(ino uint32) (*Inode, error) {
	off := ds.sb.InodeOffset(ino)
	buf, err := ds.readMetadata(off, BlockSize)
	if err != nil {
		return nil, err
	}
	in := &Inode{}
	if err := in.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return in, nil
}

// WriteInode encodes and replicates inode ino onto every disk.
func (ds *DiskSet) WriteInode(in *Inode) error {
	buf, err := in.MarshalBinary()
	if err != nil {
		return err
	}
	off := ds.sb.InodeOffset(in.Num)
	ds.writeMetadata(off, buf)
	return nil
}

// readMetadata performs a majority-vote read across every disk's copy of
// the region [off, off+n) and repairs any disk whose copy disagrees with
// the winning majority. Ties resolve to the lowest disk index, since the
// vote tally is only updated on a strictly greater count.
func (ds *DiskSet) readMetadata(off uint64, n int) ([]byte, error) {
	return ds.readVoted(ds.metadataDisks(), off, n)
}

func (ds *DiskSet) writeMetadata(off uint64, buf []byte) {
	for _, d := range ds.metadataDisks() {
		copy(d.data[off:off+uint64(len(buf))], buf)
	}
}

func (ds *DiskSet) readVoted(disks []*diskImage, off uint64, n int) ([]byte, error) {
	copies := make([][]byte, len(disks))
	for i, d := range disks {
		if off+uint64(n) > uint64(len(d.data)) {
			return nil, fmt.Errorf("wfs: read past end of disk")
		}
		copies[i] = d.data[off : off+uint64(n)]
	}

	votes := make([]int, len(copies))
	for i := range copies {
		for j := range copies {
			if bytes.Equal(copies[i], copies[j]) {
				votes[i]++
			}
		}
	}
	best := 0
	for i := 1; i < len(votes); i++ {
		if votes[i] > votes[best] {
			best = i
		}
	}

	winner := make([]byte, n)
	copy(winner, copies[best])

	for i, d := range disks {
		if !bytes.Equal(copies[i], winner) {
			copy(d.data[off:off+uint64(n)], winner)
		}
	}

	return winner, nil
}

// ReadDataBlock reads data block idx. fileData distinguishes regular-file
// payload blocks (striped under RaidStriped) from everything else
// (directory blocks, indirect blocks), which stay mirrored in both modes.
func (ds *DiskSet) ReadDataBlock(idx uint32, fileData bool) ([]byte, error) {
	off := ds.sb.DataBlockOffset(idx)
	if ds.sb.Mode == RaidStriped && fileData {
		owner := ds.disks[ds.StripeOwner(idx)]
		if off+BlockSize > uint64(len(owner.data)) {
			return nil, fmt.Errorf("wfs: read past end of disk")
		}
		out := make([]byte, BlockSize)
		copy(out, owner.data[off:off+BlockSize])
		return out, nil
	}
	return ds.readVoted(ds.disks, off, BlockSize)
}

// WriteDataBlock writes data block idx, striping to its owner disk only
// when in RaidStriped mode and the block is regular-file payload;
// otherwise mirroring the write to every disk.
func (ds *DiskSet) WriteDataBlock(idx uint32, buf []byte, fileData bool) error {
	off := ds.sb.DataBlockOffset(idx)
	if ds.sb.Mode == RaidStriped && fileData {
		owner := ds.disks[ds.StripeOwner(idx)]
		copy(owner.data[off:off+BlockSize], buf)
		return nil
	}
	for _, d := range ds.disks {
		copy(d.data[off:off+BlockSize], buf)
	}
	return nil
}
