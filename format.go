package wfs

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// FormatOptions configures a call to Format.
type FormatOptions struct {
	DiskPaths []string
	NumInodes uint32
	NumBlocks uint32
	Mode      RaidMode
}

// Format lays out a brand new filesystem across an already-created set of
// fixed-size disk image files: a superblock, both bitmaps, an empty inode
// table and a root directory inode, replicated identically to every disk.
// Every region's size is known up front from the requested inode/block
// counts, so the superblock is computed first and written before the
// bitmap and the root inode, in a single ordered pass with no backpatching.
func Format(opts FormatOptions) error {
	if len(opts.DiskPaths) == 0 {
		return fmt.Errorf("wfs: no disks given")
	}
	if opts.Mode == RaidMirrored && len(opts.DiskPaths) < 2 {
		return fmt.Errorf("wfs: mirrored mode requires at least 2 disks")
	}
	if opts.NumInodes == 0 || opts.NumBlocks == 0 {
		return fmt.Errorf("wfs: inode and data block counts must be nonzero")
	}

	sb := ComputeLayout(opts.NumInodes, opts.NumBlocks, opts.Mode, len(opts.DiskPaths))
	total := sb.TotalSize()

	files := make([]*os.File, 0, len(opts.DiskPaths))
	mappings := make([][]byte, 0, len(opts.DiskPaths))
	defer func() {
		for _, m := range mappings {
			unix.Munmap(m)
		}
		for _, f := range files {
			f.Close()
		}
	}()

	var diskSpace uint64
	for _, p := range opts.DiskPaths {
		f, err := os.OpenFile(p, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("wfs: open %s: %w", p, err)
		}
		files = append(files, f)

		fi, err := f.Stat()
		if err != nil {
			return fmt.Errorf("wfs: stat %s: %w", p, err)
		}
		diskSpace += uint64(fi.Size())

		if opts.Mode == RaidMirrored && uint64(fi.Size()) < total {
			return fmt.Errorf("wfs: disk %s (%d bytes) too small to hold the filesystem (%d bytes); every disk must hold the full filesystem in mirrored mode: %w", p, fi.Size(), total, ErrFilesystemTooLarge)
		}

		data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return fmt.Errorf("wfs: mmap %s: %w", p, err)
		}
		mappings = append(mappings, data)
	}

	if opts.Mode == RaidStriped && total > diskSpace/uint64(len(opts.DiskPaths)) {
		return fmt.Errorf("wfs: filesystem size %d exceeds per-disk share of striped capacity: %w", total, ErrFilesystemTooLarge)
	}

	for _, m := range mappings {
		for i := range m[:total] {
			m[i] = 0
		}
	}

	sbBytes, err := sb.MarshalBinary()
	if err != nil {
		return err
	}
	for _, m := range mappings {
		copy(m, sbBytes)
	}

	// Mark inode 0 (the root) allocated in the inode bitmap, then mirror
	// that bitmap byte onto every disk.
	bm := NewBitmap(mappings[0][sb.IBitmapPtr:sb.DBitmapPtr], int(sb.NumInodes))
	if bm.Allocate() != 0 {
		return fmt.Errorf("wfs: internal error allocating root inode")
	}
	for _, m := range mappings[1:] {
		copy(m[sb.IBitmapPtr:sb.DBitmapPtr], mappings[0][sb.IBitmapPtr:sb.DBitmapPtr])
	}

	t := time.Now().Unix()
	root := &Inode{
		Num:    RootInode,
		Mode:   S_IFDIR | 0755,
		Uid:    uint32(os.Getuid()),
		Gid:    uint32(os.Getgid()),
		Size:   0,
		Nlinks: 2,
		Atim:   t,
		Mtim:   t,
		Ctim:   t,
	}
	rootBuf, err := root.MarshalBinary()
	if err != nil {
		return err
	}
	rootOff := sb.InodeOffset(RootInode)
	for _, m := range mappings {
		copy(m[rootOff:rootOff+BlockSize], rootBuf)
	}

	return nil
}
