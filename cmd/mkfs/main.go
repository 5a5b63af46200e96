// Command mkfs formats a set of fixed-size disk image files as a wfs
// filesystem: a superblock, both bitmaps, an empty inode table and a root
// directory, replicated onto every disk in the set.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/wfsfs/wfs"
)

const usage = `Usage: mkfs -r <raid mode> -d <disk image file> -d <disk image file> ... -i <inode count> -b <data block count>
	-r RAID mode: 0 (striping) or 1 (mirroring)
	-d Specifies a disk file (can be used multiple times, max 10)
	-i Number of inodes in the filesystem (rounded up to a multiple of 32)
	-b Number of data blocks in the filesystem (rounded up to a multiple of 32)
`

func roundUp32(n int) uint32 {
	if n%32 == 0 {
		return uint32(n)
	}
	return uint32(n + (32 - n%32))
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, wfs.ErrFilesystemTooLarge) {
			os.Exit(255)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	raidMode := -1
	var disks []string
	inodeCount, blockCount := 0, 0

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-r":
			i++
			if i >= len(args) {
				return fmt.Errorf(usage)
			}
			v, err := strconv.Atoi(args[i])
			if err != nil || (v != 0 && v != 1) {
				return fmt.Errorf("invalid RAID mode, use 0 (striping) or 1 (mirroring)")
			}
			raidMode = v
		case "-d":
			i++
			if i >= len(args) {
				return fmt.Errorf(usage)
			}
			if len(disks) >= 10 {
				return fmt.Errorf("too many disk files specified (maximum 10)")
			}
			disks = append(disks, args[i])
		case "-i":
			i++
			if i >= len(args) {
				return fmt.Errorf(usage)
			}
			v, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("invalid inode count: %s", args[i])
			}
			inodeCount = v
		case "-b":
			i++
			if i >= len(args) {
				return fmt.Errorf(usage)
			}
			v, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("invalid data block count: %s", args[i])
			}
			blockCount = v
		default:
			return fmt.Errorf(usage)
		}
	}

	if raidMode == -1 || len(disks) == 0 || inodeCount == 0 || blockCount == 0 {
		return fmt.Errorf(usage)
	}
	if raidMode == 1 && len(disks) < 2 {
		return fmt.Errorf("RAID 1 (mirroring) requires at least two disks")
	}

	mode := wfs.RaidStriped
	if raidMode == 1 {
		mode = wfs.RaidMirrored
	}

	return wfs.Format(wfs.FormatOptions{
		DiskPaths: disks,
		NumInodes: roundUp32(inodeCount),
		NumBlocks: roundUp32(blockCount),
		Mode:      mode,
	})
}
