// Command wfs mounts a previously-formatted set of disk image files as a
// FUSE filesystem. Its leading positional arguments are disk image paths
// (their count must match the filesystem's own superblock); the argument
// after them is the mount point. Arguments after the mount point are not
// used: no options are passed on to the FUSE mount layer.
package main

import (
	"fmt"
	"os"

	"github.com/wfsfs/wfs"
)

const usage = `Usage: wfs <disk image file> [<disk image file> ...] <mountpoint> [fuse options]
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf(usage)
	}

	// The first run of arguments that stat() as existing non-directory files
	// are disk images; the first one that starts with '-', does not exist or
	// is a directory ends the list and is taken as the mountpoint.
	var disks []string
	i := 0
	for ; i < len(args); i++ {
		if args[i][0] == '-' {
			break
		}
		if fi, err := os.Stat(args[i]); err != nil || fi.IsDir() {
			break
		}
		disks = append(disks, args[i])
	}
	if len(disks) == 0 || i >= len(args) {
		return fmt.Errorf(usage)
	}
	mountPoint := args[i]

	ds, err := wfs.OpenDiskSet(disks)
	if err != nil {
		return err
	}
	fsys := wfs.New(ds)
	defer fsys.Close()

	stopDebug := wfs.InstallDebugHandler(fsys)
	defer stopDebug()

	server, err := wfs.Mount(mountPoint, fsys, false)
	if err != nil {
		return fmt.Errorf("wfs: mount %s: %w", mountPoint, err)
	}
	server.Wait()
	return nil
}
