package wfs

import (
	"os"
	"path/filepath"
	"testing"
)

// makeDiskSet formats numDisks fresh temp files as a wfs filesystem and
// opens them, returning an *FS the caller should Close.
func makeDiskSet(t *testing.T, numDisks int, mode RaidMode, numInodes, numBlocks uint32) *FS {
	t.Helper()

	sb := ComputeLayout(numInodes, numBlocks, mode, numDisks)
	size := int64(sb.TotalSize())

	dir := t.TempDir()
	var paths []string
	for i := 0; i < numDisks; i++ {
		p := filepath.Join(dir, "disk"+string(rune('0'+i)))
		f, err := os.Create(p)
		if err != nil {
			t.Fatalf("create disk file: %v", err)
		}
		if err := f.Truncate(size); err != nil {
			t.Fatalf("truncate disk file: %v", err)
		}
		f.Close()
		paths = append(paths, p)
	}

	if err := Format(FormatOptions{
		DiskPaths: paths,
		NumInodes: numInodes,
		NumBlocks: numBlocks,
		Mode:      mode,
	}); err != nil {
		t.Fatalf("Format: %v", err)
	}

	ds, err := OpenDiskSet(paths)
	if err != nil {
		t.Fatalf("OpenDiskSet: %v", err)
	}
	return New(ds)
}
