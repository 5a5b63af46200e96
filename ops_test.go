package wfs

import (
	"bytes"
	"testing"
)

func TestMkdirAndLookup(t *testing.T) {
	fsys := makeDiskSet(t, 1, RaidStriped, 32, 32)
	defer fsys.Close()

	if _, err := fsys.Mkdir("/sub", S_IFDIR|0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	attr, err := fsys.Getattr("/sub")
	if err != nil {
		t.Fatalf("Getattr(/sub): %v", err)
	}
	if attr.Kind != Directory {
		t.Fatalf("expected /sub to be a directory")
	}

	root, err := fsys.Getattr("/")
	if err != nil {
		t.Fatalf("Getattr(/): %v", err)
	}
	if root.Nlinks != 3 {
		t.Fatalf("expected root nlinks to be bumped to 3 after mkdir, got %d", root.Nlinks)
	}
}

func TestMknodExistsFails(t *testing.T) {
	fsys := makeDiskSet(t, 1, RaidStriped, 32, 32)
	defer fsys.Close()

	if _, err := fsys.Mknod("/f", S_IFREG|0644); err != nil {
		t.Fatalf("Mknod: %v", err)
	}
	if _, err := fsys.Mknod("/f", S_IFREG|0644); err == nil {
		t.Fatalf("expected second Mknod of the same path to fail with EEXIST")
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	fsys := makeDiskSet(t, 1, RaidStriped, 32, 64)
	defer fsys.Close()

	if _, err := fsys.Mknod("/f", S_IFREG|0644); err != nil {
		t.Fatalf("Mknod: %v", err)
	}

	payload := bytes.Repeat([]byte("wfs"), 1200) // spans several blocks and the indirect pointer
	n, err := fsys.Write("/f", payload, 0)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("expected to write %d bytes, wrote %d", len(payload), n)
	}

	out := make([]byte, len(payload))
	n, err = fsys.Read("/f", out, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("expected to read %d bytes, read %d", len(payload), n)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("read data does not match what was written")
	}
}

func TestWriteSizeIsMaxNotSum(t *testing.T) {
	fsys := makeDiskSet(t, 1, RaidStriped, 32, 32)
	defer fsys.Close()

	if _, err := fsys.Mknod("/f", S_IFREG|0644); err != nil {
		t.Fatalf("Mknod: %v", err)
	}

	if _, err := fsys.Write("/f", []byte("0123456789"), 0); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	attr, err := fsys.Getattr("/f")
	if err != nil {
		t.Fatalf("Getattr: %v", err)
	}
	if attr.Size != 10 {
		t.Fatalf("expected size 10 after first write, got %d", attr.Size)
	}

	// Overwriting the first 5 bytes must not add to size: size should stay
	// max(existing size, offset+written), not grow by the written length.
	if _, err := fsys.Write("/f", []byte("ABCDE"), 0); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	attr, err = fsys.Getattr("/f")
	if err != nil {
		t.Fatalf("Getattr: %v", err)
	}
	if attr.Size != 10 {
		t.Fatalf("expected size to remain 10 after an in-place overwrite, got %d", attr.Size)
	}
}

func TestReaddirSynthesizesDotEntries(t *testing.T) {
	fsys := makeDiskSet(t, 1, RaidStriped, 32, 32)
	defer fsys.Close()

	if _, err := fsys.Mknod("/a", S_IFREG|0644); err != nil {
		t.Fatalf("Mknod: %v", err)
	}

	entries, err := fsys.Readdir("/")
	if err != nil {
		t.Fatalf("Readdir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (., .., a), got %d", len(entries))
	}
	if entries[0].Name != "." || entries[1].Name != ".." {
		t.Fatalf("expected . and .. to be the first two entries, got %+v", entries[:2])
	}

	rootEntries, err := fsys.listEntries(func() *Inode {
		in, _ := fsys.readInode(RootInode)
		return in
	}())
	if err != nil {
		t.Fatalf("listEntries: %v", err)
	}
	for _, e := range rootEntries {
		if e.Name == "." || e.Name == ".." {
			t.Fatalf("did not expect . or .. to be stored on disk, found %q", e.Name)
		}
	}
}

func TestDirectoryPackingAfterRemove(t *testing.T) {
	fsys := makeDiskSet(t, 1, RaidStriped, 32, 32)
	defer fsys.Close()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := fsys.Mknod("/"+name, S_IFREG|0644); err != nil {
			t.Fatalf("Mknod(%s): %v", name, err)
		}
	}
	if err := fsys.Unlink("/a"); err != nil {
		t.Fatalf("Unlink(/a): %v", err)
	}

	root, err := fsys.readInode(RootInode)
	if err != nil {
		t.Fatalf("readInode: %v", err)
	}
	if root.Size != 2*entrySize {
		t.Fatalf("expected 2 packed entries after removing the first of three, got size %d", root.Size)
	}

	entries, err := fsys.listEntries(root)
	if err != nil {
		t.Fatalf("listEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Name == "a" {
			t.Fatalf("removed entry %q should not still be listed", e.Name)
		}
	}
}

func TestRmdirRequiresEmpty(t *testing.T) {
	fsys := makeDiskSet(t, 1, RaidStriped, 32, 32)
	defer fsys.Close()

	if _, err := fsys.Mkdir("/d", S_IFDIR|0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := fsys.Mknod("/d/f", S_IFREG|0644); err != nil {
		t.Fatalf("Mknod: %v", err)
	}
	if err := fsys.Rmdir("/d"); err == nil {
		t.Fatalf("expected Rmdir of a non-empty directory to fail")
	}
	if err := fsys.Unlink("/d/f"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if err := fsys.Rmdir("/d"); err != nil {
		t.Fatalf("expected Rmdir to succeed once empty: %v", err)
	}
}

func TestUnlinkThenLookupFails(t *testing.T) {
	fsys := makeDiskSet(t, 1, RaidStriped, 32, 32)
	defer fsys.Close()

	if _, err := fsys.Mknod("/f", S_IFREG|0644); err != nil {
		t.Fatalf("Mknod: %v", err)
	}
	if err := fsys.Unlink("/f"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if _, err := fsys.Getattr("/f"); err == nil {
		t.Fatalf("expected Getattr of an unlinked file to fail")
	}
}
