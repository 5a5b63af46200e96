package wfs

import (
	"bytes"
	"testing"
)

func TestStripeOwnerRoundRobin(t *testing.T) {
	fsys := makeDiskSet(t, 3, RaidStriped, 32, 32)
	defer fsys.Close()

	for i := uint32(0); i < 6; i++ {
		want := int(i) % 3
		if got := fsys.ds.StripeOwner(i); got != want {
			t.Errorf("StripeOwner(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestMirroredWriteReplicatesToEveryDisk(t *testing.T) {
	fsys := makeDiskSet(t, 3, RaidMirrored, 32, 32)
	defer fsys.Close()

	if _, err := fsys.Mknod("/f", S_IFREG|0644); err != nil {
		t.Fatalf("Mknod: %v", err)
	}
	payload := []byte("mirrored payload")
	if _, err := fsys.Write("/f", payload, 0); err != nil {
		t.Fatalf("Write: %v", err)
	}

	in, err := fsys.readInode(1) // first inode allocated after root
	if err != nil {
		t.Fatalf("readInode: %v", err)
	}
	off := in.Blocks[0]
	idx := fsys.ds.sb.blockIndexFromOffset(off)

	for d, disk := range fsys.ds.disks {
		start := fsys.ds.sb.DataBlockOffset(idx)
		got := disk.data[start : start+uint64(len(payload))]
		if !bytes.Equal(got, payload) {
			t.Errorf("disk %d does not carry the mirrored payload: got %q", d, got)
		}
	}
}

func TestReadBlockVotedRepairsMinorityDisk(t *testing.T) {
	fsys := makeDiskSet(t, 3, RaidMirrored, 32, 32)
	defer fsys.Close()

	if _, err := fsys.Mknod("/f", S_IFREG|0644); err != nil {
		t.Fatalf("Mknod: %v", err)
	}
	payload := make([]byte, 100)
	copy(payload, []byte("good data"))
	if _, err := fsys.Write("/f", payload, 0); err != nil {
		t.Fatalf("Write: %v", err)
	}

	in, err := fsys.readInode(1)
	if err != nil {
		t.Fatalf("readInode: %v", err)
	}
	off := in.Blocks[0]
	idx := fsys.ds.sb.blockIndexFromOffset(off)
	start := fsys.ds.sb.DataBlockOffset(idx)

	// Corrupt disk 2's copy only; disks 0 and 1 still agree and form the
	// majority, so the read should serve their content and repair disk 2.
	copy(fsys.ds.disks[2].data[start:start+BlockSize], bytes.Repeat([]byte{0xff}, BlockSize))

	out := make([]byte, len(payload))
	n, err := fsys.Read("/f", out, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(payload) || !bytes.Equal(out, payload) {
		t.Fatalf("expected majority-vote read to serve the uncorrupted data")
	}

	repaired := fsys.ds.disks[2].data[start : start+BlockSize]
	original := fsys.ds.disks[0].data[start : start+BlockSize]
	if !bytes.Equal(repaired, original) {
		t.Fatalf("expected the corrupted disk's copy to be repaired to match the majority")
	}
}

func TestReadBlockVotedTieBreaksToLowestDisk(t *testing.T) {
	fsys := makeDiskSet(t, 4, RaidMirrored, 32, 32)
	defer fsys.Close()

	if _, err := fsys.Mknod("/f", S_IFREG|0644); err != nil {
		t.Fatalf("Mknod: %v", err)
	}
	payload := make([]byte, 64)
	copy(payload, []byte("original"))
	if _, err := fsys.Write("/f", payload, 0); err != nil {
		t.Fatalf("Write: %v", err)
	}

	in, err := fsys.readInode(1)
	if err != nil {
		t.Fatalf("readInode: %v", err)
	}
	off := in.Blocks[0]
	idx := fsys.ds.sb.blockIndexFromOffset(off)
	start := fsys.ds.sb.DataBlockOffset(idx)

	// Split 4 disks into two pairs with different content: disks {0,1}
	// keep the original, disks {2,3} get a different value. It's a 2-2
	// tie, so the lowest-indexed group (0) must win.
	altered := bytes.Repeat([]byte{0xaa}, BlockSize)
	copy(fsys.ds.disks[2].data[start:start+BlockSize], altered)
	copy(fsys.ds.disks[3].data[start:start+BlockSize], altered)

	out := make([]byte, len(payload))
	if _, err := fsys.Read("/f", out, 0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("expected a 2-2 tie to resolve to the lowest-indexed disk group")
	}
}
