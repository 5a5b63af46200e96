package wfs

import "testing"

func TestInodeRoundTrip(t *testing.T) {
	in := &Inode{
		Num:    3,
		Mode:   S_IFREG | 0644,
		Uid:    1000,
		Gid:    1000,
		Size:   4096,
		Nlinks: 1,
		Atim:   111,
		Mtim:   222,
		Ctim:   333,
	}
	in.Blocks[0] = 512
	in.Blocks[IndBlock] = 1024

	buf, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(buf) != BlockSize {
		t.Fatalf("expected inode slot to be %d bytes, got %d", BlockSize, len(buf))
	}

	var out Inode
	if err := out.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if out != *in {
		t.Fatalf("round-tripped inode mismatch: got %+v, want %+v", out, *in)
	}
}

func TestKindOf(t *testing.T) {
	if kindOf(S_IFDIR|0755) != Directory {
		t.Fatalf("expected S_IFDIR to be classified as Directory")
	}
	if kindOf(S_IFREG|0644) != Regular {
		t.Fatalf("expected S_IFREG to be classified as Regular")
	}
}
