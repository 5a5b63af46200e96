package wfs

import (
	"bytes"
	"encoding/binary"
)

// Inode is the fixed-size on-disk inode record. One inode occupies exactly
// one BlockSize slot in the inode table, mirroring the original design
// where every table entry, used or not, has identical size.
type Inode struct {
	Num    uint32
	Mode   uint32
	Uid    uint32
	Gid    uint32
	Size   uint64
	Nlinks uint32
	Atim   int64
	Mtim   int64
	Ctim   int64
	Blocks [NBlocks]uint64
}

// Kind reports whether the inode is a regular file or a directory.
func (in *Inode) Kind() Kind {
	return kindOf(in.Mode)
}

// Attr is the subset of inode fields the FUSE bridge needs to fill a
// fuse.Attr, kept separate from Inode so the bridge never touches the raw
// on-disk struct directly.
type Attr struct {
	Ino    uint32
	Mode   uint32
	Uid    uint32
	Gid    uint32
	Size   uint64
	Nlinks uint32
	Atim   int64
	Mtim   int64
	Ctim   int64
	Kind   Kind
}

// Attr projects the inode's externally-visible fields.
func (in *Inode) Attr() Attr {
	return Attr{
		Ino:    in.Num,
		Mode:   in.Mode,
		Uid:    in.Uid,
		Gid:    in.Gid,
		Size:   in.Size,
		Nlinks: in.Nlinks,
		Atim:   in.Atim,
		Mtim:   in.Mtim,
		Ctim:   in.Ctim,
		Kind:   in.Kind(),
	}
}

// MarshalBinary encodes the inode, field by field in declared order, into a
// BlockSize-sized slot (zero-padded past the struct's actual size).
func (in *Inode) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	fields := []interface{}{
		in.Num, in.Mode, in.Uid, in.Gid, in.Size, in.Nlinks,
		in.Atim, in.Mtim, in.Ctim, in.Blocks,
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	out := make([]byte, BlockSize)
	copy(out, buf.Bytes())
	return out, nil
}

// UnmarshalBinary decodes an inode from a BlockSize-sized table slot.
func (in *Inode) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	fields := []interface{}{
		&in.Num, &in.Mode, &in.Uid, &in.Gid, &in.Size, &in.Nlinks,
		&in.Atim, &in.Mtim, &in.Ctim, &in.Blocks,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// InodeSize is the number of bytes an Inode actually occupies once encoded,
// well under BlockSize so the remainder of the slot is zero padding.
func InodeSize() int {
	return 4 + 4 + 4 + 4 + 8 + 4 + 8 + 8 + 8 + NBlocks*8
}
