/*
This file is part of xsz.

Xsz is free software: you can redistribute it and/or modify it under the terms of the
GNU Lesser General Public License as published by the Free Software Foundation, either
version 3 of the License, or (at your option) any later version.

Xsz is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
See the GNU Lesser General Public License for more details.

You should have received a copy of the GNU Lesser General Public License along with xsz.
If not, see <https://www.gnu.org/licenses/>.
*/

package btrfsioctl

// SearchKey mirrors struct btrfs_ioctl_search_key. Field order matters:
// it is marshaled with encoding/binary, not via Go's native memory layout.
type SearchKey struct {
	TreeID       uint64
	MinObjectID  uint64
	MaxObjectID  uint64
	MinOffset    uint64
	MaxOffset    uint64
	MinTransID   uint64
	MaxTransID   uint64
	MinType      uint32
	MaxType      uint32
	NrItems      uint32
	Unused       uint32
	Unused1      uint64
	Unused2      uint64
	Unused3      uint64
	Unused4      uint64
}

// searchArgsV2 mirrors the fixed-size header of struct
// btrfs_ioctl_search_args_v2; BufSize bytes of caller-owned buffer follow
// it in memory, standing in for the kernel struct's flexible array member.
type searchArgsV2 struct {
	Key     SearchKey
	BufSize uint64
}

// SearchHeader mirrors struct btrfs_ioctl_search_header, the per-item
// header the kernel writes ahead of each item's payload into the search
// buffer.
type SearchHeader struct {
	Transid  uint64
	Objectid uint64
	Offset   uint64
	Type     uint32
	Len      uint32
}

// fsInfoArgs mirrors struct btrfs_ioctl_fs_info_args at its full 1 KiB
// size, which the FS_INFO ioctl number encodes. Only the leading fields
// this tool reads are named; Pad covers csum_type/csum_size and Reserved
// covers flags, generation, metadata_uuid and the kernel's own padding.
type fsInfoArgs struct {
	MaxID       uint64
	NumDevices  uint64
	FSID        [16]byte
	Nodesize    uint32
	Sectorsize  uint32
	Clonealign  uint32
	Pad         uint32
	Reserved    [976]byte
}

// Btrfs key types this tool cares about (linux/btrfs_tree.h).
const (
	// ExtentDataKey identifies a btrfs_file_extent_item in the fs tree.
	ExtentDataKey uint32 = 108
)

// fileExtentHeader mirrors the common prefix of struct
// btrfs_file_extent_item, present for every extent type including inline.
type fileExtentHeader struct {
	Generation    uint64
	RAMBytes      uint64
	Compression   uint8
	Encryption    uint8
	OtherEncoding uint16
	Type          uint8
}

// fileExtentRegular mirrors the fields that follow fileExtentHeader for
// FileExtentRegular and FileExtentPrealloc items (absent for inline ones).
type fileExtentRegular struct {
	DiskBytenr   uint64
	DiskNumBytes uint64
	Offset       uint64
	NumBytes     uint64
}

// FileExtentKind is the btrfs_file_extent_item type tag.
type FileExtentKind uint8

const (
	FileExtentInline   FileExtentKind = 0
	FileExtentRegular  FileExtentKind = 1
	FileExtentPrealloc FileExtentKind = 2
)

// CompressionType is the btrfs_file_extent_item compression tag.
type CompressionType uint8

const (
	CompressionNone CompressionType = 0
	CompressionZlib CompressionType = 1
	CompressionLZO  CompressionType = 2
	CompressionZstd CompressionType = 3
	// CompressionUnknown is synthesized by this package for any tag it
	// does not recognize; it is never present on the wire.
	CompressionUnknown CompressionType = 0xff
)

// String renders the compression tag the way reports key off of: the
// lowercase algorithm name, or "unknown" for anything unrecognized.
func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionLZO:
		return "lzo"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

func compressionFromTag(tag uint8) CompressionType {
	switch tag {
	case uint8(CompressionNone), uint8(CompressionZlib), uint8(CompressionLZO), uint8(CompressionZstd):
		return CompressionType(tag)
	default:
		return CompressionUnknown
	}
}
