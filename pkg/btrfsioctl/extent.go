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

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// ExtentKey uniquely identifies a physical extent within one filesystem.
// DeviceID namespaces PhysicalOffset across distinct filesystems traversed
// in the same run (bind mounts of the same fs share a DeviceID and so
// correctly dedupe; two different filesystems never collide even if their
// raw byte offsets happen to match).
type ExtentKey struct {
	DeviceID       [16]byte
	PhysicalOffset uint64
}

// ExtentRecord is one physical extent reference, as described by spec.md's
// data model.
type ExtentRecord struct {
	Compression        CompressionType
	Kind               FileExtentKind
	DiskBytes          uint64
	UncompressedBytes  uint64
	ReferencedBytes    uint64
	Key                ExtentKey
	HasKey             bool
}

var warnUnknownCompression sync.Once

// SetUnknownCompressionWarning installs the callback fired the first time
// this process observes a compression tag outside the known set. It is a
// one-shot per process, matching spec.md §9's "a single unknown id
// observed in the wild should trigger a one-line warning, not an error".
func SetUnknownCompressionWarning(fn func(tag uint8)) {
	unknownCompressionWarn = fn
}

var unknownCompressionWarn func(tag uint8)

// FileExtentItems enumerates the EXTENT_DATA_KEY items belonging to inode
// ino, reachable through fd (an open fd anywhere inside the containing
// subvolume -- the kernel resolves tree_id 0 to fd's own subvolume), and
// calls fn once per non-hole extent record. Holes (disk_bytenr == 0 on a
// regular/prealloc item) are skipped silently per spec.md §4.4.
func FileExtentItems(s *Searcher, fd uintptr, deviceID [16]byte, ino uint64, fn func(ExtentRecord) error) error {
	key := SearchKey{
		MinObjectID: ino,
		MaxObjectID: ino,
		MinType:     ExtentDataKey,
		MaxType:     ExtentDataKey,
		MaxOffset:   math.MaxUint64,
	}
	return s.Search(fd, key, key, func(item TreeItem) error {
		if item.Header.Type != ExtentDataKey {
			return nil
		}
		rec, ok, err := decodeFileExtentItem(item.Data, deviceID)
		if err != nil {
			return fmt.Errorf("decode extent item for inode %d: %w", ino, err)
		}
		if !ok {
			return nil
		}
		return fn(rec)
	})
}

func decodeFileExtentItem(data []byte, deviceID [16]byte) (ExtentRecord, bool, error) {
	r := bytes.NewReader(data)
	var hdr fileExtentHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return ExtentRecord{}, false, fmt.Errorf("read header: %w", err)
	}
	comp := compressionFromTag(hdr.Compression)
	if comp == CompressionUnknown && unknownCompressionWarn != nil {
		warnUnknownCompression.Do(func() { unknownCompressionWarn(hdr.Compression) })
	}

	kind := FileExtentKind(hdr.Type)
	if kind == FileExtentInline {
		return ExtentRecord{
			Compression:       comp,
			Kind:              kind,
			ReferencedBytes:    hdr.RAMBytes,
			UncompressedBytes: hdr.RAMBytes,
		}, true, nil
	}

	var reg fileExtentRegular
	if err := binary.Read(r, binary.LittleEndian, &reg); err != nil {
		return ExtentRecord{}, false, fmt.Errorf("read regular fields: %w", err)
	}
	if reg.DiskBytenr == 0 {
		// Sparse hole: no backing extent, skip silently.
		return ExtentRecord{}, false, nil
	}
	return ExtentRecord{
		Compression:       comp,
		Kind:              kind,
		DiskBytes:         reg.DiskNumBytes,
		UncompressedBytes: hdr.RAMBytes,
		ReferencedBytes:   reg.NumBytes,
		Key:               ExtentKey{DeviceID: deviceID, PhysicalOffset: reg.DiskBytenr},
		HasKey:            true,
	}, true, nil
}
