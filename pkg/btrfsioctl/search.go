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
	"io"
	"math"
)

// MinSearchBuffer is the smallest buffer this package will allocate for a
// TREE_SEARCH_V2 call; spec.md recommends at least 64 KiB.
const MinSearchBuffer = 64 * 1024

// TreeItem is one decoded (header, payload) pair out of a search buffer.
type TreeItem struct {
	Header SearchHeader
	Data   []byte
}

// searchArgsV2HeaderSize is the byte length of the args_v2 fixed header
// (SearchKey followed by BufSize) as laid out on the wire.
const searchArgsV2HeaderSize = 104 + 8

// Searcher issues repeated BTRFS_IOC_TREE_SEARCH_V2 calls and hands back
// decoded items one at a time. It owns and reuses a single buffer across
// calls and across files -- callers reuse Searchers (pkg/scanner keeps
// them in a sync.Pool) and pass the target fd to each Search call, rather
// than building a new Searcher (and buffer) per file. A Searcher must not
// be used by two goroutines at once.
type Searcher struct {
	buf []byte

	pending []TreeItem
}

// NewSearcher allocates a Searcher with a buffer of at least MinSearchBuffer
// bytes, reused across every Search call made through it.
func NewSearcher(bufSize int) *Searcher {
	if bufSize < MinSearchBuffer {
		bufSize = MinSearchBuffer
	}
	return &Searcher{buf: make([]byte, searchArgsV2HeaderSize+bufSize)}
}

// Search runs a bounded TREE_SEARCH_V2 scan of [min, max] against fd and
// calls fn for every item found, in key order, advancing the resume key
// between kernel calls. It returns once the range is exhausted or fn
// returns a non-nil error (fn's error is returned as-is).
func (s *Searcher) Search(fd uintptr, min, max SearchKey, fn func(TreeItem) error) error {
	key := min
	for {
		key.NrItems = math.MaxUint32
		n, err := s.fill(fd, &key, max)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		for i := 0; i < n; i++ {
			item := s.pending[i]
			if err := fn(item); err != nil {
				return err
			}
			key.MinObjectID = item.Header.Objectid
			key.MinType = item.Header.Type
			key.MinOffset = item.Header.Offset
		}
		if !advanceKey(&key, max) {
			return nil
		}
	}
}

// advanceKey steps the resume point past the last item returned, wrapping
// offset -> type -> objectid the way the kernel's search cursor does.
func advanceKey(key *SearchKey, max SearchKey) bool {
	if key.MinOffset != math.MaxUint64 {
		key.MinOffset++
		return true
	}
	key.MinOffset = 0
	if key.MinType != max.MaxType {
		key.MinType++
		return true
	}
	key.MinType = max.MinType
	if key.MinObjectID == max.MaxObjectID {
		return false
	}
	key.MinObjectID++
	return true
}

// fill issues one ioctl call against fd and decodes every item in the
// response into s.pending, returning the item count.
func (s *Searcher) fill(fd uintptr, key *SearchKey, max SearchKey) (int, error) {
	key.TreeID = max.TreeID
	key.MaxObjectID = max.MaxObjectID
	key.MaxOffset = math.MaxUint64
	key.MaxType = max.MaxType
	key.MaxTransID = math.MaxUint64

	hdr := &bytes.Buffer{}
	if err := binary.Write(hdr, binary.LittleEndian, key); err != nil {
		return 0, fmt.Errorf("encode search key: %w", err)
	}
	bufSize := uint64(len(s.buf) - searchArgsV2HeaderSize)
	if err := binary.Write(hdr, binary.LittleEndian, bufSize); err != nil {
		return 0, fmt.Errorf("encode buf_size: %w", err)
	}
	copy(s.buf[:searchArgsV2HeaderSize], hdr.Bytes())

	if err := ioctlBytes(fd, btrfsIocTreeSearchV2, s.buf); err != nil {
		return 0, fmt.Errorf("TREE_SEARCH_V2: %w", err)
	}

	var outKey SearchKey
	r := bytes.NewReader(s.buf[:searchArgsV2HeaderSize])
	if err := binary.Read(r, binary.LittleEndian, &outKey); err != nil {
		return 0, fmt.Errorf("decode search key: %w", err)
	}
	nrItems := int(outKey.NrItems)
	s.pending = s.pending[:0]
	body := bytes.NewReader(s.buf[searchArgsV2HeaderSize:])
	for i := 0; i < nrItems; i++ {
		var h SearchHeader
		if err := binary.Read(body, binary.LittleEndian, &h); err != nil {
			return 0, fmt.Errorf("decode search header %d/%d: %w", i, nrItems, err)
		}
		data := make([]byte, h.Len)
		if _, err := io.ReadFull(body, data); err != nil {
			return 0, fmt.Errorf("read item payload %d/%d: %w", i, nrItems, err)
		}
		s.pending = append(s.pending, TreeItem{Header: h, Data: data})
	}
	return nrItems, nil
}
