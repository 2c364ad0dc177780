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

// Package sizeagg folds decoded extent records into per-compression-type
// byte totals, applying the dedup policy that keeps shared extents from
// being double-counted across reflinks and snapshots.
package sizeagg

import (
	"sync"

	"github.com/SaltyKitkat/xsz/pkg/btrfsioctl"
	"github.com/SaltyKitkat/xsz/pkg/extentset"
)

// Totals holds the three byte counters tracked per compression type.
type Totals struct {
	// Disk is actual on-disk space consumed by extents of this type,
	// counted once per physical extent regardless of reference count.
	Disk uint64
	// Uncompressed is the sum of ram_bytes across the same extents,
	// i.e. what Disk would be with compression undone.
	Uncompressed uint64
	// Referenced is the sum of every reference's logical byte range,
	// counted once per reference (so a 3-way reflink counts 3x here).
	Referenced uint64
}

func (t *Totals) addFresh(disk, uncompressed, referenced uint64) {
	t.Disk += disk
	t.Uncompressed += uncompressed
	t.Referenced += referenced
}

func (t *Totals) addReferencedOnly(referenced uint64) {
	t.Referenced += referenced
}

func (t *Totals) merge(o Totals) {
	t.Disk += o.Disk
	t.Uncompressed += o.Uncompressed
	t.Referenced += o.Referenced
}

// Grid is the full result of a scan: per-compression-type totals plus a
// handful of scalar counters used for -v reporting and test assertions.
// Every method takes the Grid's mutex, so workers may record into one
// shared Grid concurrently; the exported counters are plain fields and are
// only safe to read once recording has finished. pkg/scanner shares one
// Grid per root among its workers and Merges each into the engine's Grid.
type Grid struct {
	mu sync.Mutex

	byType map[btrfsioctl.CompressionType]*Totals

	FilesProcessed uint64
	RegularExtents uint64
	InlineExtents  uint64
	Refs           uint64
}

// New returns an empty Grid ready to Record into.
func New() *Grid {
	return &Grid{byType: make(map[btrfsioctl.CompressionType]*Totals)}
}

func (g *Grid) totalsFor(c btrfsioctl.CompressionType) *Totals {
	t, ok := g.byType[c]
	if !ok {
		t = &Totals{}
		g.byType[c] = t
	}
	return t
}

// RecordFile notes that one regular file was successfully scanned,
// independent of whether it contained any extents.
func (g *Grid) RecordFile() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.FilesProcessed++
}

// Record folds one non-inline extent record into the grid under the
// dedup policy: a Fresh claim counts disk and uncompressed bytes once;
// a Duplicate claim counts only the referenced bytes of this reference.
// Every claim, fresh or duplicate, increments Refs once.
func (g *Grid) Record(rec btrfsioctl.ExtentRecord, claim extentset.Claimed) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Refs++
	t := g.totalsFor(rec.Compression)
	if claim == extentset.Fresh {
		g.RegularExtents++
		t.addFresh(rec.DiskBytes, rec.UncompressedBytes, rec.ReferencedBytes)
		return
	}
	t.addReferencedOnly(rec.ReferencedBytes)
}

// RecordInline folds one inline extent record into the grid. Inline
// extents share inode metadata blocks rather than owning a physical
// extent of their own, so they are never deduplicated and never
// contribute to disk or uncompressed -- only to referenced.
func (g *Grid) RecordInline(rec btrfsioctl.ExtentRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.InlineExtents++
	g.Refs++
	t := g.totalsFor(rec.Compression)
	t.addReferencedOnly(rec.ReferencedBytes)
}

// Merge folds other's counters into g. It is associative and commutative,
// so callers may merge per-worker grids in any order.
func (g *Grid) Merge(other *Grid) {
	g.mu.Lock()
	defer g.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	g.FilesProcessed += other.FilesProcessed
	g.RegularExtents += other.RegularExtents
	g.InlineExtents += other.InlineExtents
	g.Refs += other.Refs
	for c, t := range other.byType {
		g.totalsFor(c).merge(*t)
	}
}

// Types returns the compression types observed so far, in report order:
// CompressionNone first (if present), then the rest sorted by name.
func (g *Grid) Types() []btrfsioctl.CompressionType {
	g.mu.Lock()
	defer g.mu.Unlock()
	types := make([]btrfsioctl.CompressionType, 0, len(g.byType))
	for c := range g.byType {
		types = append(types, c)
	}
	sortTypes(types)
	return types
}

// TotalsFor returns a snapshot of the totals recorded for c. The zero
// value is returned if c was never recorded.
func (g *Grid) TotalsFor(c btrfsioctl.CompressionType) Totals {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.byType[c]; ok {
		return *t
	}
	return Totals{}
}

// Total returns the sum of TotalsFor across every recorded compression
// type, i.e. the TOTAL row of the report.
func (g *Grid) Total() Totals {
	g.mu.Lock()
	defer g.mu.Unlock()
	var sum Totals
	for _, t := range g.byType {
		sum.merge(*t)
	}
	return sum
}

func sortTypes(types []btrfsioctl.CompressionType) {
	// insertion sort: the slice is always tiny (at most 5 elements)
	for i := 1; i < len(types); i++ {
		for j := i; j > 0 && less(types[j], types[j-1]); j-- {
			types[j], types[j-1] = types[j-1], types[j]
		}
	}
}

func less(a, b btrfsioctl.CompressionType) bool {
	if a == btrfsioctl.CompressionNone {
		return b != btrfsioctl.CompressionNone
	}
	if b == btrfsioctl.CompressionNone {
		return false
	}
	return a.String() < b.String()
}
