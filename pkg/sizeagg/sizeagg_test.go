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

package sizeagg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaltyKitkat/xsz/pkg/btrfsioctl"
	"github.com/SaltyKitkat/xsz/pkg/extentset"
)

func TestRecordFreshCountsDiskAndReferenced(t *testing.T) {
	g := New()
	rec := btrfsioctl.ExtentRecord{
		Compression:       btrfsioctl.CompressionZstd,
		Kind:              btrfsioctl.FileExtentRegular,
		DiskBytes:         4096,
		UncompressedBytes: 16384,
		ReferencedBytes:   16384,
	}

	g.Record(rec, extentset.Fresh)

	totals := g.TotalsFor(btrfsioctl.CompressionZstd)
	require.EqualValues(t, 4096, totals.Disk)
	require.EqualValues(t, 16384, totals.Uncompressed)
	require.EqualValues(t, 16384, totals.Referenced)
	require.EqualValues(t, 1, g.RegularExtents)
	require.EqualValues(t, 1, g.Refs)
}

func TestRecordDuplicateCountsReferencedOnly(t *testing.T) {
	g := New()
	rec := btrfsioctl.ExtentRecord{
		Compression:       btrfsioctl.CompressionNone,
		Kind:              btrfsioctl.FileExtentRegular,
		DiskBytes:         8192,
		UncompressedBytes: 8192,
		ReferencedBytes:   8192,
	}

	g.Record(rec, extentset.Fresh)
	g.Record(rec, extentset.Duplicate)
	g.Record(rec, extentset.Duplicate)

	totals := g.TotalsFor(btrfsioctl.CompressionNone)
	require.EqualValues(t, 8192, totals.Disk, "disk bytes counted once despite three references")
	require.EqualValues(t, 8192, totals.Uncompressed)
	require.EqualValues(t, 8192*3, totals.Referenced, "referenced bytes counted once per reference")
	require.EqualValues(t, 1, g.RegularExtents, "regular_extents counts distinct physical extents, not references")
	require.EqualValues(t, 3, g.Refs)
}

func TestRecordInlineNeverDeduplicated(t *testing.T) {
	g := New()
	rec := btrfsioctl.ExtentRecord{
		Compression:       btrfsioctl.CompressionZlib,
		Kind:              btrfsioctl.FileExtentInline,
		UncompressedBytes: 200,
		ReferencedBytes:   200,
	}

	g.RecordInline(rec)
	g.RecordInline(rec)

	totals := g.TotalsFor(btrfsioctl.CompressionZlib)
	require.Zero(t, totals.Disk, "inline extents never contribute to disk")
	require.Zero(t, totals.Uncompressed, "inline extents never contribute to uncompressed")
	require.EqualValues(t, 400, totals.Referenced)
	require.EqualValues(t, 2, g.InlineExtents)
}

func TestMergeIsAssociativeAndCommutative(t *testing.T) {
	mk := func() *Grid {
		g := New()
		g.Record(btrfsioctl.ExtentRecord{
			Compression: btrfsioctl.CompressionLZO, DiskBytes: 10, UncompressedBytes: 20, ReferencedBytes: 20,
		}, extentset.Fresh)
		g.RecordFile()
		return g
	}

	a, b, c := mk(), mk(), mk()
	left := New()
	left.Merge(a)
	left.Merge(b)
	left.Merge(c)

	right := New()
	right.Merge(c)
	right.Merge(b)
	right.Merge(a)

	lt := left.TotalsFor(btrfsioctl.CompressionLZO)
	rt := right.TotalsFor(btrfsioctl.CompressionLZO)
	assert.Equal(t, lt, rt)
	assert.EqualValues(t, 3, left.FilesProcessed)
	assert.EqualValues(t, 3, right.FilesProcessed)
}

func TestTypesOrdersNoneFirstThenLexicographic(t *testing.T) {
	g := New()
	for _, c := range []btrfsioctl.CompressionType{
		btrfsioctl.CompressionZstd,
		btrfsioctl.CompressionLZO,
		btrfsioctl.CompressionNone,
		btrfsioctl.CompressionZlib,
	} {
		g.Record(btrfsioctl.ExtentRecord{Compression: c}, extentset.Fresh)
	}

	got := g.Types()
	want := []btrfsioctl.CompressionType{
		btrfsioctl.CompressionNone,
		btrfsioctl.CompressionLZO,
		btrfsioctl.CompressionZlib,
		btrfsioctl.CompressionZstd,
	}
	require.Equal(t, want, got)
}

func TestTotalSumsAcrossTypes(t *testing.T) {
	g := New()
	g.Record(btrfsioctl.ExtentRecord{Compression: btrfsioctl.CompressionNone, DiskBytes: 1, UncompressedBytes: 1, ReferencedBytes: 1}, extentset.Fresh)
	g.Record(btrfsioctl.ExtentRecord{Compression: btrfsioctl.CompressionZstd, DiskBytes: 2, UncompressedBytes: 4, ReferencedBytes: 4}, extentset.Fresh)

	total := g.Total()
	require.EqualValues(t, 3, total.Disk)
	require.EqualValues(t, 5, total.Uncompressed)
	require.EqualValues(t, 5, total.Referenced)
}
