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

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SaltyKitkat/xsz/pkg/btrfsioctl"
	"github.com/SaltyKitkat/xsz/pkg/extentset"
	"github.com/SaltyKitkat/xsz/pkg/sizeagg"
)

func TestWriteReportEmptyGrid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sizeagg.New(), false))

	out := buf.String()
	require.Contains(t, out, "Processed 0 files, 0 regular extents (0 refs), 0 inline.")
	require.Contains(t, out, "TOTAL")
	require.Contains(t, out, "100%")
}

func TestWriteReportOrdersNoneFirstThenLexicographic(t *testing.T) {
	g := sizeagg.New()
	for _, c := range []btrfsioctl.CompressionType{
		btrfsioctl.CompressionZstd,
		btrfsioctl.CompressionLZO,
		btrfsioctl.CompressionNone,
	} {
		g.Record(btrfsioctl.ExtentRecord{
			Compression: c, DiskBytes: 4096, UncompressedBytes: 4096, ReferencedBytes: 4096,
		}, extentset.Fresh)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, g, true))

	out := buf.String()
	noneIdx := strings.Index(out, "none")
	lzoIdx := strings.Index(out, "lzo")
	zstdIdx := strings.Index(out, "zstd")
	require.True(t, noneIdx < lzoIdx)
	require.True(t, lzoIdx < zstdIdx)
}

func TestWriteReportOmitsZeroActivityTypes(t *testing.T) {
	g := sizeagg.New()
	g.Record(btrfsioctl.ExtentRecord{
		Compression: btrfsioctl.CompressionNone, DiskBytes: 10, UncompressedBytes: 10, ReferencedBytes: 10,
	}, extentset.Fresh)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, g, true))
	require.NotContains(t, buf.String(), "zstd")
}

func TestFormatSizeHumanReadable(t *testing.T) {
	require.Equal(t, "512B", formatSize(512, false))
	require.Equal(t, "1.0K", formatSize(1024, false))
	require.Equal(t, "1.5K", formatSize(1536, false))
	require.Equal(t, "1.0M", formatSize(1024*1024, false))
}

func TestFormatSizeRaw(t *testing.T) {
	require.Equal(t, "123456", formatSize(123456, true))
}

func TestFormatRatio(t *testing.T) {
	require.Equal(t, "100%", formatRatio(5, 0))
	require.Equal(t, "100%", formatRatio(10, 10))
	require.Equal(t, "50%", formatRatio(5, 10))
	require.Equal(t, "33%", formatRatio(1, 3))
}
