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
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/SaltyKitkat/xsz/pkg/sizeagg"
)

// WriteReport renders grid to w in the stable, line-oriented report
// format: a processed-counts summary line, then a TOTAL row followed by
// one row per compression type with non-zero activity, ordered none-first
// then lexicographic. Sizes print human-readable unless raw is true.
func WriteReport(w io.Writer, grid *sizeagg.Grid, raw bool) error {
	fmt.Fprintf(w, "Processed %d files, %d regular extents (%d refs), %d inline.\n",
		grid.FilesProcessed, grid.RegularExtents, grid.Refs, grid.InlineExtents)

	tw := tabwriter.NewWriter(w, 0, 4, 3, ' ', 0)
	fmt.Fprintf(tw, "Type\tPerc\tDisk Usage\tUncompressed\tReferenced\n")

	writeRow(tw, "TOTAL", grid.Total(), raw)
	for _, c := range grid.Types() {
		t := grid.TotalsFor(c)
		if t.Disk == 0 && t.Uncompressed == 0 && t.Referenced == 0 {
			continue
		}
		writeRow(tw, c.String(), t, raw)
	}

	return tw.Flush()
}

func writeRow(tw *tabwriter.Writer, label string, t sizeagg.Totals, raw bool) {
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		label,
		formatRatio(t.Disk, t.Uncompressed),
		formatSize(t.Disk, raw),
		formatSize(t.Uncompressed, raw),
		formatSize(t.Referenced, raw),
	)
}

// formatRatio renders round(100 * disk / uncompressed) as a percentage,
// with the uncompressed == 0 edge case rendered as 100%.
func formatRatio(disk, uncompressed uint64) string {
	if uncompressed == 0 {
		return "100%"
	}
	pct := (100*float64(disk) + float64(uncompressed)/2) / float64(uncompressed)
	return fmt.Sprintf("%d%%", int64(pct))
}

var sizeUnits = []string{"B", "K", "M", "G", "T", "P"}

// formatSize renders n as a binary-base, one-decimal-precision
// human-readable size, or as a plain integer when raw is true.
func formatSize(n uint64, raw bool) string {
	if raw {
		return fmt.Sprintf("%d", n)
	}
	f := float64(n)
	unit := 0
	for f >= 1024 && unit < len(sizeUnits)-1 {
		f /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%.0f%s", f, sizeUnits[unit])
	}
	return fmt.Sprintf("%.1f%s", f, sizeUnits[unit])
}
