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

package scanner

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/SaltyKitkat/xsz/pkg/btrfsioctl"
	"github.com/SaltyKitkat/xsz/pkg/extentset"
	"github.com/SaltyKitkat/xsz/pkg/sizeagg"
)

// scanFile enumerates every file extent item belonging to the file open on
// fd and folds the results into grid, deduplicating physical extents
// against set. fd is closed before scanFile returns, regardless of
// outcome. A per-file ioctl failure is reported through warn and treated
// as a skip, not a fatal error: one unreadable file should never abort a
// scan of millions of others.
func scanFile(path string, fd uintptr, fsid [16]byte, searcher *btrfsioctl.Searcher, set *extentset.Set, grid *sizeagg.Grid, warn func(path string, err error)) {
	defer unix.Close(int(fd))

	var st unix.Stat_t
	if err := unix.Fstat(int(fd), &st); err != nil {
		warn(path, fmt.Errorf("stat: %w", err))
		return
	}

	err := btrfsioctl.FileExtentItems(searcher, fd, fsid, st.Ino, func(rec btrfsioctl.ExtentRecord) error {
		if !rec.HasKey {
			grid.RecordInline(rec)
			return nil
		}
		claim := set.Claim(rec.Key)
		grid.Record(rec, claim)
		return nil
	})
	if err != nil {
		warn(path, err)
		return
	}
	grid.RecordFile()
}
