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
	"errors"
	"fmt"
	"syscall"
)

// FSID returns the filesystem identity backing fd, used as the device_id
// half of an extent key so two distinct filesystems traversed in one run
// never collide even if their on-disk byte offsets happen to coincide.
func FSID(fd uintptr) ([16]byte, error) {
	var args fsInfoArgs
	if err := callReadIoctl(fd, btrfsIocFSInfo, &args); err != nil {
		return [16]byte{}, fmt.Errorf("FS_INFO: %w", err)
	}
	return args.FSID, nil
}

// ErrNotBtrfs is returned by ProbeFilesystem when fd does not belong to a
// Btrfs filesystem.
var ErrNotBtrfs = fmt.Errorf("not a btrfs filesystem")

// ProbeFilesystem issues a harmless FS_INFO call to decide whether fd sits
// on a Btrfs filesystem, per spec.md §7's "non-Btrfs filesystem detected"
// handling: ENOTTY/EINVAL means skip the root, anything else is an
// unexpected I/O error.
func ProbeFilesystem(fd uintptr) error {
	_, err := FSID(fd)
	if err == nil {
		return nil
	}
	if isNotBtrfsErrno(err) {
		return ErrNotBtrfs
	}
	return err
}

func isNotBtrfsErrno(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	return errno == syscall.ENOTTY || errno == syscall.EINVAL
}
