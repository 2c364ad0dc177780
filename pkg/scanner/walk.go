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
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// visitFunc is called once per regular file found under a root. fd is an
// already-open, O_NOFOLLOW'd file descriptor for path; the callee owns it
// and must close it.
type visitFunc func(path string, fd uintptr)

// warnFunc reports a non-fatal problem encountered while walking; the
// entry that triggered it is skipped, the walk continues.
type warnFunc func(path string, err error)

// walkRoot descends path, calling visit for every regular file. If path
// itself names a regular file, visit is called once for it directly. When
// oneFileSystem is true, descent stops at any directory whose device
// differs from rootDev (the device of path itself), mirroring -x/--one-
// file-system. A failure on path itself (open, stat, readdir, or path
// being neither a regular file nor a directory) is returned as an error.
// Below the root, only context cancellation aborts the walk outright; every
// other failure (permission denied, a file vanishing mid-walk) is routed
// through warn and skipped.
func walkRoot(ctx context.Context, path string, oneFileSystem bool, visit visitFunc, warn warnFunc) error {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return fmt.Errorf("stat %s: %w", path, err)
	}

	switch st.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return walkDir(ctx, path, fd, st.Dev, oneFileSystem, visit, warn)
	case unix.S_IFREG:
		visit(path, uintptr(fd))
		return nil
	default:
		unix.Close(fd)
		return fmt.Errorf("%s: not a regular file or directory", path)
	}
}

// walkDir consumes dirFd (always closes it) and recurses into path.
func walkDir(ctx context.Context, path string, dirFd int, rootDev uint64, oneFileSystem bool, visit visitFunc, warn warnFunc) error {
	d := os.NewFile(uintptr(dirFd), path)
	defer d.Close()

	entries, err := d.ReadDir(-1)
	if err != nil {
		return fmt.Errorf("readdir %s: %w", path, err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}
		childPath := filepath.Join(path, name)

		if entry.Type()&os.ModeSymlink != 0 {
			// Symlinks are never followed: their target may live on a
			// different filesystem entirely, and Btrfs extent accounting
			// only makes sense for the bytes actually stored here.
			continue
		}

		if entry.IsDir() {
			if err := descendInto(ctx, childPath, rootDev, oneFileSystem, visit, warn); err != nil {
				if ctx.Err() != nil {
					return err
				}
				warn(childPath, err)
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			warn(childPath, fmt.Errorf("stat: %w", err))
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		childFd, err := unix.Openat(dirFd, name, unix.O_RDONLY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
		if err != nil {
			warn(childPath, fmt.Errorf("open: %w", err))
			continue
		}
		visit(childPath, uintptr(childFd))
	}
	return nil
}

func descendInto(ctx context.Context, path string, rootDev uint64, oneFileSystem bool, visit visitFunc, warn warnFunc) error {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if oneFileSystem && st.Dev != rootDev {
		unix.Close(fd)
		return nil
	}
	return walkDir(ctx, path, fd, rootDev, oneFileSystem, visit, warn)
}
