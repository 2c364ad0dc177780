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

// Package cli wires xsz's command-line surface: flag parsing and report
// rendering. It has no knowledge of Btrfs; it only talks to pkg/scanner.
package cli

import (
	"runtime"

	"github.com/spf13/pflag"
)

// Flags holds the parsed command-line options for a single xsz invocation.
// Sizes print human-readable (K/M/G/T, binary base) by default; -b/--bytes
// is the only thing that turns that off.
type Flags struct {
	Bytes         bool
	OneFileSystem bool
	Jobs          int
	Verbosity     int
	Roots         []string
}

// RegisterFlags binds fs to a Flags struct; call Parse on fs yourself
// before reading back the values. The -h/--help flag is cobra's own and is
// not part of Flags.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	fs.BoolVarP(&f.Bytes, "bytes", "b", false, "emit raw byte counts, no unit suffix")
	fs.BoolVarP(&f.OneFileSystem, "one-file-system", "x", false, "do not cross mount boundaries")
	fs.IntVarP(&f.Jobs, "jobs", "j", runtime.NumCPU(), "worker thread count (N >= 1)")
	fs.CountVarP(&f.Verbosity, "verbose", "v", "increase log verbosity (can be repeated)")
	return f
}

// Finish reads back the positional arguments left in fs after Parse.
func (f *Flags) Finish(args []string) error {
	f.Roots = args
	if f.Jobs < 1 {
		f.Jobs = 1
	}
	return nil
}
