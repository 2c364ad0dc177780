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
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SaltyKitkat/xsz/pkg/btrfsioctl"
	"github.com/SaltyKitkat/xsz/pkg/scanner"
)

// usageError marks an error that should exit 1 rather than 2, per §7's
// usage-vs-fatal-I/O exit code split.
type usageError struct{ error }

// NewRootCommand builds the single xsz command: no subcommands, flags
// registered directly on it, matching the reference tool's flat surface
// plus -j.
func NewRootCommand(version string) *cobra.Command {
	var f *Flags
	cmd := &cobra.Command{
		Use:           "xsz [options] file-or-dir1 [file-or-dir2 ...]",
		Short:         "Measure Btrfs disk usage broken down by compression type",
		Version:       version,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Finish(args); err != nil {
				return usageError{err}
			}
			return runScan(cmd, f)
		},
	}
	f = RegisterFlags(cmd.Flags())
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	// cobra registers --help with no shorthand by default; the reference
	// tool's surface wants -h, so replace it.
	cmd.Flags().BoolP("help", "h", false, "print help and exit 0")

	return cmd
}

// Execute runs the root command and maps the outcome to an os.Exit code
// per §6/§7: 0 success, 1 usage error, 2 fatal I/O, 130 on SIGINT.
func Execute(version string) {
	cmd := NewRootCommand(version)
	err := cmd.Execute()
	if err == nil {
		os.Exit(0)
	}

	var usageErr usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintln(os.Stderr, "error:", usageErr.error)
		os.Exit(1)
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "interrupted, partial results above")
		os.Exit(130)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(2)
}

func runScan(cmd *cobra.Command, f *Flags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// Every run gets its own short correlation id so warnings from
	// concurrent scans of multiple roots can be grepped back together
	// out of an interleaved stderr stream.
	runID := uuid.New().String()[:8]
	logger := log.New(os.Stderr, "["+runID+"] ", 0)
	btrfsioctl.SetUnknownCompressionWarning(func(tag uint8) {
		logger.Printf("warning: unknown compression type %d, counted as unknown", tag)
	})

	engine := scanner.NewEngine(scanner.Options{
		Jobs:          f.Jobs,
		OneFileSystem: f.OneFileSystem,
		Logger:        logger,
		Verbosity:     f.Verbosity,
	})

	grid, stats, err := engine.Run(ctx, f.Roots)
	canceled := errors.Is(err, context.Canceled)
	if err != nil && !canceled {
		return err
	}
	if stats.RootsScanned == 0 && stats.RootsSkipped > 0 {
		return fmt.Errorf("all %d root(s) were inaccessible or not on a btrfs filesystem", stats.RootsSkipped)
	}

	if writeErr := WriteReport(cmd.OutOrStdout(), grid, f.Bytes); writeErr != nil {
		return writeErr
	}
	if canceled {
		return err
	}
	return nil
}
