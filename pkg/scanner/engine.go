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

// Package scanner drives the directory walk, the per-file extent
// enumeration, and the concurrency that ties them together, handing the
// results to pkg/sizeagg as it goes.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/SaltyKitkat/xsz/pkg/btrfsioctl"
	"github.com/SaltyKitkat/xsz/pkg/extentset"
	"github.com/SaltyKitkat/xsz/pkg/sizeagg"
)

// Options configures a scan.
type Options struct {
	// Jobs is the number of concurrent file-scan workers. Values below 1
	// are treated as 1.
	Jobs int
	// OneFileSystem stops directory descent at mount boundaries, the way
	// du -x does.
	OneFileSystem bool
	// Logger receives warnings for per-file and per-root problems that
	// don't abort the scan. A nil Logger discards them.
	Logger *log.Logger
	// Verbosity gates how chatty Logger is; 0 only logs warnings, higher
	// values also log per-root progress.
	Verbosity int
}

func (o Options) jobs() int {
	if o.Jobs < 1 {
		return 1
	}
	return o.Jobs
}

func (o Options) logf(level int, format string, args ...interface{}) {
	if o.Logger == nil || o.Verbosity < level {
		return
	}
	o.Logger.Printf(format, args...)
}

// Stats summarizes how a Run went, independent of the byte totals carried
// in the returned Grid.
type Stats struct {
	RootsScanned int
	RootsSkipped int
	Warnings     int
}

// Engine runs one scan of a set of command-line roots.
//
// probeFilesystem, filesystemID and scanFileFn are the ioctl-facing seam:
// NewEngine wires them to the real btrfsioctl-backed implementations, and
// tests in this package substitute deterministic fakes so -j and -x
// invariants can be checked without a real Btrfs filesystem underneath.
type Engine struct {
	opts Options

	set   *extentset.Set
	grid  *sizeagg.Grid
	pool  *pool
	wmu   sync.Mutex
	stats Stats

	searchers sync.Pool

	probeFilesystem func(fd uintptr) error
	filesystemID    func(fd uintptr) ([16]byte, error)
	scanFileFn      func(path string, fd uintptr, fsid [16]byte, searcher *btrfsioctl.Searcher, set *extentset.Set, grid *sizeagg.Grid, warn func(path string, err error))
}

// NewEngine builds an Engine ready for a single Run.
func NewEngine(opts Options) *Engine {
	jobs := opts.jobs()
	e := &Engine{
		opts:            opts,
		set:             extentset.New(jobs),
		grid:            sizeagg.New(),
		pool:            newPool(jobs),
		probeFilesystem: btrfsioctl.ProbeFilesystem,
		filesystemID:    btrfsioctl.FSID,
		scanFileFn:      scanFile,
	}
	e.searchers.New = func() interface{} {
		return btrfsioctl.NewSearcher(btrfsioctl.MinSearchBuffer)
	}
	return e
}

// Run scans every root and returns the merged size grid. Roots that are
// not on a Btrfs filesystem are skipped with a warning rather than
// aborting the whole run. If ctx is canceled mid-scan, Run returns
// ctx.Err() alongside whatever partial Grid had accumulated so far.
func (e *Engine) Run(ctx context.Context, roots []string) (*sizeagg.Grid, Stats, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, root := range roots {
		root := root
		g.Go(func() error {
			return e.scanRoot(gctx, root)
		})
	}
	runErr := g.Wait()
	e.pool.wait()
	e.pool.close()

	e.wmu.Lock()
	stats := e.stats
	e.wmu.Unlock()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return e.grid, stats, runErr
	}
	return e.grid, stats, ctx.Err()
}

func (e *Engine) scanRoot(ctx context.Context, root string) error {
	fd, err := unix.Open(root, unix.O_RDONLY, 0)
	if err != nil {
		e.warn(root, fmt.Errorf("open: %w", err))
		e.wmu.Lock()
		e.stats.RootsSkipped++
		e.wmu.Unlock()
		return nil
	}

	probeErr := e.probeFilesystem(fd)
	if errors.Is(probeErr, btrfsioctl.ErrNotBtrfs) {
		unix.Close(fd)
		e.warn(root, fmt.Errorf("skipping: %w", probeErr))
		e.wmu.Lock()
		e.stats.RootsSkipped++
		e.wmu.Unlock()
		return nil
	}
	if probeErr != nil {
		unix.Close(fd)
		return fmt.Errorf("probe %s: %w", root, probeErr)
	}

	fsid, err := e.filesystemID(fd)
	unix.Close(fd)
	if err != nil {
		return fmt.Errorf("FSID %s: %w", root, err)
	}

	e.opts.logf(1, "scanning %s (fsid %x)", root, fsid)
	e.wmu.Lock()
	e.stats.RootsScanned++
	e.wmu.Unlock()

	// rootGrid accumulates only this root's extents, deduplicated against
	// the engine-wide seen set, so -v -v can report per-root progress
	// without waiting on every other root's in-flight jobs.
	rootGrid := sizeagg.New()
	var rootWG sync.WaitGroup
	walkErr := walkRoot(ctx, root, e.opts.OneFileSystem, func(path string, fileFd uintptr) {
		rootWG.Add(1)
		e.pool.submit(func() {
			defer rootWG.Done()
			searcher := e.searchers.Get().(*btrfsioctl.Searcher)
			defer e.searchers.Put(searcher)
			e.scanFileFn(path, fileFd, fsid, searcher, e.set, rootGrid, e.warn)
		})
	}, e.warn)

	rootWG.Wait()
	e.grid.Merge(rootGrid)
	if e.opts.Verbosity >= 2 {
		e.opts.logf(2, "finished %s: %d files, %d regular extents, %d inline",
			root, rootGrid.FilesProcessed, rootGrid.RegularExtents, rootGrid.InlineExtents)
	}
	return walkErr
}

func (e *Engine) warn(path string, err error) {
	e.wmu.Lock()
	e.stats.Warnings++
	e.wmu.Unlock()
	e.opts.logf(0, "warning: %s: %v", path, err)
}
