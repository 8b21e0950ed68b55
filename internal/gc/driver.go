// Package gc implements the reachability-driven sweep that reclaims pack
// space while preserving every object reachable from any ref: a bloom-filter
// live set built by walking ref history, and a per-pack rewrite policy
// gated by a garbage-percent threshold.
package gc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/relaypack/bupcask/internal/bloomset"
	"github.com/relaypack/bupcask/internal/objstore"
)

// Options configures one GC run. Threshold and CompressLevel mirror the
// `gc` CLI's `--threshold`/`--compress` flags.
type Options struct {
	// Threshold is the integer garbage percent (0-100) at which a pack is
	// rewritten rather than kept: a pack is rewritten when its live
	// fraction is at or below (100-Threshold)%.
	Threshold int
	// CompressLevel is the zlib compression level (0-9) used for any
	// rewritten pack.
	CompressLevel int
	// Verbose is cumulative log verbosity, threaded through to the walker
	// for callers that want per-object diagnostics.
	Verbose int
	// OnPackSwept, if set, is called synchronously after each pack's
	// decision during the sweep — cmd/bup's progress bar drives its output
	// off this hook, and monitor.Server.GCProgressHook returns a callback
	// that fits it.
	OnPackSwept func(PackResult)
}

// Report summarizes one completed GC run.
type Report struct {
	ObjectsBefore     int
	ObjectsAfter      int
	PercentDiscarded  float64
	FalsePositiveRate float64
	PackResults       []PackResult
	Errors            int
}

// Run executes one GC pass against store: count objects, build the live
// set, invalidate derived indices, sweep, and report. Ordering is fixed —
// count, then live set, then invalidation, then sweep — because a sweep
// run against stale derived indices could retain data already deleted by a
// prior partial run.
//
// A per-pack failure stops the sweep at that pack: packs swept before it
// keep their results, the pack indices are still reloaded, and the failure
// is counted in Report.Errors and returned alongside the report.
// The worst allowed outcome is leftover garbage packs, never a live
// object made unreachable.
func Run(store *objstore.DiskStore, opts Options) (*Report, error) {
	before := countObjects(store)
	if before == 0 {
		return &Report{}, nil
	}

	// The live set lives in the pack directory itself (a temp file next to
	// the packs it describes), named distinctly from the repository's own
	// cached bloom filter so invalidateDerivedIndices's removal of the
	// latter can never touch it.
	bloomPath := filepath.Join(store.PackDir(), fmt.Sprintf("tmp-gc-%d.bloom", os.Getpid()))
	live, err := BuildLiveSet(store, bloomPath, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("gc: failed to build live set: %w", err)
	}
	// Scoped acquisition: released on every exit path, success or error.
	defer func() {
		_ = live.Close()
		_ = bloomset.Unlink(bloomPath)
	}()

	if err := invalidateDerivedIndices(store); err != nil {
		return nil, fmt.Errorf("gc: failed to invalidate derived indices: %w", err)
	}

	errs := &errList{}
	sweeper := NewSweeper(store, live, opts.Threshold, opts.CompressLevel, store.PackDir())
	sweeper.OnPackSwept = opts.OnPackSwept
	results, err := sweeper.Sweep()
	if err != nil {
		errs.Add(err)
	}

	if err := store.ReloadPackIndices(); err != nil {
		return nil, fmt.Errorf("gc: failed to reload pack indices after sweep: %w", err)
	}

	after := countObjects(store)

	report := &Report{
		ObjectsBefore:     before,
		ObjectsAfter:      after,
		FalsePositiveRate: live.PFalsePositive(),
		PackResults:       results,
		Errors:            errs.Len(),
	}
	if before > 0 {
		report.PercentDiscarded = float64(before-after) / float64(before) * 100
	}
	return report, errs.Err()
}

func countObjects(store *objstore.DiskStore) int {
	total := 0
	for _, idx := range store.PackIndices() {
		total += idx.Len()
	}
	return total
}

// invalidateDerivedIndices clears every cache that could otherwise point at
// objects the upcoming sweep deletes: multi-pack indices, the repository's
// own bloom filter, and any stored reflog (so an unreachable commit cannot
// be revived through it after GC).
func invalidateDerivedIndices(store *objstore.DiskStore) error {
	packDir := store.PackDir()

	midxMatches, err := filepath.Glob(filepath.Join(packDir, "*.midx"))
	if err != nil {
		return err
	}
	for _, path := range midxMatches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove multi-pack index %s: %w", path, err)
		}
	}

	// Named exactly, not globbed: globbing *.bloom here would also catch
	// this run's own scoped live-set file sitting in the same directory.
	repoBloom := filepath.Join(packDir, "bup.bloom")
	if err := os.Remove(repoBloom); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove repository bloom filter: %w", err)
	}

	logsDir := filepath.Join(store.GitDir(), "logs")
	if err := os.RemoveAll(logsDir); err != nil {
		return fmt.Errorf("failed to expire reflog: %w", err)
	}

	return nil
}
