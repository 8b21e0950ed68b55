package gc

import (
	"fmt"
	"os"

	"github.com/relaypack/bupcask/internal/bloomset"
	"github.com/relaypack/bupcask/internal/objstore"
)

// Decision is the outcome of the per-pack threshold policy.
type Decision int

const (
	// DecisionKeep leaves the pack on disk untouched.
	DecisionKeep Decision = iota
	// DecisionDelete removes the pack: nothing in it is live.
	DecisionDelete
	// DecisionRewrite copies surviving objects into a new pack, then
	// marks the source stale.
	DecisionRewrite
)

// String implements fmt.Stringer for log output.
func (d Decision) String() string {
	switch d {
	case DecisionKeep:
		return "keep"
	case DecisionDelete:
		return "delete"
	case DecisionRewrite:
		return "rewrite"
	default:
		return "unknown"
	}
}

// PackResult reports what the sweeper decided and did for one pack.
type PackResult struct {
	Path     string
	Decision Decision
	Total    int
	Live     int
}

// Sweeper walks every pack the store currently holds, applies the
// threshold policy, and rewrites or deletes packs accordingly.
type Sweeper struct {
	store         objstore.Store
	live          *bloomset.Set
	threshold     int // integer percent, 0-100
	compressLevel int
	packDir       string

	stale []string // .pack/.idx paths buffered for deletion, released as new packs finalize

	// OnPackSwept, if set, is called synchronously after each pack's
	// decision is made, in sweep order — the hook cmd/bup's progress bar
	// and the monitor server's GCProgress broadcast both hang off.
	OnPackSwept func(PackResult)
}

// NewSweeper builds a sweeper over store's current packs. threshold is the
// garbage-percent cutoff from the CLI (`--threshold`, default 10);
// compressLevel is the zlib level (`--compress`, default 1) used for any
// rewritten pack.
func NewSweeper(store objstore.Store, live *bloomset.Set, threshold, compressLevel int, packDir string) *Sweeper {
	return &Sweeper{store: store, live: live, threshold: threshold, compressLevel: compressLevel, packDir: packDir}
}

// Sweep evaluates every pack currently in the store and applies the
// threshold policy. Per-pack order is unspecified; a source pack's stale
// files are only ever deleted once every new pack holding its survivors is
// durably finalized, never before.
func (s *Sweeper) Sweep() ([]PackResult, error) {
	var results []PackResult

	for _, idx := range s.store.PackIndices() {
		result, err := s.sweepPack(idx)
		if err != nil {
			return results, fmt.Errorf("gc: failed to sweep pack %s: %w", idx.PackFile(), err)
		}
		results = append(results, result)
		if s.OnPackSwept != nil {
			s.OnPackSwept(result)
		}
	}

	// Anything buffered but never released by an onFinish callback (a
	// rewrite that produced one pack, or an all-dead pack with nothing to
	// write) is safe to delete now: every surviving object from every
	// stale pack swept this run is already durable.
	if err := s.releaseStale(); err != nil {
		return results, err
	}

	return results, nil
}

func (s *Sweeper) sweepPack(idx objstore.PackIndexReader) (PackResult, error) {
	n := idx.Len()
	hashes := idx.Hashes()

	live := 0
	var survivors []objstore.Hash
	for _, h := range hashes {
		b := h.Bytes()
		if s.live.Contains(b[:]) {
			live++
			survivors = append(survivors, h)
		}
	}

	result := PackResult{Path: idx.PackFile(), Total: n, Live: live}

	switch {
	case live == 0:
		result.Decision = DecisionDelete
		s.markStale(idx)
		return result, nil

	case n > 0 && float64(live)/float64(n) > float64(100-s.threshold)/100.0:
		result.Decision = DecisionKeep
		return result, nil

	default:
		result.Decision = DecisionRewrite
		if err := s.rewrite(survivors); err != nil {
			return result, err
		}
		s.markStale(idx)
		return result, nil
	}
}

func (s *Sweeper) rewrite(survivors []objstore.Hash) error {
	writer := objstore.NewPackWriter(s.packDir, s.compressLevel, func(string, string) {
		// New pack is durable; safe to drop every source pack buffered
		// so far, including this one's.
		if err := s.releaseStale(); err != nil {
			// onFinish has no error return; surviving objects are already
			// durable, so a stale-deletion failure here just means a
			// future GC run retries the deletion.
			_ = err
		}
	})

	for _, hash := range survivors {
		kind, data, err := s.store.Cat(hash)
		if err != nil {
			return fmt.Errorf("failed to read surviving object %s: %w", hash, err)
		}
		if err := writer.Write(hash, kind, data); err != nil {
			return fmt.Errorf("failed to write surviving object %s: %w", hash, err)
		}
	}

	return writer.Close()
}

func (s *Sweeper) markStale(idx objstore.PackIndexReader) {
	s.stale = append(s.stale, idx.PackFile(), idx.Path())
}

func (s *Sweeper) releaseStale() error {
	pending := s.stale
	s.stale = nil

	var firstErr error
	for _, path := range pending {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("failed to delete stale file %s: %w", path, err)
		}
	}
	return firstErr
}
