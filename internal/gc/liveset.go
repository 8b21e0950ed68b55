package gc

import (
	"fmt"

	"github.com/relaypack/bupcask/internal/bloomset"
	"github.com/relaypack/bupcask/internal/objstore"
)

// BuildLiveSet creates a BloomSet at bloomPath sized for every object
// reachable from any ref, then walks every ref's history adding each
// reachable hash. The caller owns the returned set's lifecycle: it must be
// Close()d and bloomset.Unlink()ed on every exit path (GCDriver does this
// via a deferred scoped release).
func BuildLiveSet(store objstore.Store, bloomPath string, verbose int) (*bloomset.Set, error) {
	var expected uint64
	for _, idx := range store.PackIndices() {
		expected += uint64(idx.Len())
	}

	live, err := bloomset.Create(bloomPath, expected)
	if err != nil {
		return nil, fmt.Errorf("gc: failed to create live set: %w", err)
	}

	add := func(hash objstore.Hash, _ objstore.ObjectType) error {
		b := hash.Bytes()
		live.Add(b[:])
		return nil
	}

	// Contains as Stop: once a hash's subtree has been folded into the
	// set by an earlier ref, every object under it is already accounted
	// for — refs routinely share the bulk of their history and trees.
	stopAlreadyLive := func(hash objstore.Hash) bool {
		b := hash.Bytes()
		return live.Contains(b[:])
	}

	for _, ref := range store.Refs() {
		commit, err := store.PeelRef(ref.Hash)
		if err != nil {
			return nil, fmt.Errorf("gc: failed to peel ref %s: %w", ref.Name, err)
		}

		metas, err := store.RevList(commit, stopAlreadyLive)
		if err != nil {
			return nil, fmt.Errorf("gc: failed to walk history of %s: %w", ref.Name, err)
		}

		for _, meta := range metas {
			opts := WalkOptions{Verbose: verbose, ParentPath: ref.Name, Stop: stopAlreadyLive}
			if err := Walk(store, meta.Hash, add, opts); err != nil {
				return nil, fmt.Errorf("gc: failed to walk objects reachable from %s: %w", ref.Name, err)
			}
		}
	}

	return live, nil
}
