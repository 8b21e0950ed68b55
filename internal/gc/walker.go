package gc

import (
	"fmt"

	"github.com/relaypack/bupcask/internal/objstore"
)

// Visitor is called once per object the walker reaches. Returning a non-nil
// error aborts the walk.
type Visitor func(hash objstore.Hash, kind objstore.ObjectType) error

// WalkOptions configures a single Walk call.
type WalkOptions struct {
	// Verbose controls diagnostic chatter; 0 is silent. The walker itself
	// never logs — this is threaded through for callers that want to
	// report progress per visited object.
	Verbose int

	// ParentPath, if set, is prefixed to diagnostic messages a caller
	// constructs around Visitor; the walker does not interpret it.
	ParentPath string

	// Stop, if non-nil, is consulted for each hash just before it is
	// visited; the hash is visited either way, and returning true prunes
	// its children. Content-addressed trees are immutable, so a
	// hash already known to be covered never needs re-descending —
	// callers that fold objects into a set (e.g. LiveSetBuilder) pass
	// their set's Contains as Stop to skip work already done by an
	// earlier ref's walk.
	Stop func(hash objstore.Hash) bool
}

// Walk yields (hash, kind) for root and every object reachable from it:
// a commit's tree, a tree's entries, recursively through blobs and
// sub-trees (including chunked split-tree nodes, which are ordinary tree
// objects at this layer — the chunked/mangled distinction belongs to the
// VFS). The walk performs no deduplication of its own; a hash shared by
// two parents is visited twice unless the caller's Stop predicate prunes
// it. This keeps the walker a single linear pass with no memory
// proportional to repository size beyond the current recursion depth.
func Walk(store objstore.Store, root objstore.Hash, visit Visitor, opts WalkOptions) error {
	if root == "" {
		return nil
	}
	return walkObject(store, root, visit, opts)
}

func walkObject(store objstore.Store, hash objstore.Hash, visit Visitor, opts WalkOptions) error {
	kind, _, err := store.Cat(hash)
	if err != nil {
		return fmt.Errorf("gc: walk %s%s: %w", pathPrefix(opts.ParentPath), hash, err)
	}
	// Stop is asked before visit so a visitor that folds hash into the
	// caller's set cannot make Stop prune the hash it just added.
	stop := opts.Stop != nil && opts.Stop(hash)
	if err := visit(hash, kind); err != nil {
		return err
	}

	if stop {
		return nil
	}

	switch kind {
	case objstore.CommitObject:
		commit, err := store.ReadCommit(hash)
		if err != nil {
			return fmt.Errorf("gc: read commit %s: %w", hash, err)
		}
		return walkObject(store, commit.Tree, visit, opts)

	case objstore.TreeObject:
		tree, err := store.ReadTree(hash)
		if err != nil {
			return fmt.Errorf("gc: read tree %s: %w", hash, err)
		}
		for _, entry := range tree.Entries {
			if err := walkObject(store, entry.Hash, visit, opts); err != nil {
				return err
			}
		}
		return nil

	case objstore.BlobObject:
		return nil

	default:
		return fmt.Errorf("gc: unexpected object kind %s for %s", kind, hash)
	}
}

func pathPrefix(parent string) string {
	if parent == "" {
		return ""
	}
	return parent + ": "
}
