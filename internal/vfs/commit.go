package vfs

import (
	"fmt"
	"sort"
	"time"

	"github.com/relaypack/bupcask/internal/objstore"
)

// CommitDir is the synthetic ".commit" directory: every commit reachable
// from any ref, addressed by hash and grouped into CommitList buckets by
// the first two hex characters of the hash (so a repository with millions
// of commits never needs one flat directory of them all).
//
// Unlike Dir, CommitDir performs one combined walk across every ref to
// populate all of its CommitList children at once: a commit hash
// deterministically belongs to exactly one bucket, so a single shared
// "already recorded" check serves every bucket without re-walking shared
// history once per bucket.
type CommitDir struct {
	nodeBase
	store objstore.Store
	order []string
}

func newCommitDir(store objstore.Store, parent Node) *CommitDir {
	return &CommitDir{nodeBase: newNodeBase(".commit", KindDir, "", parent), store: store}
}

func (c *CommitDir) Fullname(stopAt Node) string     { return fullname(c, stopAt) }
func (c *CommitDir) Top() Node                       { return top(c) }
func (c *CommitDir) FSTop() Node                      { return fsTop(c) }
func (c *CommitDir) lresolve(parts []string) (Node, error) { return defaultLResolve(c, parts) }

func (c *CommitDir) ensureSubs() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs != nil {
		return nil
	}

	subs := make(map[string]Node)
	order := make([]string, 0)
	lists := make(map[string]*CommitList)
	known := make(map[objstore.Hash]bool)

	for _, ref := range c.store.Refs() {
		commit, err := c.store.PeelRef(ref.Hash)
		if err != nil {
			return fmt.Errorf("vfs: resolving ref %s: %w", ref.Name, err)
		}
		metas, err := c.store.RevList(commit, func(h objstore.Hash) bool { return known[h] })
		if err != nil {
			return fmt.Errorf("vfs: walking history of %s: %w", ref.Name, err)
		}
		for _, m := range metas {
			if known[m.Hash] {
				continue
			}
			known[m.Hash] = true

			prefix := string(m.Hash)[:2]
			cl, ok := lists[prefix]
			if !ok {
				cl = newCommitList(c.store, c, prefix)
				lists[prefix] = cl
				subs[prefix] = cl
				order = append(order, prefix)
			}
			cl.addCommit(m.Hash, m.AuthorTime)
		}
	}

	sort.Strings(order)
	c.subs = subs
	c.order = order
	return nil
}

// Release overrides nodeBase.Release to also drop the cached bucket order.
func (c *CommitDir) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = nil
	c.meta = nil
	c.order = nil
}

func (c *CommitDir) Subs() ([]Node, error) {
	if err := c.ensureSubs(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Node, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.subs[name])
	}
	return out, nil
}

func (c *CommitDir) Sub(name string) (Node, error) {
	if err := c.ensureSubs(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	child, ok := c.subs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchFile, name)
	}
	return child, nil
}

// CommitList is one two-hex-character bucket under .commit: a Dir per
// commit whose hash falls in the bucket, named by the remaining 38 hex
// characters. Its hash is the commit's own hash, not its tree — Dir's own
// mksubs already follows a commit to its root tree transparently.
type CommitList struct {
	nodeBase
	store objstore.Store
	order []string
}

func newCommitList(store objstore.Store, parent Node, prefix string) *CommitList {
	cl := &CommitList{nodeBase: newNodeBase(prefix, KindDir, "", parent), store: store}
	cl.subs = make(map[string]Node)
	return cl
}

func (cl *CommitList) addCommit(hash objstore.Hash, authorTime time.Time) {
	rest := string(hash)[2:]
	dir := newDir(cl.store, cl, rest, hash)
	dir.ctime = authorTime
	dir.mtime = authorTime
	cl.subs[rest] = dir
	cl.order = append(cl.order, rest)
}

func (cl *CommitList) Fullname(stopAt Node) string     { return fullname(cl, stopAt) }
func (cl *CommitList) Top() Node                       { return top(cl) }
func (cl *CommitList) FSTop() Node                      { return fsTop(cl) }
func (cl *CommitList) lresolve(parts []string) (Node, error) { return defaultLResolve(cl, parts) }

// Release clears this bucket's contents. In practice a CommitList is never
// released directly: releasing its owning CommitDir discards it in favor of
// a freshly rebuilt one on next access.
func (cl *CommitList) Release() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.subs = nil
	cl.order = nil
}

func (cl *CommitList) Subs() ([]Node, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	sorted := append([]string(nil), cl.order...)
	sort.Strings(sorted)
	out := make([]Node, 0, len(sorted))
	for _, name := range sorted {
		out = append(out, cl.subs[name])
	}
	return out, nil
}

func (cl *CommitList) Sub(name string) (Node, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	child, ok := cl.subs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchFile, name)
	}
	return child, nil
}
