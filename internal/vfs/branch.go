package vfs

import (
	"fmt"
	"sort"

	"github.com/relaypack/bupcask/internal/objstore"
)

// BranchList is the synthetic top-level directory holding one entry per
// local branch (refs/heads/*): a FakeSymlink per commit on that branch,
// named by the commit's author-time timestamp, plus a "latest" link to the
// branch tip.
//
// Two commits authored in the same second collide on name; the later one
// in RevList's newest-first order overwrites the earlier entry in the
// child map. This is an accepted, observed property of the naming scheme
// rather than a bug worth resolving with a disambiguating suffix.
type BranchList struct {
	nodeBase
	store  objstore.Store
	refTip objstore.Hash
	order  []string
}

func newBranchList(store objstore.Store, parent Node, name string, refTip objstore.Hash) *BranchList {
	return &BranchList{nodeBase: newNodeBase(name, KindDir, "", parent), store: store, refTip: refTip}
}

func (b *BranchList) Fullname(stopAt Node) string     { return fullname(b, stopAt) }
func (b *BranchList) Top() Node                       { return top(b) }
func (b *BranchList) FSTop() Node                      { return fsTop(b) }
func (b *BranchList) lresolve(parts []string) (Node, error) { return defaultLResolve(b, parts) }

func (b *BranchList) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
	b.order = nil
}

func (b *BranchList) ensureSubs() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs != nil {
		return nil
	}

	commit, err := b.store.PeelRef(b.refTip)
	if err != nil {
		return err
	}
	revs, err := b.store.RevList(commit, nil)
	if err != nil {
		return err
	}

	subs := make(map[string]Node, len(revs)+1)
	order := make([]string, 0, len(revs)+1)
	for _, rev := range revs {
		name := rev.AuthorTime.UTC().Format("2006-01-02-150405")
		target := fmt.Sprintf("../.commit/%s/%s", string(rev.Hash)[:2], string(rev.Hash)[2:])
		if _, exists := subs[name]; !exists {
			order = append(order, name)
		}
		subs[name] = newFakeSymlink(b, name, target)
	}

	if len(revs) > 0 {
		latestTarget := fmt.Sprintf("../.commit/%s/%s", string(revs[0].Hash)[:2], string(revs[0].Hash)[2:])
		subs["latest"] = newFakeSymlink(b, "latest", latestTarget)
		order = append(order, "latest")
	}

	b.subs = subs
	b.order = order
	return nil
}

func (b *BranchList) Subs() ([]Node, error) {
	if err := b.ensureSubs(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sorted := append([]string(nil), b.order...)
	sort.Strings(sorted)
	out := make([]Node, 0, len(sorted))
	for _, name := range sorted {
		out = append(out, b.subs[name])
	}
	return out, nil
}

func (b *BranchList) Sub(name string) (Node, error) {
	if err := b.ensureSubs(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	child, ok := b.subs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchFile, name)
	}
	return child, nil
}
