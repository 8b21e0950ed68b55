package vfs

import (
	"fmt"
	"sort"

	"github.com/relaypack/bupcask/internal/objstore"
)

// TagDir is the synthetic ".tag" directory: one FakeSymlink per annotated
// or lightweight tag, pointing at the tag's peeled commit under .commit.
type TagDir struct {
	nodeBase
	store objstore.Store
	tags  []objstore.Ref
	order []string
}

func newTagDir(store objstore.Store, parent Node, tags []objstore.Ref) *TagDir {
	return &TagDir{nodeBase: newNodeBase(".tag", KindDir, "", parent), store: store, tags: tags}
}

func (t *TagDir) Fullname(stopAt Node) string     { return fullname(t, stopAt) }
func (t *TagDir) Top() Node                       { return top(t) }
func (t *TagDir) FSTop() Node                      { return fsTop(t) }
func (t *TagDir) lresolve(parts []string) (Node, error) { return defaultLResolve(t, parts) }

func (t *TagDir) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = nil
	t.order = nil
}

func (t *TagDir) ensureSubs() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.subs != nil {
		return nil
	}

	subs := make(map[string]Node, len(t.tags))
	order := make([]string, 0, len(t.tags))
	for _, tag := range t.tags {
		commit, err := t.store.PeelRef(tag.Hash)
		if err != nil {
			return fmt.Errorf("vfs: resolving tag %s: %w", tag.Name, err)
		}
		commitObj, err := t.store.ReadCommit(commit)
		if err != nil {
			return fmt.Errorf("vfs: reading commit %s for tag %s: %w", commit, tag.Name, err)
		}
		target := fmt.Sprintf("../.commit/%s/%s", string(commit)[:2], string(commit)[2:])
		link := newFakeSymlink(t, tag.Name, target)
		link.ctime = commitObj.Author.When
		link.mtime = commitObj.Author.When
		subs[tag.Name] = link
		order = append(order, tag.Name)
	}

	t.subs = subs
	t.order = order
	return nil
}

func (t *TagDir) Subs() ([]Node, error) {
	if err := t.ensureSubs(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	sorted := append([]string(nil), t.order...)
	sort.Strings(sorted)
	out := make([]Node, 0, len(sorted))
	for _, name := range sorted {
		out = append(out, t.subs[name])
	}
	return out, nil
}

func (t *TagDir) Sub(name string) (Node, error) {
	if err := t.ensureSubs(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	child, ok := t.subs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchFile, name)
	}
	return child, nil
}
