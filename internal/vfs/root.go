package vfs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/relaypack/bupcask/internal/objstore"
)

const (
	refHeadsPrefix = "refs/heads/"
	refTagsPrefix  = "refs/tags/"
)

// Root is the synthetic top-level directory (RefList): ".commit", ".tag",
// and one BranchList per local branch.
type Root struct {
	nodeBase
	store objstore.Store
	order []string
}

// NewRoot constructs the entry point into the filesystem for a repository.
func NewRoot(store objstore.Store) *Root {
	return &Root{nodeBase: newNodeBase("", KindDir, "", nil), store: store}
}

func (r *Root) Fullname(stopAt Node) string     { return fullname(r, stopAt) }
func (r *Root) Top() Node                       { return top(r) }
func (r *Root) FSTop() Node                      { return fsTop(r) }
func (r *Root) lresolve(parts []string) (Node, error) { return defaultLResolve(r, parts) }

func (r *Root) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = nil
	r.order = nil
}

func (r *Root) ensureSubs() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs != nil {
		return nil
	}

	var tags []objstore.Ref
	subs := map[string]Node{".commit": newCommitDir(r.store, r)}
	order := []string{".commit"}

	for _, ref := range r.store.Refs() {
		switch {
		case strings.HasPrefix(ref.Name, refHeadsPrefix):
			branchName := strings.TrimPrefix(ref.Name, refHeadsPrefix)
			subs[branchName] = newBranchList(r.store, r, branchName, ref.Hash)
			order = append(order, branchName)
		case strings.HasPrefix(ref.Name, refTagsPrefix):
			tags = append(tags, ref)
		}
	}

	subs[".tag"] = newTagDir(r.store, r, tags)
	order = append(order, ".tag")

	r.subs = subs
	r.order = order
	return nil
}

func (r *Root) Subs() ([]Node, error) {
	if err := r.ensureSubs(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sorted := append([]string(nil), r.order...)
	sort.Strings(sorted)
	out := make([]Node, 0, len(sorted))
	for _, name := range sorted {
		out = append(out, r.subs[name])
	}
	return out, nil
}

func (r *Root) Sub(name string) (Node, error) {
	if err := r.ensureSubs(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	child, ok := r.subs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchFile, name)
	}
	return child, nil
}
