package vfs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/relaypack/bupcask/internal/objstore"
)

// metadataSetter is satisfied, via promotion, by every concrete Node
// variant embedding nodeBase — used so populateMetadata can assign a
// child's record without the Node interface itself needing to expose a
// mutation method to outside callers.
type metadataSetter interface {
	setMetadata(*Metadata)
}

func (n *nodeBase) setMetadata(m *Metadata) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.meta = m
}

// Dir is a tree object presented as a directory. Its child map and its
// per-child metadata are both lazily materialized on first access and
// cached until Release.
type Dir struct {
	nodeBase
	store objstore.Store

	order []string // child names in sorted (tree) order, populated with subs
}

func newDir(store objstore.Store, parent Node, name string, hash objstore.Hash) *Dir {
	return &Dir{nodeBase: newNodeBase(name, KindDir, hash, parent), store: store}
}

func (d *Dir) Fullname(stopAt Node) string     { return fullname(d, stopAt) }
func (d *Dir) Top() Node                       { return top(d) }
func (d *Dir) FSTop() Node                      { return fsTop(d) }
func (d *Dir) lresolve(parts []string) (Node, error) { return defaultLResolve(d, parts) }

func (d *Dir) ensureSubs() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subs != nil {
		return nil
	}
	return d.mksubs()
}

// mksubs decodes the underlying tree, following a commit object transparently
// to its root tree so CommitList can hand out a Dir rooted at the commit's
// own hash without every caller needing to know the difference.
func (d *Dir) mksubs() error {
	hash := d.hash
	objType, _, err := d.store.Cat(hash)
	if err != nil {
		return err
	}
	if objType == objstore.CommitObject {
		commit, err := d.store.ReadCommit(hash)
		if err != nil {
			return err
		}
		hash = commit.Tree
	}

	tree, err := d.store.ReadTree(hash)
	if err != nil {
		return err
	}

	entries := append([]objstore.TreeEntry(nil), tree.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	subs := make(map[string]Node, len(entries))
	order := make([]string, 0, len(entries))
	var bupmHash objstore.Hash
	var childOrder []string

	for _, e := range entries {
		if e.Name == objstore.BupmMetaName {
			bupmHash = e.Hash
			continue
		}

		displayName, bupMode := DemangleName(e.Name)
		var child Node
		switch {
		case bupMode == BupChunked:
			child = newFile(d.store, d, displayName, e.Hash, BupChunked)
		case e.Mode == objstore.ModeDir:
			child = newDir(d.store, d, displayName, e.Hash)
		case e.Mode == objstore.ModeSymlink:
			child = newSymlink(d.store, d, displayName, e.Hash)
		default:
			child = newFile(d.store, d, displayName, e.Hash, BupNormal)
		}

		subs[displayName] = child
		order = append(order, displayName)
		if e.Mode != objstore.ModeDir {
			childOrder = append(childOrder, displayName)
		}
	}

	// .bupm records are written one per child in display-name order (the
	// original iterates "for sub in self", i.e. demangled name), not the
	// mangled on-disk tree order entries are sorted in above — a chunked
	// file's ".bup" suffix can reorder it relative to its display name.
	sort.Strings(childOrder)

	d.subs = subs
	d.order = order

	if bupmHash != "" {
		if err := d.populateMetadata(bupmHash, subs, childOrder); err != nil {
			return err
		}
	}
	return nil
}

// populateMetadata reads the directory's .bupm stream once: the first
// record is the directory's own metadata, and each subsequent record
// corresponds, in sorted order, to one non-directory child.
func (d *Dir) populateMetadata(bupmHash objstore.Hash, subs map[string]Node, childOrder []string) error {
	rc, err := d.store.Join(bupmHash)
	if err != nil {
		return err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	mr := newMetadataReader(bytes.NewReader(raw))

	own, err := mr.next()
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	d.meta = own

	for _, name := range childOrder {
		rec, err := mr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if child, ok := subs[name].(metadataSetter); ok {
			child.setMetadata(rec)
		}
	}
	return nil
}

// Release overrides nodeBase.Release to also drop the cached sorted-name
// order alongside the child map and metadata.
func (d *Dir) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = nil
	d.meta = nil
	d.order = nil
}

func (d *Dir) Subs() ([]Node, error) {
	if err := d.ensureSubs(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Node, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.subs[name])
	}
	return out, nil
}

func (d *Dir) Sub(name string) (Node, error) {
	if err := d.ensureSubs(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	child, ok := d.subs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchFile, name)
	}
	return child, nil
}
