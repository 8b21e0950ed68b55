// Package vfs presents the object store's commits, trees, and blobs as a
// read-only filesystem: a closed family of Node variants (plain
// directories and files, symlinks, and several synthetic directories that
// materialize ref/commit history on the fly) reached through lazy,
// on-demand child materialization so that browsing a repository never
// costs more than the part of the tree actually visited.
package vfs

import (
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/relaypack/bupcask/internal/objstore"
)

// Kind is the POSIX-like type of a Node.
type Kind int

const (
	KindDir Kind = iota
	KindFile
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Node is the shared contract every variant in the family satisfies: Root
// (RefList), CommitDir, CommitList, BranchList, TagDir, Dir, File, Symlink,
// and FakeSymlink. The unexported lresolve method closes the family to this
// package — every legal Node variant is defined here.
type Node interface {
	Name() string
	Kind() Kind
	Hash() objstore.Hash
	Parent() Node
	CTime() time.Time
	MTime() time.Time

	// Subs lists this node's children, sorted by name. Never an error for
	// a leaf node — it is simply empty, matching the observed behavior of
	// the filesystem this package models.
	Subs() ([]Node, error)
	// Sub looks up one child by name. ErrNoSuchFile if absent, regardless
	// of whether this node is directory-like at all.
	Sub(name string) (Node, error)
	// Size reports the apparent size: byte length for File, target length
	// for Symlink, 0 for directories.
	Size() (int64, error)
	// Open returns a random-access reader. ErrNotFile on anything but File.
	Open() (FileReader, error)
	// Metadata returns the node's recorded metadata record, or nil if none
	// was captured.
	Metadata() (*Metadata, error)
	// Release drops any cached children/metadata so they are rematerialized
	// on next access. Called when the underlying pack directory changes.
	Release()

	// Fullname joins this node's name with its ancestors' up to (but not
	// including) stopAt; stopAt == nil walks to the true root.
	Fullname(stopAt Node) string
	// Top returns the outermost ancestor.
	Top() Node
	// FSTop returns the root of the commit snapshot this node lives in
	// (the ancestor whose parent is a CommitList), or Top for a node
	// outside any snapshot. An absolute symlink target restarts here; a
	// ".." walk is not bounded by it.
	FSTop() Node

	lresolve(parts []string) (Node, error)
}

// nodeBase is the passive data every variant embeds: identity, parentage,
// timestamps, and a lazily-populated child cache. It defines none of the
// "virtual" Fullname/Top/FSTop/lresolve behavior itself — each concrete
// variant forwards those to the free functions below, passing its own
// correctly-typed receiver, so there is no self-reference trick to get
// wrong.
type nodeBase struct {
	name   string
	kind   Kind
	hash   objstore.Hash
	parent Node
	ctime  time.Time
	mtime  time.Time
	atime  time.Time

	mu   sync.Mutex
	subs map[string]Node
	meta *Metadata
}

func newNodeBase(name string, kind Kind, hash objstore.Hash, parent Node) nodeBase {
	return nodeBase{name: name, kind: kind, hash: hash, parent: parent}
}

func (n *nodeBase) Name() string          { return n.name }
func (n *nodeBase) Kind() Kind            { return n.kind }
func (n *nodeBase) Hash() objstore.Hash   { return n.hash }
func (n *nodeBase) Parent() Node          { return n.parent }
func (n *nodeBase) CTime() time.Time      { return n.ctime }
func (n *nodeBase) MTime() time.Time      { return n.mtime }
func (n *nodeBase) Size() (int64, error)  { return 0, nil }
func (n *nodeBase) Open() (FileReader, error) { return nil, ErrNotFile }

// Subs defaults to empty, not an error: a leaf node simply has no children.
func (n *nodeBase) Subs() ([]Node, error) { return nil, nil }

// Sub defaults to ErrNoSuchFile: directory-like variants override this with
// their own lazily-materialized child map.
func (n *nodeBase) Sub(name string) (Node, error) {
	return nil, fmt.Errorf("%w: %s", ErrNoSuchFile, name)
}

func (n *nodeBase) Metadata() (*Metadata, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.meta, nil
}

func (n *nodeBase) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = nil
	n.meta = nil
}

// fullname, top, fsTop, and defaultLResolve are the shared recursive
// behaviors every variant wires its own Fullname/Top/FSTop/lresolve method
// to. Because they take the starting Node as a plain interface parameter
// rather than relying on promoted-method "self" dispatch, recursion always
// lands on the right concrete type without any embedding trick.
func fullname(n Node, stopAt Node) string {
	parent := n.Parent()
	if parent != nil && parent != stopAt {
		return path.Join(fullname(parent, stopAt), n.Name())
	}
	return n.Name()
}

func top(n Node) Node {
	if p := n.Parent(); p != nil {
		return top(p)
	}
	return n
}

func fsTop(n Node) Node {
	if p := n.Parent(); p != nil {
		if _, ok := p.(*CommitList); !ok {
			return fsTop(p)
		}
	}
	return n
}

// defaultLResolve is the non-symlink path-walking step: '.' stays put, '..'
// climbs to the parent, anything else looks up a child and recurses unless
// it is the final segment (mirroring lstat semantics: the final segment is
// never auto-dereferenced). Symlink overrides lresolve entirely instead of
// calling this.
func defaultLResolve(n Node, parts []string) (Node, error) {
	if len(parts) == 0 {
		return n, nil
	}
	first, rest := parts[0], parts[1:]
	switch first {
	case ".":
		return lresolveStep(n, rest)
	case "..":
		parent := n.Parent()
		if parent == nil {
			return nil, fmt.Errorf("%w: %s has no parent directory", ErrNoSuchFile, n.Name())
		}
		return lresolveStep(parent, rest)
	default:
		child, err := n.Sub(first)
		if err != nil {
			return nil, err
		}
		if len(rest) > 0 {
			return lresolveStep(child, rest)
		}
		return child, nil
	}
}

// lresolveStep calls back into the Node interface so an intervening
// Symlink's own lresolve override still takes effect mid-path.
func lresolveStep(n Node, parts []string) (Node, error) {
	return n.lresolve(parts)
}

// ReadDir is the explicit directory-only accessor callers like the CLI's
// "ls" use: ErrNotDir on anything that isn't KindDir, rather than the bare
// empty Subs() a leaf node returns.
func ReadDir(n Node) ([]Node, error) {
	if n.Kind() != KindDir {
		return nil, ErrNotDir
	}
	return n.Subs()
}
