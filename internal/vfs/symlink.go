package vfs

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/relaypack/bupcask/internal/objstore"
)

// symlinkDepth is a process-wide counter of symlinks currently being
// dereferenced, incremented around Dereference and checked on entry. It is
// deliberately global rather than scoped to one resolution: that is the
// behavior this package models, and paths resolved concurrently all count
// against the same cap.
var symlinkDepth int32

const maxSymlinkDepth = 100

// Symlink is a stored symbolic link: its target is the blob content named
// by hash.
type Symlink struct {
	nodeBase
	store objstore.Store
	// self lets Dereference call back into an overriding Readlink (used by
	// FakeSymlink) without relying on embedded-struct "self" plumbing: each
	// constructor sets it to its own outermost value.
	self interface {
		Readlink() (string, error)
	}
}

func newSymlink(store objstore.Store, parent Node, name string, hash objstore.Hash) *Symlink {
	s := &Symlink{nodeBase: newNodeBase(name, KindSymlink, hash, parent), store: store}
	s.self = s
	return s
}

func (s *Symlink) Fullname(stopAt Node) string { return fullname(s, stopAt) }
func (s *Symlink) Top() Node                   { return top(s) }
func (s *Symlink) FSTop() Node                 { return fsTop(s) }

// lresolve never calls defaultLResolve: a symlink always dereferences
// itself first, even in non-terminal path position, then continues
// resolving the remaining parts from whatever it points to.
func (s *Symlink) lresolve(parts []string) (Node, error) {
	target, err := s.Dereference()
	if err != nil {
		return nil, err
	}
	return target.lresolve(parts)
}

func (s *Symlink) Readlink() (string, error) {
	rc, err := s.store.Join(s.hash)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Symlink) Size() (int64, error) {
	target, err := s.self.Readlink()
	if err != nil {
		return 0, err
	}
	return int64(len(target)), nil
}

func (s *Symlink) Open() (FileReader, error) { return nil, ErrNotFile }

// Dereference resolves the symlink's target relative to its parent,
// staying within the owning filesystem (FSTop, not Top) the way a relative
// symlink inside a CommitList snapshot should. It guards against cycles
// with the process-wide depth counter rather than a per-call visited set,
// matching the observed global-counter behavior.
func (s *Symlink) Dereference() (Node, error) {
	if atomic.LoadInt32(&symlinkDepth) > maxSymlinkDepth {
		return nil, fmt.Errorf("%w: %s", ErrTooManySymlinks, s.Fullname(nil))
	}
	atomic.AddInt32(&symlinkDepth, 1)
	defer atomic.AddInt32(&symlinkDepth, -1)

	target, err := s.self.Readlink()
	if err != nil {
		return nil, err
	}

	parent := s.Parent()
	if parent == nil {
		return nil, fmt.Errorf("%s: %w: broken symlink to %q", s.Name(), ErrNoSuchFile, target)
	}
	resolved, err := LResolve(parent, target, true)
	if err != nil {
		if errors.Is(err, ErrNoSuchFile) {
			return nil, fmt.Errorf("%s: broken symlink to %q: %w", s.Fullname(nil), target, ErrNoSuchFile)
		}
		return nil, err
	}
	return resolved, nil
}

// FakeSymlink is a synthetic symlink never backed by a stored blob — used
// by TagDir and BranchList to point at a commit under .commit/<xx>/<rest>
// without materializing a real tree entry for it.
type FakeSymlink struct {
	Symlink
	target string
}

func newFakeSymlink(parent Node, name, target string) *FakeSymlink {
	fs := &FakeSymlink{target: target}
	fs.Symlink = Symlink{nodeBase: newNodeBase(name, KindSymlink, "", parent)}
	fs.Symlink.self = fs
	return fs
}

func (fs *FakeSymlink) Readlink() (string, error) { return fs.target, nil }
func (fs *FakeSymlink) Size() (int64, error)      { return int64(len(fs.target)), nil }

func (fs *FakeSymlink) Fullname(stopAt Node) string { return fullname(fs, stopAt) }
func (fs *FakeSymlink) Top() Node                   { return top(fs) }
func (fs *FakeSymlink) FSTop() Node                 { return fsTop(fs) }
func (fs *FakeSymlink) lresolve(parts []string) (Node, error) {
	target, err := fs.Dereference()
	if err != nil {
		return nil, err
	}
	return target.lresolve(parts)
}
