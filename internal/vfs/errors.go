package vfs

import "errors"

var (
	// ErrNoSuchFile is returned when a path element, or a final lookup,
	// does not resolve to an existing node.
	ErrNoSuchFile = errors.New("vfs: no such file")
	// ErrNotDir is returned by a caller-side directory operation (e.g. a
	// readdir-style helper) invoked against a non-directory node. Node's
	// own Sub/Subs never return it themselves — see node.go.
	ErrNotDir = errors.New("vfs: not a directory")
	// ErrNotFile is returned by Open on any node that isn't a regular file.
	ErrNotFile = errors.New("vfs: not a regular file")
	// ErrTooManySymlinks is returned when symlink dereferencing exceeds
	// the 100-level cap.
	ErrTooManySymlinks = errors.New("vfs: too many levels of symlinks")
)
