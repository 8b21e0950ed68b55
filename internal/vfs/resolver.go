package vfs

import (
	"errors"
	"regexp"
	"strings"
)

var slashRun = regexp.MustCompile(`/+`)

// LResolve walks a slash-separated path from start, honoring "." and ".."
// and a leading "/" (which restarts the walk at start's Top, or FSTop when
// stayInsideFS is true — used when dereferencing a symlink so it cannot
// escape the commit snapshot it lives in via an absolute target). It does
// not dereference a trailing symlink: the final path segment is returned
// exactly as looked up, matching lstat semantics.
func LResolve(start Node, p string, stayInsideFS bool) (Node, error) {
	if p == "" {
		return start, nil
	}

	cur := start
	if strings.HasPrefix(p, "/") {
		if stayInsideFS {
			cur = cur.FSTop()
		} else {
			cur = cur.Top()
		}
		p = p[1:]
	}

	segment := p
	if segment == "" {
		segment = "."
	}

	parts := slashRun.Split(segment, -1)
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts[len(parts)-1] = "."
	}

	return cur.lresolve(parts)
}

// Resolve is LResolve followed by dereferencing the final segment if it is
// a symlink (stat semantics, as opposed to LResolve's lstat semantics).
func Resolve(start Node, p string) (Node, error) {
	n, err := LResolve(start, p, false)
	if err != nil {
		return nil, err
	}
	return n.lresolve([]string{"."})
}

// TryResolve behaves like Resolve, but if only the final dereference step
// fails with ErrNoSuchFile (a dangling symlink), it returns the
// undereferenced symlink node instead of an error.
func TryResolve(start Node, p string) (Node, error) {
	n, err := LResolve(start, p, false)
	if err != nil {
		return nil, err
	}
	resolved, err := n.lresolve([]string{"."})
	if err != nil {
		if errors.Is(err, ErrNoSuchFile) {
			return n, nil
		}
		return nil, err
	}
	return resolved, nil
}
