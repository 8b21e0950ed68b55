package vfs

import "strings"

// BupMode records how a File's content should be reassembled: as a single
// blob, or as a chunked split-tree.
type BupMode int

const (
	// BupNormal means hash names a single blob read whole.
	BupNormal BupMode = iota
	// BupChunked means hash names a split-tree whose leaves are blobs in
	// offset order.
	BupChunked
)

// DemangleName strips the on-disk mangling suffix bup applies to a tree
// entry name when a stored representation doesn't match the file's true
// mode (a large file stored as a chunked split-tree, or a name that would
// otherwise collide with a mangling suffix), returning the display name and
// the BupMode it implies.
//
// A name ending in ".bup" was split: the suffix is stripped and the mode is
// CHUNKED, promoting the on-disk directory entry to a regular file for
// display. A name ending in ".bupl" was an ordinary name escaped by
// appending ".bupl" (it would otherwise have ended in a mangling suffix);
// the whole ".bupl" is stripped and the mode is NORMAL. Anything else
// passes through unchanged, NORMAL.
func DemangleName(name string) (string, BupMode) {
	switch {
	case strings.HasSuffix(name, ".bup"):
		return strings.TrimSuffix(name, ".bup"), BupChunked
	case strings.HasSuffix(name, ".bupl"):
		return strings.TrimSuffix(name, ".bupl"), BupNormal
	default:
		return name, BupNormal
	}
}
