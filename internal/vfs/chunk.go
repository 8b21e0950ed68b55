package vfs

import (
	"fmt"
	"io"
	"strconv"

	"github.com/relaypack/bupcask/internal/objstore"
)

// chunkEntry is one parsed entry of a chunked split-tree: the byte offset,
// relative to the start of the split-tree it belongs to, where this entry
// begins, whether it is an interior sub-tree or a leaf blob, and its hash.
type chunkEntry struct {
	offset int64
	isDir  bool
	hash   objstore.Hash
}

func decodeChunkTree(store objstore.Store, hash objstore.Hash) ([]chunkEntry, error) {
	tree, err := store.ReadTree(hash)
	if err != nil {
		return nil, err
	}
	entries := make([]chunkEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		offset, err := strconv.ParseInt(e.Name, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("vfs: invalid chunk offset %q in split-tree %s: %w", e.Name, hash, err)
		}
		entries = append(entries, chunkEntry{offset: offset, isDir: e.Mode == objstore.ModeDir, hash: e.Hash})
	}
	return entries, nil
}

// lastChunkInfo finds the logical (offset, length) of the very last byte
// range stored under a split-tree, recursing into the last entry until it
// reaches a leaf blob. A sub-tree's entries are offset relative to its own
// start, so the caller adds the parent entry's own offset back in as the
// recursion unwinds.
func lastChunkInfo(store objstore.Store, hash objstore.Hash) (offset, length int64, err error) {
	entries, err := decodeChunkTree(store, hash)
	if err != nil {
		return 0, 0, err
	}
	if len(entries) == 0 {
		return 0, 0, fmt.Errorf("vfs: empty chunked split-tree %s", hash)
	}
	last := entries[len(entries)-1]
	if last.isDir {
		subOfs, subLen, err := lastChunkInfo(store, last.hash)
		if err != nil {
			return 0, 0, err
		}
		return last.offset + subOfs, subLen, nil
	}
	_, data, err := store.Cat(last.hash)
	if err != nil {
		return 0, 0, err
	}
	return last.offset, int64(len(data)), nil
}

// totalChunkedSize returns the full logical size of a chunked file.
func totalChunkedSize(store objstore.Store, hash objstore.Hash) (int64, error) {
	ofs, length, err := lastChunkInfo(store, hash)
	if err != nil {
		return 0, err
	}
	return ofs + length, nil
}

// chunkFrame is one level of the explicit depth-first traversal stack: the
// entries of one split-tree level, the next index to visit, and — only for
// the entry at startIdx, the first one reached when this frame was pushed —
// how far into that entry's own range to skip.
type chunkFrame struct {
	entries  []chunkEntry
	idx      int
	startIdx int
	skip     int64
}

func newChunkFrame(entries []chunkEntry, startOfs int64) chunkFrame {
	first := 0
	for i := 0; i < len(entries); i++ {
		if i+1 >= len(entries) || entries[i+1].offset > startOfs {
			first = i
			break
		}
	}
	return chunkFrame{entries: entries, idx: first, startIdx: first, skip: startOfs}
}

// chunkIterator walks a chunked split-tree depth-first, yielding each leaf
// blob's bytes in offset order starting at startOfs, without ever
// materializing more than the current leaf in memory. It is the explicit
// continuation-state equivalent of a lazy generator: each call to next
// resumes exactly where the last one left off.
type chunkIterator struct {
	store objstore.Store
	stack []chunkFrame
}

func newChunkIterator(store objstore.Store, root objstore.Hash, startOfs int64) (*chunkIterator, error) {
	entries, err := decodeChunkTree(store, root)
	if err != nil {
		return nil, err
	}
	return &chunkIterator{store: store, stack: []chunkFrame{newChunkFrame(entries, startOfs)}}, nil
}

// next returns the next leaf blob's bytes, with any needed skip already
// applied to the very first leaf reached, or io.EOF when exhausted.
func (it *chunkIterator) next() ([]byte, error) {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		if top.idx >= len(top.entries) {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		entry := top.entries[top.idx]
		isFirst := top.idx == top.startIdx
		top.idx++

		var skip int64
		if isFirst {
			skip = top.skip - entry.offset
			if skip < 0 {
				skip = 0
			}
		}

		if entry.isDir {
			sub, err := decodeChunkTree(it.store, entry.hash)
			if err != nil {
				return nil, err
			}
			it.stack = append(it.stack, newChunkFrame(sub, skip))
			continue
		}

		_, data, err := it.store.Cat(entry.hash)
		if err != nil {
			return nil, err
		}
		if skip > int64(len(data)) {
			skip = int64(len(data))
		}
		return data[skip:], nil
	}
	return nil, io.EOF
}
