package vfs

import (
	"io"

	"github.com/relaypack/bupcask/internal/objstore"
)

// File is a regular file: either a single blob (BupNormal) or the root of a
// chunked split-tree (BupChunked). Size is computed once and cached — it
// requires walking the split-tree's rightmost spine, which is otherwise
// repeated on every stat.
type File struct {
	nodeBase
	store   objstore.Store
	bupMode BupMode

	sizeOnce   bool
	sizeCached int64
	sizeErr    error
}

func newFile(store objstore.Store, parent Node, name string, hash objstore.Hash, bupMode BupMode) *File {
	return &File{
		nodeBase: newNodeBase(name, KindFile, hash, parent),
		store:    store,
		bupMode:  bupMode,
	}
}

func (f *File) Fullname(stopAt Node) string     { return fullname(f, stopAt) }
func (f *File) Top() Node                       { return top(f) }
func (f *File) FSTop() Node                      { return fsTop(f) }
func (f *File) lresolve(parts []string) (Node, error) { return defaultLResolve(f, parts) }

func (f *File) Size() (int64, error) {
	if f.sizeOnce {
		return f.sizeCached, f.sizeErr
	}
	if f.bupMode == BupChunked {
		f.sizeCached, f.sizeErr = totalChunkedSize(f.store, f.hash)
	} else {
		f.sizeCached, f.sizeErr = normalSize(f.store, f.hash)
	}
	f.sizeOnce = true
	return f.sizeCached, f.sizeErr
}

func (f *File) Open() (FileReader, error) {
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	return newFileReader(f.store, f.hash, size, f.bupMode == BupChunked), nil
}

// normalSize measures a NORMAL file by joining and discarding its content,
// the same streaming Join primitive the object store exposes elsewhere —
// never materializing the whole blob just to learn its length.
func normalSize(store objstore.Store, hash objstore.Hash) (int64, error) {
	rc, err := store.Join(hash)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return io.Copy(io.Discard, rc)
}
