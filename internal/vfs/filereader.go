package vfs

import (
	"io"

	"github.com/relaypack/bupcask/internal/objstore"
)

// FileReader is a random-access reader over a File's logical content.
// Reads past the end return fewer bytes than requested, never an error; a
// failed read resets internal state so a subsequent Seek+Read starts clean.
type FileReader interface {
	Seek(ofs int64)
	Tell() int64
	Read(count int) ([]byte, error)
	Close() error
}

// chunkReader is the non-seekable forward cursor FileReader reconstructs
// whenever a request isn't contiguous with where it last left off: either a
// chunkIterator walking a CHUNKED split-tree, or the tail of a single
// NORMAL blob.
type chunkReader struct {
	store objstore.Store
	it    *chunkIterator
	blob  []byte
}

func newChunkReader(store objstore.Store, hash objstore.Hash, chunked bool, startOfs int64) (*chunkReader, error) {
	if chunked {
		it, err := newChunkIterator(store, hash, startOfs)
		if err != nil {
			return nil, err
		}
		return &chunkReader{store: store, it: it}, nil
	}

	_, data, err := store.Cat(hash)
	if err != nil {
		return nil, err
	}
	if startOfs > int64(len(data)) {
		startOfs = int64(len(data))
	}
	return &chunkReader{store: store, blob: data[startOfs:]}, nil
}

// next pulls up to size bytes, drawing further leaves from it as the
// current blob is exhausted. Returns fewer bytes, never an error, once both
// are exhausted.
func (cr *chunkReader) next(size int) ([]byte, error) {
	var out []byte
	for len(out) < size {
		if len(cr.blob) == 0 {
			if cr.it == nil {
				break
			}
			b, err := cr.it.next()
			if err == io.EOF {
				cr.it = nil
				break
			}
			if err != nil {
				return nil, err
			}
			cr.blob = b
			continue
		}
		want := size - len(out)
		if want > len(cr.blob) {
			want = len(cr.blob)
		}
		out = append(out, cr.blob[:want]...)
		cr.blob = cr.blob[want:]
	}
	return out, nil
}

// fileReader is the concrete FileReader: a logical offset plus a
// lazily-(re)constructed chunkReader, rebuilt only when Read is asked for a
// non-contiguous offset.
type fileReader struct {
	store   objstore.Store
	hash    objstore.Hash
	size    int64
	chunked bool

	ofs       int64
	cursor    *chunkReader
	cursorOfs int64
}

func newFileReader(store objstore.Store, hash objstore.Hash, size int64, chunked bool) *fileReader {
	return &fileReader{store: store, hash: hash, size: size, chunked: chunked}
}

func (f *fileReader) Seek(ofs int64) {
	switch {
	case ofs < 0:
		f.ofs = 0
	case ofs > f.size:
		f.ofs = f.size
	default:
		f.ofs = ofs
	}
}

func (f *fileReader) Tell() int64 { return f.ofs }

func (f *fileReader) Read(count int) ([]byte, error) {
	if count < 0 {
		count = int(f.size - f.ofs)
	}
	if count <= 0 {
		return nil, nil
	}

	// A seek away from where the cursor last left off invalidates it:
	// chunkReader only ever moves forward.
	if f.cursor == nil || f.cursorOfs != f.ofs {
		cur, err := newChunkReader(f.store, f.hash, f.chunked, f.ofs)
		if err != nil {
			return nil, err
		}
		f.cursor = cur
	}

	buf, err := f.cursor.next(count)
	if err != nil {
		f.cursor = nil
		return nil, err
	}
	f.ofs += int64(len(buf))
	f.cursorOfs = f.ofs
	return buf, nil
}

func (f *fileReader) Close() error {
	f.cursor = nil
	return nil
}
