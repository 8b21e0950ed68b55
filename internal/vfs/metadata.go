package vfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Metadata is one decoded record from a directory's ".bupm" stream. The
// wire format of a record (permissions, ownership, timestamps, xattrs,
// ACLs) is an external convention this package only ever needs to read
// sequentially, never produce, so each record is kept as its opaque encoded
// form. No library in the retrieved pack understands this format; the
// length-prefixed framing below is this package's own, used only to find
// record boundaries.
type Metadata struct {
	Raw []byte
}

// metadataReader reads a directory's metadata stream record by record: the
// directory's own record first, then one record per non-directory child in
// sorted order (see Dir.populateMetadata).
type metadataReader struct {
	r io.Reader
}

func newMetadataReader(r io.Reader) *metadataReader {
	return &metadataReader{r: r}
}

// next reads the next length-prefixed record. Returns io.EOF, unwrapped,
// once the stream is exhausted so callers can range over it with the usual
// for-loop idiom.
func (m *metadataReader) next() (*Metadata, error) {
	var length uint32
	if err := binary.Read(m.r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(m.r, buf); err != nil {
		return nil, fmt.Errorf("vfs: truncated metadata record: %w", err)
	}
	return &Metadata{Raw: buf}, nil
}
