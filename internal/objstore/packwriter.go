package objstore

import (
	"bytes"
	"compress/zlib"
	"crypto/sha1" //nolint:gosec // used only to derive a unique pack filename, not for security
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// PackWriter incrementally builds new pack files out of (hash, kind, bytes)
// triples and finalizes each into a durable .pack/.idx pair. Objects are
// stored whole, never re-deltified — sweeping trades pack density for the
// simplicity of never having to pick delta bases among survivors.
type PackWriter struct {
	dir           string
	compressLevel int
	onFinish      func(packPath, idxPath string)
	maxObjects    int // 0 = unlimited

	buf     bytes.Buffer
	entries []packWriterEntry
	seq     int
}

type packWriterEntry struct {
	hash   Hash
	offset int64
}

// NewPackWriter creates a writer that finalizes new packs under dir, zlib
// compressing object bodies at compressLevel (compress/zlib levels, 0-9).
// onFinish, if non-nil, fires synchronously every time a pack is finalized,
// whether by automatic rollover or by Close — this is the hook the sweeper
// uses to buffer and then release stale source packs only once their
// surviving objects are durably on disk in a new pack.
func NewPackWriter(dir string, compressLevel int, onFinish func(packPath, idxPath string)) *PackWriter {
	return &PackWriter{dir: dir, compressLevel: compressLevel, onFinish: onFinish}
}

// SetMaxObjects caps the number of objects held in one pack before an
// automatic rollover finalizes it and a new one begins. 0 (the default)
// never rolls over early; everything written goes into one pack, finalized
// at Close.
func (w *PackWriter) SetMaxObjects(n int) { w.maxObjects = n }

// Write appends one object. kind must be CommitObject, TreeObject, or BlobObject.
func (w *PackWriter) Write(hash Hash, kind ObjectType, data []byte) error {
	if w.maxObjects > 0 && len(w.entries) >= w.maxObjects {
		if err := w.finalize(); err != nil {
			return err
		}
	}

	offset := int64(w.buf.Len())
	if err := writePackObject(&w.buf, kind, data, w.compressLevel); err != nil {
		return fmt.Errorf("failed to write object %s: %w", hash, err)
	}
	w.entries = append(w.entries, packWriterEntry{hash: hash, offset: offset})
	return nil
}

// Close finalizes any pending pack. Calling Close with no pending objects
// written since the last finalize is a no-op — no empty pack is ever created.
func (w *PackWriter) Close() error {
	return w.finalize()
}

func (w *PackWriter) finalize() error {
	if len(w.entries) == 0 {
		return nil
	}

	w.seq++
	id := sha1.Sum(w.buf.Bytes()) //nolint:gosec // filename uniqueness only
	base := fmt.Sprintf("pack-%s-%d", hex.EncodeToString(id[:]), w.seq)
	packPath := filepath.Join(w.dir, base+".pack")
	idxPath := filepath.Join(w.dir, base+".idx")

	if err := os.WriteFile(packPath, w.buf.Bytes(), 0o644); err != nil { //nolint:gosec // pack contents are not sensitive
		return fmt.Errorf("failed to write pack file: %w", err)
	}
	if err := writePackIndexV2(idxPath, w.entries); err != nil {
		_ = os.Remove(packPath)
		return fmt.Errorf("failed to write pack index: %w", err)
	}

	if w.onFinish != nil {
		w.onFinish(packPath, idxPath)
	}

	w.buf.Reset()
	w.entries = nil
	return nil
}

// writePackObject writes one object in the same variable-length
// type+size-header-then-zlib-body shape readPackObject expects.
func writePackObject(w io.Writer, kind ObjectType, data []byte, compressLevel int) error {
	var typeByte byte
	switch kind {
	case CommitObject:
		typeByte = packObjectCommit
	case TreeObject:
		typeByte = packObjectTree
	case BlobObject:
		typeByte = packObjectBlob
	default:
		return fmt.Errorf("unsupported object type for pack write: %s", kind)
	}

	if err := writePackObjectHeader(w, typeByte, int64(len(data))); err != nil {
		return err
	}

	zw, err := zlib.NewWriterLevel(w, compressLevel)
	if err != nil {
		return fmt.Errorf("failed to create zlib writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return err
	}
	return zw.Close()
}

// writePackObjectHeader is the inverse of readPackObjectHeader.
func writePackObjectHeader(w io.Writer, objectType byte, size int64) error {
	first := (objectType & 0x07) << 4
	first |= byte(size & 0x0F)
	size >>= 4
	if size > 0 {
		first |= 0x80
	}
	if _, err := w.Write([]byte{first}); err != nil {
		return err
	}

	for size > 0 {
		b := byte(size & 0x7F)
		size >>= 7
		if size > 0 {
			b |= 0x80
		}
		if _, err := w.Write([]byte{b}); err != nil {
			return err
		}
	}
	return nil
}

// writePackIndexV2 writes a v2 .idx file for entries, in the layout
// loadPackIndexV2 reads: magic, version, 256-entry fanout, sorted 20-byte
// hashes, one zero CRC32 per object (our reader never validates them), then
// offsets (falling back to the large-offset table only past 2GiB, which in
// practice this writer never produces).
func writePackIndexV2(idxPath string, entries []packWriterEntry) error {
	sorted := make([]packWriterEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].hash < sorted[j].hash })

	var buf bytes.Buffer
	buf.Write([]byte{packIndexV2Magic0, packIndexV2Magic1, packIndexV2Magic2, packIndexV2Magic3})
	if err := binary.Write(&buf, binary.BigEndian, uint32(2)); err != nil {
		return err
	}

	var fanout [256]uint32
	for _, e := range sorted {
		b := e.hash.Bytes()
		fanout[b[0]]++
	}
	for i := 1; i < 256; i++ {
		fanout[i] += fanout[i-1]
	}
	for i := 0; i < 256; i++ {
		if err := binary.Write(&buf, binary.BigEndian, fanout[i]); err != nil {
			return err
		}
	}

	for _, e := range sorted {
		b := e.hash.Bytes()
		buf.Write(b[:])
	}
	for range sorted {
		if err := binary.Write(&buf, binary.BigEndian, uint32(0)); err != nil {
			return err
		}
	}

	var largeOffsets []uint64
	for _, e := range sorted {
		if e.offset >= 0 && uint64(e.offset) >= uint64(packIndexLargeOffsetFlag) {
			largeIdx := uint32(len(largeOffsets))
			largeOffsets = append(largeOffsets, uint64(e.offset))
			if err := binary.Write(&buf, binary.BigEndian, packIndexLargeOffsetFlag|largeIdx); err != nil {
				return err
			}
			continue
		}
		if err := binary.Write(&buf, binary.BigEndian, uint32(e.offset)); err != nil {
			return err
		}
	}
	for _, lo := range largeOffsets {
		if err := binary.Write(&buf, binary.BigEndian, lo); err != nil {
			return err
		}
	}

	var zero20 [20]byte
	buf.Write(zero20[:]) // pack checksum: unchecked by our reader
	buf.Write(zero20[:]) // idx checksum: unchecked by our reader

	return os.WriteFile(idxPath, buf.Bytes(), 0o644) //nolint:gosec // index contents are not sensitive
}
