package objstore

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// readObject parses an object from its hash. It first attempts to read from
// loose objects, then falls back to pack files. Any failure to read the
// loose object, a corrupt one included, falls through to the pack search.
func (fs *DiskStore) readObject(id Hash) (Object, error) {
	header, content, err := fs.readLooseObjectRaw(id)
	if err == nil {
		switch {
		case strings.HasPrefix(header, objectTypeCommit):
			return parseCommitBody(content, id)
		case strings.HasPrefix(header, objectTypeTree):
			return parseTreeBody(content, id)
		default:
			return nil, fmt.Errorf("unrecognized loose object type: %q for %s", header, id)
		}
	}

	for _, idx := range fs.packIndices {
		if offset, found := idx.FindObject(id); found {
			return fs.readPackedObject(idx.PackFile(), offset, id)
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
}

// ReadObjectData reads any object, loose or packed, and returns raw bytes
// plus its pack object-type byte (packObjectCommit, packObjectTree,
// packObjectBlob). Blobs are never parsed structurally; this is how callers
// retrieve blob content.
func (fs *DiskStore) ReadObjectData(id Hash) ([]byte, byte, error) {
	header, content, err := fs.readLooseObjectRaw(id)
	if err == nil {
		typeNum, err := objectTypeFromHeader(header)
		if err != nil {
			return nil, 0, err
		}
		return content, typeNum, nil
	}

	for _, idx := range fs.packIndices {
		if offset, found := idx.FindObject(id); found {
			return fs.readFromPackFile(idx.PackFile(), offset)
		}
	}

	return nil, 0, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
}

// readFromPackFile opens a pack file, seeks to offset, and reads one object.
// Scoping the open+defer+close to this function (rather than the caller's
// loop) avoids descriptor leaks when this is called many times in sequence.
func (fs *DiskStore) readFromPackFile(packPath string, offset int64) ([]byte, byte, error) {
	//nolint:gosec // G304: pack paths come from indices we loaded from the repository itself
	file, err := os.Open(packPath)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, err
	}
	return readPackObject(file, fs.ReadObjectData)
}

// readLooseObjectRaw reads a loose object from disk and returns its header and content.
func (fs *DiskStore) readLooseObjectRaw(id Hash) (header string, content []byte, err error) {
	objectPath := filepath.Join(fs.objectsDir, string(id)[:2], string(id)[2:])

	//nolint:gosec // G304: object paths are derived from hashes the caller already validated
	file, err := os.Open(objectPath)
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	data, err := readCompressedData(file)
	if err != nil {
		return "", nil, fmt.Errorf("invalid compressed data: %w", err)
	}

	nullIdx := bytes.IndexByte(data, 0)
	if nullIdx == -1 {
		return "", nil, fmt.Errorf("invalid object format")
	}

	return string(data[:nullIdx]), data[nullIdx+1:], nil
}

func objectTypeFromHeader(header string) (byte, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid header: %s", header)
	}
	switch parts[0] {
	case objectTypeCommit:
		return packObjectCommit, nil
	case objectTypeTree:
		return packObjectTree, nil
	case objectTypeBlob:
		return packObjectBlob, nil
	case objectTypeTag:
		return packObjectTag, nil
	default:
		return 0, fmt.Errorf("unsupported object type: %s", parts[0])
	}
}

func (fs *DiskStore) readPackedObject(packPath string, offset int64, id Hash) (Object, error) {
	data, objectType, err := fs.readFromPackFile(packPath, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to read pack object: %w", err)
	}

	switch ObjectType(objectType) {
	case CommitObject:
		return parseCommitBody(data, id)
	case TreeObject:
		return parseTreeBody(data, id)
	default:
		return nil, fmt.Errorf("object %s is not a commit or tree (type %d)", id, objectType)
	}
}

// parseCommitBody parses the body of a commit object into a Commit.
func parseCommitBody(body []byte, id Hash) (*Commit, error) {
	commit := &Commit{ID: id}
	scanner := bufio.NewScanner(bytes.NewReader(body))
	inMessage := false
	var messageLines []string

	for scanner.Scan() {
		line := scanner.Text()

		if inMessage {
			messageLines = append(messageLines, line)
			continue
		}
		if line == "" {
			inMessage = true
			continue
		}

		switch {
		case strings.HasPrefix(line, "parent "):
			parent, err := NewHash(strings.TrimPrefix(line, "parent "))
			if err != nil {
				return nil, fmt.Errorf("invalid parent hash: %w", err)
			}
			commit.Parents = append(commit.Parents, parent)
		case strings.HasPrefix(line, "tree "):
			tree, err := NewHash(strings.TrimPrefix(line, "tree "))
			if err != nil {
				return nil, fmt.Errorf("invalid tree hash: %w", err)
			}
			commit.Tree = tree
		case strings.HasPrefix(line, "author "):
			author, err := NewSignature(strings.TrimPrefix(line, "author "))
			if err != nil {
				return nil, fmt.Errorf("invalid author signature: %w", err)
			}
			commit.Author = author
		case strings.HasPrefix(line, "committer "):
			committer, err := NewSignature(strings.TrimPrefix(line, "committer "))
			if err != nil {
				return nil, fmt.Errorf("invalid committer signature: %w", err)
			}
			commit.Committer = committer
		}
	}

	commit.Message = strings.TrimSpace(strings.Join(messageLines, "\n"))
	return commit, nil
}

// parseTreeBody parses the body of a tree object into a Tree. Entries are
// returned in on-disk order; the .bupm sentinel and chunked-name demangling
// are a VFS-layer concern, not this package's.
func parseTreeBody(body []byte, id Hash) (*Tree, error) {
	tree := &Tree{ID: id, Entries: make([]TreeEntry, 0)}
	reader := bytes.NewReader(body)

	for {
		var modeBuilder strings.Builder
		for {
			b, err := reader.ReadByte()
			if err == io.EOF {
				return tree, nil
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read mode: %w", err)
			}
			if b == ' ' {
				break
			}
			modeBuilder.WriteByte(b)
		}
		modeStr := modeBuilder.String()

		var nameBuilder strings.Builder
		for {
			b, err := reader.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("failed to read name: %w", err)
			}
			if b == 0 {
				break
			}
			nameBuilder.WriteByte(b)
		}
		name := nameBuilder.String()

		var hashBytes [20]byte
		if _, err := io.ReadFull(reader, hashBytes[:]); err != nil {
			return nil, fmt.Errorf("failed to read hash: %w", err)
		}
		hash, err := NewHashFromBytes(hashBytes)
		if err != nil {
			return nil, fmt.Errorf("invalid hash in tree entry: %w", err)
		}

		tree.Entries = append(tree.Entries, TreeEntry{
			Name: name,
			Mode: modeToEntryMode(modeStr),
			Hash: hash,
		})
	}
}

// modeToEntryMode classifies an on-disk octal mode string.
//   - 100644/100755 -> regular file
//   - 040000/40000  -> directory (subtree)
//   - 120000        -> symlink
func modeToEntryMode(mode string) EntryMode {
	switch {
	case mode == "40000" || mode == "040000":
		return ModeDir
	case mode == "120000":
		return ModeSymlink
	default:
		return ModeFile
	}
}

// parseTagTarget extracts the "object <hash>" line from an annotated tag
// body. Tags are never otherwise parsed by this package — PeelRef is the
// only consumer, and it only needs the target.
func parseTagTarget(body []byte) (Hash, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if rest, ok := strings.CutPrefix(line, "object "); ok {
			return NewHash(strings.TrimSpace(rest))
		}
		if line == "" {
			break
		}
	}
	return "", fmt.Errorf("no object line found in tag body")
}

// maxDecompressedSize caps the size of any single decompressed object.
const maxDecompressedSize = 256 * 1024 * 1024 // 256MB

func readCompressedData(r io.Reader) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zlib reader: %w", err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(zr, maxDecompressedSize+1)); err != nil {
		return nil, fmt.Errorf("failed to decompress data: %w", err)
	}
	if buf.Len() > maxDecompressedSize {
		return nil, fmt.Errorf("decompressed object exceeds maximum allowed size (%d bytes)", maxDecompressedSize)
	}
	return buf.Bytes(), nil
}
