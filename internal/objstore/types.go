// Package objstore provides a pure Go implementation of a git-style,
// content-addressed object store: loose and packed objects, pack indices,
// and ref enumeration. GC and VFS consume it only through the narrow
// Store/PackIndexReader/RefEnumerator interfaces defined in store.go; this
// file holds the concrete data model shared by loose and packed objects.
package objstore

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var signatureRe = regexp.MustCompile("[<>]")

// Hash is a 20-byte object identifier, represented as its 40-character hex
// encoding for convenient map keys and log output.
type Hash string

// NewHash creates a Hash from a 40-character hex string, returning an error
// if the string is not a well-formed hash.
func NewHash(s string) (Hash, error) {
	if len(s) != 40 {
		return "", fmt.Errorf("invalid hash length: %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid hash: %w", err)
	}
	return Hash(s), nil
}

// NewHashFromBytes creates a Hash from a 20-byte array.
func NewHashFromBytes(b [20]byte) (Hash, error) {
	return NewHash(hex.EncodeToString(b[:]))
}

// Short returns the first 7 characters of the hash, or the full hash if shorter.
func (h Hash) Short() string {
	if len(h) < 7 {
		return string(h)
	}
	return string(h)[:7]
}

// Bytes decodes the hash back to its 20 raw bytes. Panics if h is not a
// valid hash; callers that accept untrusted input should go through NewHash
// first.
func (h Hash) Bytes() [20]byte {
	var out [20]byte
	b, err := hex.DecodeString(string(h))
	if err != nil || len(b) != 20 {
		panic(fmt.Sprintf("objstore: invalid hash %q", string(h)))
	}
	copy(out[:], b)
	return out
}

// Object is a generic, parsed git object (Commit or Tree). Blobs are never
// parsed — they are handed to callers as raw bytes, per the data model in
// the specification.
type Object interface {
	Type() ObjectType
}

// ObjectType uses the same numeric values as the pack format, so a pack
// object-type byte can be cast directly to ObjectType.
type ObjectType int

const (
	// NoneObject represents no object / an unknown type.
	NoneObject ObjectType = 0
	// CommitObject identifies a Commit.
	CommitObject ObjectType = 1
	// TreeObject identifies a Tree.
	TreeObject ObjectType = 2
	// BlobObject identifies an opaque blob.
	BlobObject ObjectType = 3
	// TagObject identifies an annotated tag (not exposed by this package's
	// public surface, but recognized while walking packs).
	TagObject ObjectType = 4
)

const (
	objectTypeCommit = "commit"
	objectTypeTree   = "tree"
	objectTypeBlob   = "blob"
	objectTypeTag    = "tag"
)

// String returns the canonical object type name ("commit", "tree", "blob", "tag").
func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return objectTypeCommit
	case TreeObject:
		return objectTypeTree
	case BlobObject:
		return objectTypeBlob
	case TagObject:
		return objectTypeTag
	default:
		return "unknown"
	}
}

// Commit is a parsed commit object: a root tree, zero or more parents, and
// author/committer signatures.
type Commit struct {
	ID        Hash
	Tree      Hash
	Parents   []Hash
	Author    Signature
	Committer Signature
	Message   string
}

// Type implements Object.
func (c *Commit) Type() ObjectType { return CommitObject }

// EntryMode encodes what a tree entry is: a regular file, a directory, or a
// symlink. It is derived from the on-disk octal mode string.
type EntryMode int

const (
	// ModeFile is a regular (non-executable or executable) file.
	ModeFile EntryMode = iota
	// ModeDir is a subtree (directory).
	ModeDir
	// ModeSymlink is a symbolic link whose target is the entry's blob content.
	ModeSymlink
)

// TreeEntry is one named entry within a Tree: an on-disk mode, a display
// name (possibly mangled, see DemangleName), and the hash of the child object.
type TreeEntry struct {
	Name string
	Mode EntryMode
	Hash Hash
}

// Tree is a parsed tree object: a sorted-on-disk list of named entries.
// Entries are kept in the order the object store returned them; callers
// that need sorted-by-name iteration (the VFS does) sort explicitly.
type Tree struct {
	ID      Hash
	Entries []TreeEntry
}

// Type implements Object.
func (t *Tree) Type() ObjectType { return TreeObject }

// BupmMetaName is the sentinel tree-entry name that marks a directory's
// serialized metadata stream. It is never exposed as a child node.
const BupmMetaName = ".bupm"

// Signature is the author or committer of a commit: name, email, and an
// absolute timestamp in the signer's original timezone.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// NewSignature parses a git signature line: "Name <email> unix-timestamp tz".
func NewSignature(signLine string) (Signature, error) {
	parts := signatureRe.Split(signLine, -1)
	if len(parts) != 3 {
		return Signature{}, fmt.Errorf("invalid signature line: %q", signLine)
	}

	name := strings.TrimSpace(parts[0])
	email := strings.TrimSpace(parts[1])

	timePart := strings.TrimSpace(parts[2])
	timeFields := strings.Fields(timePart)
	if timePart == "" || len(timeFields) == 0 {
		return Signature{}, fmt.Errorf("invalid signature line: missing timestamp: %q", signLine)
	}

	var unixTime int64
	if _, err := fmt.Sscanf(timeFields[0], "%d", &unixTime); err != nil {
		return Signature{}, fmt.Errorf("invalid signature line: invalid timestamp: %q", signLine)
	}

	loc := time.UTC
	if len(timeFields) >= 2 {
		if parsed := parseTimezone(timeFields[1]); parsed != nil {
			loc = parsed
		}
	}

	return Signature{
		Name:  name,
		Email: email,
		When:  time.Unix(unixTime, 0).In(loc),
	}, nil
}

// parseTimezone parses a git timezone offset string (e.g. "+0530", "-0800")
// into a *time.Location. Returns nil if the string is not a valid offset.
func parseTimezone(tz string) *time.Location {
	if len(tz) != 5 {
		return nil
	}
	sign := 1
	if tz[0] == '-' {
		sign = -1
	} else if tz[0] != '+' {
		return nil
	}
	hours, err := strconv.Atoi(tz[1:3])
	if err != nil {
		return nil
	}
	mins, err := strconv.Atoi(tz[3:5])
	if err != nil {
		return nil
	}
	return time.FixedZone(tz, sign*(hours*3600+mins*60))
}

// ObjectResolver retrieves raw object data and its pack object-type byte by
// hash. Used to resolve delta base objects while reading a pack.
type ObjectResolver func(id Hash) (data []byte, objectType byte, err error)

// PackIndex maps object hashes to their byte offsets within one pack file.
type PackIndex struct {
	path       string
	packPath   string
	version    uint32
	numObjects uint32
	fanout     [256]uint32
	offsets    map[Hash]int64
}

// FindObject looks up the byte offset of an object by its hash.
func (p *PackIndex) FindObject(id Hash) (int64, bool) {
	offset, found := p.offsets[id]
	return offset, found
}

// PackFile returns the path to the pack file associated with this index.
func (p *PackIndex) PackFile() string { return p.packPath }

// Path returns the path to the .idx file itself.
func (p *PackIndex) Path() string { return p.path }

// Version returns the pack index format version (1 or 2).
func (p *PackIndex) Version() uint32 { return p.version }

// Len returns the number of objects stored in the pack file. This is n in
// the sweeper's live/n threshold policy.
func (p *PackIndex) Len() int { return int(p.numObjects) }

// NumObjects returns the number of objects stored in the pack file.
func (p *PackIndex) NumObjects() uint32 { return p.numObjects }

// Fanout returns the 256-entry fanout table used for binary search within the index.
func (p *PackIndex) Fanout() [256]uint32 { return p.fanout }

// Hashes returns every hash recorded in this index, in unspecified order.
// Used by the sweeper to iterate "the i-th hash" without caring about order.
func (p *PackIndex) Hashes() []Hash {
	out := make([]Hash, 0, len(p.offsets))
	for h := range p.offsets {
		out = append(out, h)
	}
	return out
}
