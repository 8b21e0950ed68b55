package vfs_test

import (
	"testing"
	"time"

	"github.com/relaypack/bupcask/internal/objstore"
	"github.com/relaypack/bupcask/internal/vfs"
)

// buildChunkedFile lays out a two-level split-tree whose logical content is
// "aaaa" + "bbbb" + "cccc" (12 bytes): a root split-tree with a leaf at
// offset 0 and an interior sub-tree at offset 4, whose own two leaves
// (offsets 0 and 4, relative to the sub-tree's own start) are "bbbb" and
// "cccc". The split-tree is reached the same way a real one would be: as a
// ".bup"-mangled entry of a commit's root tree, resolved through Root under
// its demangled display name "file".
func buildChunkedFile(t *testing.T) (store *objstore.DiskStore, root *vfs.Root, filePath string) {
	t.Helper()

	blobA := testHash("chunk-a")
	blobB := testHash("chunk-b")
	blobC := testHash("chunk-c")

	subtreeBody := append(
		treeEntryBytes("100644", "0", blobB),
		treeEntryBytes("100644", "4", blobC)...,
	)
	subtree := testHash("chunk-subtree")

	splitRoot := append(
		treeEntryBytes("100644", "0", blobA),
		treeEntryBytes("40000", "4", subtree)...,
	)
	splitRootHash := testHash("chunk-splitroot")

	commitTreeBody := treeEntryBytes("100644", "file.bup", splitRootHash)
	commitTree := testHash("chunk-commit-tree")

	commit := testHash("chunk-commit")

	objs := []fixtureObj{
		{hash: blobA, kind: objstore.BlobObject, data: []byte("aaaa")},
		{hash: blobB, kind: objstore.BlobObject, data: []byte("bbbb")},
		{hash: blobC, kind: objstore.BlobObject, data: []byte("cccc")},
		{hash: subtree, kind: objstore.TreeObject, data: subtreeBody},
		{hash: splitRootHash, kind: objstore.TreeObject, data: splitRoot},
		{hash: commitTree, kind: objstore.TreeObject, data: commitTreeBody},
		{hash: commit, kind: objstore.CommitObject, data: commitBody(commitTree, time.Unix(1000, 0), "chunked fixture")},
	}

	s := newRepo(t, objs, map[string]objstore.Hash{"refs/heads/main": commit}, "")
	r := vfs.NewRoot(s)

	path := ".commit/" + string(commit)[:2] + "/" + string(commit)[2:] + "/file"
	return s, r, path
}

func openChunkedForTest(t *testing.T) vfs.FileReader {
	t.Helper()
	_, root, path := buildChunkedFile(t)
	n, err := vfs.Resolve(root, path)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", path, err)
	}
	r, err := n.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return r
}

func TestChunkedFile_FullSequentialRead(t *testing.T) {
	r := openChunkedForTest(t)

	got, err := r.Read(-1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "aaaabbbbcccc" {
		t.Errorf("got %q, want %q", got, "aaaabbbbcccc")
	}
}

func TestChunkedFile_RandomAccessMidSecondLeaf(t *testing.T) {
	r := openChunkedForTest(t)

	r.Seek(6)
	got, err := r.Read(10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "bbcccc" {
		t.Errorf("got %q, want %q", got, "bbcccc")
	}
}

func TestChunkedFile_SeekPastEndReadsNothing(t *testing.T) {
	r := openChunkedForTest(t)

	r.Seek(100)
	got, err := r.Read(5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d bytes past EOF, want 0", len(got))
	}
}

func TestChunkedFile_NonContiguousSeekReconstructsReader(t *testing.T) {
	r := openChunkedForTest(t)

	first, err := r.Read(4)
	if err != nil || string(first) != "aaaa" {
		t.Fatalf("first Read = %q, %v", first, err)
	}
	// Jump forward past the second leaf: forces a fresh chunkReader at the
	// new offset rather than continuing the forward-only cursor.
	r.Seek(8)
	second, err := r.Read(4)
	if err != nil {
		t.Fatalf("second Read: %v", err)
	}
	if string(second) != "cccc" {
		t.Errorf("got %q, want %q", second, "cccc")
	}
}

func TestChunkedFile_Size(t *testing.T) {
	_, root, path := buildChunkedFile(t)
	n, err := vfs.Resolve(root, path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	size, err := n.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 12 {
		t.Errorf("Size() = %d, want 12", size)
	}
}
