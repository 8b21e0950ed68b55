package vfs_test

import (
	"errors"
	"testing"
	"time"

	"github.com/relaypack/bupcask/internal/objstore"
	"github.com/relaypack/bupcask/internal/vfs"
)

// buildSimpleTree gives the resolver tests a commit with a nested directory
// (dir/file.txt) to walk "." / ".." / leading- and trailing-slash paths
// through.
func buildSimpleTree(t *testing.T) (root *vfs.Root, dirPath string) {
	t.Helper()

	fileBlob := testHash("resolver-file-blob")
	innerTree := testHash("resolver-inner-tree")
	commitTree := testHash("resolver-commit-tree")
	commit := testHash("resolver-commit")

	innerBody := treeEntryBytes("100644", "file.txt", fileBlob)
	commitTreeBody := treeEntryBytes("40000", "dir", innerTree)

	objs := []fixtureObj{
		{hash: fileBlob, kind: objstore.BlobObject, data: []byte("contents")},
		{hash: innerTree, kind: objstore.TreeObject, data: innerBody},
		{hash: commitTree, kind: objstore.TreeObject, data: commitTreeBody},
		{hash: commit, kind: objstore.CommitObject, data: commitBody(commitTree, time.Unix(9000, 0), "resolver fixture")},
	}

	s := newRepo(t, objs, map[string]objstore.Hash{"refs/heads/main": commit}, "")
	r := vfs.NewRoot(s)
	return r, ".commit/" + string(commit)[:2] + "/" + string(commit)[2:]
}

func TestResolve_Dot(t *testing.T) {
	root, dirPath := buildSimpleTree(t)

	n, err := vfs.Resolve(root, dirPath+"/dir/.")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if n.Name() != "dir" {
		t.Errorf("got %q, want dir", n.Name())
	}
}

func TestResolve_DotDot(t *testing.T) {
	root, dirPath := buildSimpleTree(t)

	n, err := vfs.Resolve(root, dirPath+"/dir/file.txt/..")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if n.Name() != "dir" {
		t.Errorf("got %q, want dir", n.Name())
	}
}

func TestResolve_TrailingSlashActsLikeDot(t *testing.T) {
	root, dirPath := buildSimpleTree(t)

	n, err := vfs.Resolve(root, dirPath+"/dir/")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if n.Name() != "dir" {
		t.Errorf("got %q, want dir", n.Name())
	}
}

func TestResolve_RunOfSlashesCollapses(t *testing.T) {
	root, dirPath := buildSimpleTree(t)

	n, err := vfs.Resolve(root, dirPath+"//dir///file.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if n.Name() != "file.txt" {
		t.Errorf("got %q, want file.txt", n.Name())
	}
}

func TestResolve_EmptyPathReturnsStart(t *testing.T) {
	root, dirPath := buildSimpleTree(t)

	start, err := vfs.Resolve(root, dirPath)
	if err != nil {
		t.Fatalf("Resolve(dirPath): %v", err)
	}

	n, err := vfs.Resolve(start, "")
	if err != nil {
		t.Fatalf("Resolve(\"\"): %v", err)
	}
	if n != start {
		t.Errorf("Resolve(\"\") did not return start unchanged")
	}
}

func TestLResolve_LeadingSlashRestartsAtTop(t *testing.T) {
	root, dirPath := buildSimpleTree(t)

	start, err := vfs.Resolve(root, dirPath+"/dir")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	n, err := vfs.LResolve(start, "/.commit", false)
	if err != nil {
		t.Fatalf("LResolve: %v", err)
	}
	if n.Name() != ".commit" {
		t.Errorf("got %q, want .commit", n.Name())
	}
}

func TestResolve_NoSuchFile(t *testing.T) {
	root, dirPath := buildSimpleTree(t)

	if _, err := vfs.Resolve(root, dirPath+"/does-not-exist"); !errors.Is(err, vfs.ErrNoSuchFile) {
		t.Errorf("err = %v, want ErrNoSuchFile", err)
	}
}
