package vfs_test

import (
	"crypto/sha1" //nolint:gosec // test fixture hashes only, not used for security
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/relaypack/bupcask/internal/objstore"
)

// testHash derives a deterministic, well-formed 40-character hash from a
// seed string; the object store never checks that a hash matches its
// content, so fixture hashes only need to be unique.
func testHash(seed string) objstore.Hash {
	sum := sha1.Sum([]byte(seed)) //nolint:gosec
	return objstore.Hash(hex.EncodeToString(sum[:]))
}

type fixtureObj struct {
	hash objstore.Hash
	kind objstore.ObjectType
	data []byte
}

// treeEntryBytes encodes one tree entry (mode, name, 20-byte hash) in the
// on-disk format objstore.parseTreeBody expects.
func treeEntryBytes(mode, name string, hash objstore.Hash) []byte {
	var buf []byte
	buf = append(buf, []byte(mode+" "+name)...)
	buf = append(buf, 0)
	raw, err := hex.DecodeString(string(hash))
	if err != nil {
		panic(err)
	}
	buf = append(buf, raw...)
	return buf
}

func fileTreeBody(entries ...[2]string) []byte {
	var buf []byte
	for _, e := range entries {
		buf = append(buf, treeEntryBytes("100644", e[0], objstore.Hash(e[1]))...)
	}
	return buf
}

func commitBody(tree objstore.Hash, authorTime time.Time, msg string) []byte {
	ts := authorTime.Unix()
	return []byte(fmt.Sprintf(
		"tree %s\nauthor A U <a@example.com> %d +0000\ncommitter A U <a@example.com> %d +0000\n\n%s\n",
		tree, ts, ts, msg,
	))
}

func commitBodyWithParent(tree objstore.Hash, authorTime time.Time, msg string, parent objstore.Hash) []byte {
	ts := authorTime.Unix()
	return []byte(fmt.Sprintf(
		"tree %s\nparent %s\nauthor A U <a@example.com> %d +0000\ncommitter A U <a@example.com> %d +0000\n\n%s\n",
		tree, parent, ts, ts, msg,
	))
}

// newRepo builds a bare repository containing objs (packed via PackWriter)
// and the given refs (full ref paths, e.g. "refs/heads/main").
func newRepo(t *testing.T, objs []fixtureObj, refs map[string]objstore.Hash, head string) *objstore.DiskStore {
	t.Helper()
	dir := t.TempDir()

	for _, sub := range []string{"objects/pack", "refs/heads", "refs/tags"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	writer := objstore.NewPackWriter(filepath.Join(dir, "objects", "pack"), 1, nil)
	for _, o := range objs {
		if err := writer.Write(o.hash, o.kind, o.data); err != nil {
			t.Fatalf("PackWriter.Write: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("PackWriter.Close: %v", err)
	}

	for name, hash := range refs {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(string(hash)+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	headLine := "ref: refs/heads/main\n"
	if head != "" {
		headLine = "ref: " + head + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, "HEAD"), []byte(headLine), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := objstore.Open(dir)
	if err != nil {
		t.Fatalf("objstore.Open: %v", err)
	}
	return store
}
