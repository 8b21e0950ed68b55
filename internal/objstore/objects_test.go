package objstore

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"fmt"
	"testing"
)

func TestParseCommitBody_NoParents(t *testing.T) {
	body := []byte("tree aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\nauthor Test User <test@example.com> 1700000000 +0000\ncommitter Test User <test@example.com> 1700000000 +0000\n\nInitial commit\n")
	id := Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	commit, err := parseCommitBody(body, id)
	if err != nil {
		t.Fatalf("parseCommitBody failed: %v", err)
	}

	if commit.ID != id {
		t.Errorf("ID: got %s, want %s", commit.ID, id)
	}
	if commit.Tree != Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa") {
		t.Errorf("Tree: got %s", commit.Tree)
	}
	if len(commit.Parents) != 0 {
		t.Errorf("Parents: expected 0, got %d", len(commit.Parents))
	}
	if commit.Author.Name != "Test User" {
		t.Errorf("Author.Name: got %q", commit.Author.Name)
	}
	if commit.Author.Email != "test@example.com" {
		t.Errorf("Author.Email: got %q", commit.Author.Email)
	}
	if commit.Message != "Initial commit" {
		t.Errorf("Message: got %q", commit.Message)
	}
}

func TestParseCommitBody_OneParent(t *testing.T) {
	body := []byte("tree aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\nparent cccccccccccccccccccccccccccccccccccccccc\nauthor Test User <test@example.com> 1700000000 +0000\ncommitter Test User <test@example.com> 1700000000 +0000\n\nSecond commit\n")
	id := Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	commit, err := parseCommitBody(body, id)
	if err != nil {
		t.Fatalf("parseCommitBody failed: %v", err)
	}

	if len(commit.Parents) != 1 {
		t.Fatalf("Parents: expected 1, got %d", len(commit.Parents))
	}
	if commit.Parents[0] != Hash("cccccccccccccccccccccccccccccccccccccccc") {
		t.Errorf("Parent[0]: got %s", commit.Parents[0])
	}
}

func TestParseCommitBody_MultipleParents(t *testing.T) {
	body := []byte("tree aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\nparent cccccccccccccccccccccccccccccccccccccccc\nparent dddddddddddddddddddddddddddddddddddddddd\nauthor Test User <test@example.com> 1700000000 +0000\ncommitter Test User <test@example.com> 1700000000 +0000\n\nMerge commit\n")
	id := Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	commit, err := parseCommitBody(body, id)
	if err != nil {
		t.Fatalf("parseCommitBody failed: %v", err)
	}

	if len(commit.Parents) != 2 {
		t.Fatalf("Parents: expected 2, got %d", len(commit.Parents))
	}
	if commit.Parents[0] != Hash("cccccccccccccccccccccccccccccccccccccccc") {
		t.Errorf("Parent[0]: got %s", commit.Parents[0])
	}
	if commit.Parents[1] != Hash("dddddddddddddddddddddddddddddddddddddddd") {
		t.Errorf("Parent[1]: got %s", commit.Parents[1])
	}
	if commit.Message != "Merge commit" {
		t.Errorf("Message: got %q", commit.Message)
	}
}

func TestParseTagTarget(t *testing.T) {
	body := []byte("object aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\ntype commit\ntag v1.0.0\ntagger Test User <test@example.com> 1700000000 +0000\n\nRelease v1.0.0\n")

	target, err := parseTagTarget(body)
	if err != nil {
		t.Fatalf("parseTagTarget failed: %v", err)
	}
	if target != Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa") {
		t.Errorf("target: got %s", target)
	}
}

func TestParseTagTarget_Missing(t *testing.T) {
	if _, err := parseTagTarget([]byte("type commit\ntag v1.0.0\n\nmessage\n")); err == nil {
		t.Fatal("expected error for tag body with no object line")
	}
}

func TestParseTreeBody(t *testing.T) {
	// Tree body format: mode<SP>name<NUL>20-byte-hash
	hash1, _ := hex.DecodeString("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	hash2, _ := hex.DecodeString("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	hash3, _ := hex.DecodeString("cccccccccccccccccccccccccccccccccccccccc")

	var body bytes.Buffer
	fmt.Fprintf(&body, "100644 file.txt")
	body.WriteByte(0)
	body.Write(hash1)
	fmt.Fprintf(&body, "40000 subdir")
	body.WriteByte(0)
	body.Write(hash2)
	fmt.Fprintf(&body, "120000 a-symlink")
	body.WriteByte(0)
	body.Write(hash3)

	id := Hash("dddddddddddddddddddddddddddddddddddddddd")
	tree, err := parseTreeBody(body.Bytes(), id)
	if err != nil {
		t.Fatalf("parseTreeBody failed: %v", err)
	}

	if len(tree.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(tree.Entries))
	}

	tests := []struct {
		name    string
		mode    EntryMode
		entName string
		hashHex string
	}{
		{"blob", ModeFile, "file.txt", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{"tree", ModeDir, "subdir", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
		{"symlink", ModeSymlink, "a-symlink", "cccccccccccccccccccccccccccccccccccccccc"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tree.Entries[i]
			if e.Mode != tt.mode {
				t.Errorf("Mode: got %v, want %v", e.Mode, tt.mode)
			}
			if e.Name != tt.entName {
				t.Errorf("Name: got %q, want %q", e.Name, tt.entName)
			}
			if string(e.Hash) != tt.hashHex {
				t.Errorf("Hash: got %s, want %s", e.Hash, tt.hashHex)
			}
		})
	}
}

func TestReadCompressedData(t *testing.T) {
	original := []byte("the quick brown fox jumps over the lazy dog")

	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	w.Write(original) //nolint:errcheck,gosec
	w.Close()          //nolint:errcheck,gosec

	result, err := readCompressedData(bytes.NewReader(compressed.Bytes()))
	if err != nil {
		t.Fatalf("readCompressedData failed: %v", err)
	}

	if !bytes.Equal(result, original) {
		t.Errorf("got %q, want %q", result, original)
	}
}
