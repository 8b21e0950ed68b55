package vfs_test

import (
	"testing"
	"time"

	"github.com/relaypack/bupcask/internal/objstore"
	"github.com/relaypack/bupcask/internal/vfs"
)

// buildBranchHistory builds two commits on "main" authored at the same
// second: tip (newer, parent of nothing else) and base (older, tip's
// parent). RevList returns newest-first, so base is processed after tip and
// overwrites its same-named entry in BranchList's child map.
func buildBranchHistory(t *testing.T) (root *vfs.Root, base, tip objstore.Hash) {
	t.Helper()

	baseTree := testHash("branch-base-tree")
	tipTree := testHash("branch-tip-tree")
	base = testHash("branch-base-commit")
	tip = testHash("branch-tip-commit")

	sameSecond := time.Unix(5000, 0)

	objs := []fixtureObj{
		{hash: baseTree, kind: objstore.TreeObject, data: []byte{}},
		{hash: tipTree, kind: objstore.TreeObject, data: []byte{}},
		{hash: base, kind: objstore.CommitObject, data: commitBody(baseTree, sameSecond, "base")},
		{hash: tip, kind: objstore.CommitObject, data: commitBodyWithParent(tipTree, sameSecond, "tip", base)},
	}

	s := newRepo(t, objs, map[string]objstore.Hash{"refs/heads/main": tip}, "")
	return vfs.NewRoot(s), base, tip
}

func TestBranchList_LatestPointsAtTip(t *testing.T) {
	root, _, tip := buildBranchHistory(t)

	main, err := root.Sub("main")
	if err != nil {
		t.Fatalf("Sub(main): %v", err)
	}
	latest, err := main.Sub("latest")
	if err != nil {
		t.Fatalf("Sub(latest): %v", err)
	}
	if latest.Kind() != vfs.KindSymlink {
		t.Fatalf("latest kind = %v, want symlink", latest.Kind())
	}
	resolved, err := vfs.Resolve(main, "latest")
	if err != nil {
		t.Fatalf("Resolve(latest): %v", err)
	}
	if resolved.Hash() != tip {
		t.Errorf("latest resolves to %s, want tip %s", resolved.Hash(), tip)
	}
}

func TestBranchList_SameSecondCollisionOverwritesWithOlderCommit(t *testing.T) {
	root, base, tip := buildBranchHistory(t)

	main, err := root.Sub("main")
	if err != nil {
		t.Fatalf("Sub(main): %v", err)
	}
	subs, err := main.Subs()
	if err != nil {
		t.Fatalf("Subs: %v", err)
	}

	name := time.Unix(5000, 0).UTC().Format("2006-01-02-150405")
	var timestamped []vfs.Node
	for _, n := range subs {
		if n.Name() == name {
			timestamped = append(timestamped, n)
		}
	}
	// tip and base were both authored in the same second and share a name:
	// only one entry survives in the directory listing, not two.
	if len(timestamped) != 1 {
		t.Fatalf("got %d entries named %q, want exactly 1 (collision overwrite)", len(timestamped), name)
	}

	resolved, err := vfs.Resolve(main, name)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", name, err)
	}
	// RevList returns newest-first (tip, then base); base is processed
	// second and overwrites tip's entry at the shared name.
	if resolved.Hash() != base {
		t.Errorf("collision survivor = %s, want base commit %s (tip %s should have been overwritten)", resolved.Hash(), base, tip)
	}
}
