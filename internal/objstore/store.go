package objstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Ref is a named pointer to a commit (branch or tag). For annotated tags,
// Hash is the tag object's own hash; callers that need the peeled commit
// call PeelRef.
type Ref struct {
	Name string
	Hash Hash
}

// CommitMeta is the (hash, author time) pair RevList yields for each commit
// it visits — exactly what CommitDir/BranchList need to synthesize their
// children without materializing full Commit bodies for commits that are
// only ever displayed, never diffed.
type CommitMeta struct {
	Hash       Hash
	AuthorTime time.Time
}

// Store is the narrow read surface GC and VFS consume. DiskStore is the
// only implementation; gc and vfs package tests build one against a real
// temporary directory rather than mocking it, matching how this object
// store is tested in package.
type Store interface {
	Cat(hash Hash) (ObjectType, []byte, error)
	ReadTree(hash Hash) (*Tree, error)
	ReadCommit(hash Hash) (*Commit, error)
	Join(hash Hash) (io.ReadCloser, error)
	PeelRef(hash Hash) (Hash, error)
	PackIndices() []PackIndexReader
	RefEnumerator
}

// PackIndexReader is the per-pack surface the sweeper needs: length,
// membership, and the underlying pack/index paths. Satisfied by *PackIndex.
type PackIndexReader interface {
	Len() int
	Hashes() []Hash
	FindObject(hash Hash) (int64, bool)
	PackFile() string
	Path() string
}

// RefEnumerator lists refs and walks commit history by author time, exactly
// the "lists refs... and walks commit history" external collaborator.
type RefEnumerator interface {
	Refs() []Ref
	RevList(start Hash, stop func(Hash) bool) ([]CommitMeta, error)
}

// DiskStore is an on-disk, content-addressed object store: loose objects,
// pack files plus their indices, and the ref namespace.
type DiskStore struct {
	gitDir  string
	workDir string

	objectsDir string
	packDir    string

	packIndices []*PackIndex

	refs         map[string]Hash
	head         Hash
	headRef      string
	headDetached bool
}

// Open opens a repository rooted at path (a working directory, a .git
// directory, or a bare repository).
func Open(path string) (*DiskStore, error) {
	gitDir, workDir, err := findGitDirectory(path)
	if err != nil {
		return nil, err
	}
	if err := validateGitDirectory(gitDir); err != nil {
		return nil, err
	}

	fs := &DiskStore{
		gitDir:     gitDir,
		workDir:    workDir,
		objectsDir: filepath.Join(gitDir, "objects"),
		packDir:    filepath.Join(gitDir, "objects", "pack"),
		refs:       make(map[string]Hash),
	}

	indices, err := loadPackIndices(fs.packDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load pack indices: %w", err)
	}
	fs.packIndices = indices

	if err := fs.loadRefs(); err != nil {
		return nil, fmt.Errorf("failed to load refs: %w", err)
	}

	return fs, nil
}

// GitDir returns the path to the repository's object-store root (".git"-like directory).
func (fs *DiskStore) GitDir() string { return fs.gitDir }

// WorkDir returns the repository's working directory, equal to GitDir for bare repositories.
func (fs *DiskStore) WorkDir() string { return fs.workDir }

// PackDir returns the directory holding .pack/.idx files.
func (fs *DiskStore) PackDir() string { return fs.packDir }

// ObjectsDir returns the loose-object root ("objects").
func (fs *DiskStore) ObjectsDir() string { return fs.objectsDir }

// Head returns the hash HEAD currently resolves to, or "" for an unborn repository.
func (fs *DiskStore) Head() Hash { return fs.head }

// ReloadPackIndices re-scans the pack directory. Called after a sweep
// rewrites or deletes packs, since the in-memory index list would otherwise
// reference now-gone files.
func (fs *DiskStore) ReloadPackIndices() error {
	indices, err := loadPackIndices(fs.packDir)
	if err != nil {
		return fmt.Errorf("failed to reload pack indices: %w", err)
	}
	fs.packIndices = indices
	return nil
}

// PackIndices returns one PackIndexReader per loaded pack.
func (fs *DiskStore) PackIndices() []PackIndexReader {
	out := make([]PackIndexReader, len(fs.packIndices))
	for i, idx := range fs.packIndices {
		out[i] = idx
	}
	return out
}

// Refs returns every ref (branch or tag) sorted by name.
func (fs *DiskStore) Refs() []Ref {
	out := make([]Ref, 0, len(fs.refs))
	for name, hash := range fs.refs {
		out = append(out, Ref{Name: name, Hash: hash})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Cat returns the type and raw bytes of any object, loose or packed. Blobs
// are returned as opaque bytes; commits and trees can additionally be
// fetched parsed via ReadCommit/ReadTree.
func (fs *DiskStore) Cat(hash Hash) (ObjectType, []byte, error) {
	data, typeByte, err := fs.ReadObjectData(hash)
	if err != nil {
		return NoneObject, nil, err
	}
	return ObjectType(typeByte), data, nil
}

// ReadTree reads and parses a tree object.
func (fs *DiskStore) ReadTree(hash Hash) (*Tree, error) {
	obj, err := fs.readObject(hash)
	if err != nil {
		return nil, err
	}
	tree, ok := obj.(*Tree)
	if !ok {
		return nil, fmt.Errorf("object %s is not a tree", hash)
	}
	return tree, nil
}

// ReadCommit reads and parses a commit object.
func (fs *DiskStore) ReadCommit(hash Hash) (*Commit, error) {
	obj, err := fs.readObject(hash)
	if err != nil {
		return nil, err
	}
	commit, ok := obj.(*Commit)
	if !ok {
		return nil, fmt.Errorf("object %s is not a commit", hash)
	}
	return commit, nil
}

// PeelRef resolves an annotated tag chain down to the commit it ultimately
// targets. If hash already names a commit, it is returned unchanged.
func (fs *DiskStore) PeelRef(hash Hash) (Hash, error) {
	seen := make(map[Hash]bool)
	for {
		if seen[hash] {
			return "", fmt.Errorf("cyclic tag chain at %s", hash)
		}
		seen[hash] = true

		objType, data, err := fs.Cat(hash)
		if err != nil {
			return "", err
		}
		switch objType {
		case CommitObject:
			return hash, nil
		case TagObject:
			target, err := parseTagTarget(data)
			if err != nil {
				return "", fmt.Errorf("invalid tag object %s: %w", hash, err)
			}
			hash = target
		default:
			return "", fmt.Errorf("ref target %s is neither a commit nor a tag (type %s)", hash, objType)
		}
	}
}

// Join returns a reader over the full concatenated byte content addressed by
// hash: a blob's raw bytes, or — if hash names a chunked split-tree — the
// depth-first concatenation of every leaf blob in offset order.
func (fs *DiskStore) Join(hash Hash) (io.ReadCloser, error) {
	objType, data, err := fs.Cat(hash)
	if err != nil {
		return nil, err
	}
	if objType == BlobObject {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	if objType != TreeObject {
		return nil, fmt.Errorf("object %s is neither a blob nor a tree (type %s)", hash, objType)
	}
	tree, err := parseTreeBody(data, hash)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(fs.joinTree(tree, pw))
	}()
	return pr, nil
}

func (fs *DiskStore) joinTree(tree *Tree, w io.Writer) error {
	for _, entry := range tree.Entries {
		objType, data, err := fs.Cat(entry.Hash)
		if err != nil {
			return err
		}
		switch objType {
		case BlobObject:
			if _, err := w.Write(data); err != nil {
				return err
			}
		case TreeObject:
			subtree, err := parseTreeBody(data, entry.Hash)
			if err != nil {
				return err
			}
			if err := fs.joinTree(subtree, w); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected object type %s in split-tree", objType)
		}
	}
	return nil
}

// RevList walks commit parents starting at start, breadth-first, skipping
// any commit for which stop returns true (and not descending into its
// parents) — the hook CommitDir/BranchList use to early-exit when a ref's
// history merges into history already recorded under another ref. The
// result is sorted newest-first by author time.
func (fs *DiskStore) RevList(start Hash, stop func(Hash) bool) ([]CommitMeta, error) {
	if start == "" {
		return nil, nil
	}

	var result []CommitMeta
	visited := make(map[Hash]bool)
	queue := []Hash{start}

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if visited[h] {
			continue
		}
		visited[h] = true
		if stop != nil && stop(h) {
			continue
		}

		commit, err := fs.ReadCommit(h)
		if err != nil {
			return nil, fmt.Errorf("failed to read commit %s: %w", h, err)
		}
		result = append(result, CommitMeta{Hash: h, AuthorTime: commit.Author.When})
		queue = append(queue, commit.Parents...)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].AuthorTime.After(result[j].AuthorTime) })
	return result, nil
}

// findGitDirectory walks up from startPath to locate the repository root.
func findGitDirectory(startPath string) (gitDir string, workDir string, err error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if filepath.Base(absPath) == ".git" {
		info, err := os.Stat(absPath)
		if err == nil && info.IsDir() {
			return absPath, filepath.Dir(absPath), nil
		}
	}

	if isBareRepository(absPath) {
		return absPath, absPath, nil
	}

	currentPath := absPath
	for {
		gitPath := filepath.Join(currentPath, ".git")

		info, err := os.Stat(gitPath)
		if err == nil {
			if info.IsDir() {
				return gitPath, currentPath, nil
			}
			return handleGitFile(gitPath, currentPath)
		}

		parentPath := filepath.Dir(currentPath)
		if parentPath == currentPath {
			return "", "", fmt.Errorf("not a bupcask repository (or any parent up to mount point): %s", startPath)
		}
		currentPath = parentPath
	}
}

// handleGitFile handles ".git" files (worktrees, submodules) of format "gitdir: <path>".
func handleGitFile(gitFilePath string, workDir string) (string, string, error) {
	//nolint:gosec // G304: .git file path is controlled by repository location
	content, err := os.ReadFile(gitFilePath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read .git file: %w", err)
	}

	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir: ") {
		return "", "", fmt.Errorf("invalid .git file format: %s", gitFilePath)
	}

	gitDir := strings.TrimPrefix(line, "gitdir: ")
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(filepath.Dir(gitFilePath), gitDir)
	}
	gitDir = filepath.Clean(gitDir)

	if _, err := os.Stat(gitDir); err != nil {
		return "", "", fmt.Errorf("gitdir points to non-existent directory: %s", gitDir)
	}

	return gitDir, workDir, nil
}

// validateGitDirectory checks that gitDir exists, is a directory, and contains
// the expected internals (objects, refs, HEAD).
func validateGitDirectory(gitDir string) error {
	info, err := os.Stat(gitDir)
	if err != nil {
		return fmt.Errorf("repository directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repository path is not a directory: %s", gitDir)
	}

	requiredPaths := []string{"objects", "refs", "HEAD"}
	for _, required := range requiredPaths {
		path := filepath.Join(gitDir, required)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("invalid repository, missing: %s", required)
		}
	}

	return nil
}

// isBareRepository checks whether path looks like a bare repository: a
// directory containing objects/, refs/, and HEAD but no .git subdirectory.
func isBareRepository(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
		return false
	}
	for _, required := range []string{"objects", "refs", "HEAD"} {
		if _, err := os.Stat(filepath.Join(path, required)); err != nil {
			return false
		}
	}
	return true
}
