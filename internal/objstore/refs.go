package objstore

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// loadRefs loads every ref (branches, tags) into fs.refs, then resolves HEAD.
func (fs *DiskStore) loadRefs() error {
	if err := fs.loadLooseRefs("heads"); err != nil {
		return fmt.Errorf("failed to load loose branches: %w", err)
	}
	if err := fs.loadLooseRefs("tags"); err != nil {
		return fmt.Errorf("failed to load loose tags: %w", err)
	}
	if err := fs.loadPackedRefs(); err != nil {
		return fmt.Errorf("failed to load packed refs: %w", err)
	}
	if err := fs.loadHEAD(); err != nil {
		return fmt.Errorf("failed to load head: %w", err)
	}

	return nil
}

// loadLooseRefs recursively loads all refs in a directory.
// prefix is like "heads" for branches, or "tags" for tags.
func (fs *DiskStore) loadLooseRefs(prefix string) error {
	refsDir := filepath.Join(fs.gitDir, "refs", prefix)

	if _, err := os.Stat(refsDir); os.IsNotExist(err) {
		// No refs of this type yet (e.g., a fresh repository with no tags).
		return nil
	} else if err != nil {
		return err
	}

	return filepath.Walk(refsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(fs.gitDir, path)
		if err != nil {
			return err
		}

		refName := filepath.ToSlash(relPath)
		hash, err := fs.resolveRef(path)
		if err != nil {
			// Log and continue; other refs may still be valid.
			log.Printf("objstore: error resolving ref %s: %v", refName, err)
			return nil
		}

		fs.refs[refName] = hash
		return nil
	})
}

// loadPackedRefs reads the packed-refs file and loads all refs within.
func (fs *DiskStore) loadPackedRefs() error {
	packedRefsFile := filepath.Join(fs.gitDir, "packed-refs")

	//nolint:gosec // G304: packed-refs path is controlled by repository structure
	file, err := os.Open(packedRefsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("objstore: failed to close packed-refs file: %v", err)
		}
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}

		hash, err := NewHash(parts[0])
		if err != nil {
			continue
		}

		fs.refs[parts[1]] = hash
	}

	return scanner.Err()
}

// loadHEAD reads and caches HEAD information.
func (fs *DiskStore) loadHEAD() error {
	headPath := filepath.Join(fs.gitDir, "HEAD")
	//nolint:gosec // G304: HEAD path is controlled by repository structure
	content, err := os.ReadFile(headPath)
	if err != nil {
		return fmt.Errorf("failed to read HEAD: %w", err)
	}

	line := strings.TrimSpace(string(content))

	if strings.HasPrefix(line, "ref: ") {
		fs.headRef = strings.TrimPrefix(line, "ref: ")
		fs.headDetached = false

		if hash, exists := fs.refs[fs.headRef]; exists {
			fs.head = hash
		} else {
			fs.head = "" // Unborn repository with no commits yet.
		}
		return nil
	}

	fs.headDetached = true
	fs.headRef = ""

	hash, err := NewHash(line)
	if err != nil {
		return fmt.Errorf("invalid HEAD: %w", err)
	}
	fs.head = hash
	return nil
}

// resolveRef reads a single ref file and returns its hash, following
// symbolic refs ("ref: refs/heads/x") to their target.
func (fs *DiskStore) resolveRef(path string) (Hash, error) {
	//nolint:gosec // G304: ref paths are controlled by repository structure
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	line := strings.TrimSpace(string(content))

	if strings.HasPrefix(line, "ref: ") {
		targetRef := strings.TrimPrefix(line, "ref: ")
		targetPath := filepath.Join(fs.gitDir, targetRef)
		return fs.resolveRef(targetPath)
	}

	hash, err := NewHash(line)
	if err != nil {
		return "", fmt.Errorf("invalid hash in ref file %s: %w", path, err)
	}
	return hash, nil
}
