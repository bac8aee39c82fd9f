// Package pathutil converts between absolute paths and the slash-separated,
// repository-relative paths that entities, the store and tool output use.
package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to a slash-separated path relative to
// rootDir. Paths outside the root, relative paths and empty inputs come back
// unchanged.
//
// Examples:
//   - ToRelative("/home/user/project/src/lib.rs", "/home/user/project") → "src/lib.rs"
//   - ToRelative("/other/location/lib.rs", "/home/user/project") → "/other/location/lib.rs"
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" || !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	relPath, err := filepath.Rel(filepath.Clean(rootDir), absPath)
	if err != nil {
		// different volumes on Windows
		return absPath
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}
	return filepath.ToSlash(relPath)
}

// ToRepoPath resolves p against rootDir and returns it as a repository path.
// It fails for empty paths and for paths that leave the root.
func ToRepoPath(p, rootDir string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(p) {
		rel := ToRelative(p, rootDir)
		if filepath.IsAbs(rel) {
			return "", fmt.Errorf("%s is outside the repository root %s", p, rootDir)
		}
		p = rel
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%s is outside the repository root %s", p, rootDir)
	}
	return filepath.ToSlash(clean), nil
}

// ToAbsolute joins a repository path onto rootDir.
func ToAbsolute(repoPath, rootDir string) string {
	if filepath.IsAbs(repoPath) {
		return repoPath
	}
	return filepath.Join(rootDir, filepath.FromSlash(repoPath))
}
