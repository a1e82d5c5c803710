// Package pathutil provides path manipulation for slash-separated archive paths.
package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/meigma/rangezip/internal/ziptype"
)

// Base returns the last element of a slash-separated path.
// If path is empty or ".", it returns ".".
func Base(path string) string {
	if path == "" || path == "." {
		return "."
	}
	// Remove trailing slash if present
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// DirPrefix converts a path to its directory prefix form.
// For ".", returns "" (empty prefix matches all).
// For other paths, appends "/" to match children.
func DirPrefix(name string) string {
	if name == "." {
		return ""
	}
	return name + "/"
}

// Child extracts the immediate child name from a full path given a prefix.
// Returns the child name and whether it's a subdirectory (has more path components).
// If path doesn't have the prefix, behavior is undefined.
func Child(path, prefix string) (name string, isSubDir bool) {
	relPath := strings.TrimPrefix(path, prefix)
	if idx := strings.Index(relPath, "/"); idx >= 0 {
		return relPath[:idx], true
	}
	return relPath, false
}

// Sanitize converts an entry name into a relative, OS-specific path that
// cannot escape the directory it is joined to. Empty, "." and ".."
// components are dropped. With windows set, a drive prefix is removed,
// characters Windows forbids become "_", and trailing dots are stripped.
// A name with no remaining components fails with ErrInsecurePath.
func Sanitize(name string, windows bool) (string, error) {
	if windows {
		name = strings.ReplaceAll(name, `\`, "/")
		if len(name) >= 2 && name[1] == ':' && isLetter(name[0]) {
			name = name[2:]
		}
	}

	parts := strings.Split(name, "/")
	kept := parts[:0]
	for _, p := range parts {
		if windows {
			p = windowsReplacer.Replace(p)
			p = strings.TrimRight(p, ".")
		}
		if p == "" || p == "." || p == ".." {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("%w: %q", ziptype.ErrInsecurePath, name)
	}
	return filepath.Join(kept...), nil
}

// Within joins rel to root and checks that the result lies strictly inside root.
func Within(root, rel string) (string, error) {
	root = filepath.Clean(root)
	target := filepath.Join(root, rel)
	r, err := filepath.Rel(root, target)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) || filepath.IsAbs(r) {
		return "", fmt.Errorf("%w: %q escapes %q", ziptype.ErrInsecurePath, rel, root)
	}
	return target, nil
}

var windowsReplacer = strings.NewReplacer(
	":", "_", "<", "_", ">", "_", "|", "_", `"`, "_", "?", "_", "*", "_",
)

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
