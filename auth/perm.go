package auth

import (
	"path/filepath"
	"strings"
)

// samePath reports whether a and b name the same host path, ignoring a
// trailing separator.
func samePath(a, b string) bool {
	return strings.TrimRight(filepath.Clean(a), string(filepath.Separator)) ==
		strings.TrimRight(filepath.Clean(b), string(filepath.Separator))
}

// isUnderDir reports whether path is dir itself or a descendant of it.
func isUnderDir(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)

	if samePath(path, dir) {
		return true
	}

	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
