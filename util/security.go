package util

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilePath resolves path and confirms it stays inside one of
// allowedDirs. It exists for operator-supplied paths, auction import and
// export files and configured data directories, where a stray ".." or an
// absolute path into /etc must fail loudly rather than be written through.
func ValidateFilePath(path string, allowedDirs []string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("path contains a null byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	if len(allowedDirs) == 0 {
		return abs, nil
	}
	for _, dir := range allowedDirs {
		absDir, err := filepath.Abs(filepath.Clean(dir))
		if err != nil {
			continue
		}
		if abs == absDir || strings.HasPrefix(abs, absDir+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("path %q is outside the allowed directories", path)
}

// IsPathSafe reports whether a relative path component is free of traversal
// sequences. It is the cheap pre-check used before ValidateFilePath when the
// caller only has a file name, never a full path.
func IsPathSafe(path string) bool {
	if path == "" || strings.ContainsRune(path, '\x00') {
		return false
	}
	clean := filepath.Clean(path)
	if filepath.IsAbs(clean) {
		return false
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
