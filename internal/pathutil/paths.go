// Package pathutil provides path helpers for artifact files and directories.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// RedactPath reduces a full path to .../<parent>/<basename> for safe error messages.
// For example, "/home/user/.repel/config.yaml" becomes ".../.repel/config.yaml".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	parent := filepath.Base(dir)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// EnsureDir creates dir and any missing parents with owner-only access.
// It is a no-op when the directory already exists.
func EnsureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory path is empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", RedactPath(dir), err)
	}
	return nil
}
