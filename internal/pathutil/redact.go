// Package pathutil shortens filesystem paths before they reach logs and
// error messages.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// RedactPath reduces a full path to .../<parent>/<basename>.
// For example, "/home/user/.entrysim/config.yaml" becomes ".../.entrysim/config.yaml".
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

// TildePath replaces the home directory prefix of path with "~". Paths
// outside the home directory are returned cleaned but otherwise unchanged.
func TildePath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return cleaned
	}
	if cleaned == home {
		return "~"
	}
	if rest, ok := strings.CutPrefix(cleaned, home+string(filepath.Separator)); ok {
		return filepath.Join("~", rest)
	}
	return cleaned
}
