package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of the entrysim data directory.
const DirName = ".entrysim"

// DBFile is the name of the run database inside the data directory.
const DBFile = "entrysim.db"

// GlobalPath returns the path to the global .entrysim directory.
// On Unix: ~/.entrysim
// On Windows: %USERPROFILE%\.entrysim
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// LocalPath returns the path to the .entrysim directory under root.
func LocalPath(root string) string {
	return filepath.Join(root, DirName)
}

// EnsureDir creates dir if it doesn't exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
