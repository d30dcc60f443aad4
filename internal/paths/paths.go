// Package paths provides path resolution and safe-write utilities.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Stem returns the file name without its directory or extension.
// Volume identifiers are derived from file stems, so "wt_specimen1.nrrd"
// yields "wt_specimen1".
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// EnsureDir creates the directory and any missing parents.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ResolveAgainst resolves rel against the directory containing doc.
// Absolute paths are returned cleaned but otherwise untouched. Config
// documents reference their inputs relative to their own location, so a
// tree can be moved wholesale without breaking the references.
func ResolveAgainst(doc string, rel string) string {
	if rel == "" {
		return filepath.Clean(filepath.Dir(doc))
	}
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Clean(filepath.Join(filepath.Dir(doc), rel))
}

// WriteFileAtomic writes data to path via a scratch file in the same
// directory, renamed into place on success. A reader never observes a
// partially written file, and an interrupted run leaves only the scratch
// file behind.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating scratch file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing scratch file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing scratch file %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting mode on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("promoting %s to %s: %w", tmpName, path, err)
	}
	return nil
}
