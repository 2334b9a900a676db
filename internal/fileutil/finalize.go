// Package fileutil provides shared file operation helpers.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// TempContext holds state for an atomic file write operation.
type TempContext struct {
	TmpFile *os.File
	TmpName string
	Target  string

	committed bool
}

// NewTempContext creates a temp file next to outPath for atomic writing.
// Caller must defer CleanupOnError.
func NewTempContext(outPath string) (*TempContext, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(outPath), ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}

	return &TempContext{
		TmpFile: tmpFile,
		TmpName: tmpFile.Name(),
		Target:  outPath,
	}, nil
}

// CleanupOnError closes the temp file and removes it if the write failed or was never committed.
func (tc *TempContext) CleanupOnError(errp *error) {
	tc.TmpFile.Close() //nolint:errcheck,gosec // best-effort cleanup

	if *errp != nil || !tc.committed {
		os.Remove(tc.TmpName) //nolint:errcheck,gosec // best-effort cleanup
	}
}

// Commit sets perm on the temp file, renames it onto the target and returns the final size.
func (tc *TempContext) Commit(perm os.FileMode) (int64, error) {
	if err := tc.TmpFile.Chmod(perm); err != nil {
		return 0, fmt.Errorf("setting file permissions: %w", err)
	}

	if err := tc.TmpFile.Sync(); err != nil {
		return 0, fmt.Errorf("syncing temporary file: %w", err)
	}

	if err := tc.TmpFile.Close(); err != nil {
		return 0, fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Rename(tc.TmpName, tc.Target); err != nil {
		return 0, fmt.Errorf("renaming output file: %w", err)
	}

	tc.committed = true

	info, err := os.Stat(tc.Target)
	if err != nil {
		return 0, fmt.Errorf("stat output %q: %w", tc.Target, err)
	}

	return info.Size(), nil
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte, perm os.FileMode) (err error) {
	tc, err := NewTempContext(path)
	if err != nil {
		return err
	}

	defer tc.CleanupOnError(&err)

	if _, err = tc.TmpFile.Write(data); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}

	_, err = tc.Commit(perm)

	return err
}

// ResolveOutput returns output, or output/name when output is an existing directory.
func ResolveOutput(output, name string) string {
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, name)
	}

	return output
}
