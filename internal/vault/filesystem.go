package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mcard-go/internal/mcard"
)

const snapshotExt = ".snap"

// FileSystemVault stores snapshots as files in a directory structure:
//
//	<root>/
//	  snapshots/
//	    <storeID>/
//	      <version>.snap
type FileSystemVault struct {
	name         string
	root         string
	snapshotsDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	snapshotsDir := filepath.Join(root, "snapshots")

	if err := os.MkdirAll(snapshotsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &FileSystemVault{
		name:         name,
		root:         root,
		snapshotsDir: snapshotsDir,
	}, nil
}

func (v *FileSystemVault) storeDir(storeID string) string {
	return filepath.Join(v.snapshotsDir, storeID)
}

func (v *FileSystemVault) snapshotPath(storeID string, version int64) string {
	return filepath.Join(v.storeDir(storeID), strconv.FormatInt(version, 10)+snapshotExt)
}

// PutSnapshot stores a snapshot of storeID under version. Existing versions
// are never overwritten.
func (v *FileSystemVault) PutSnapshot(storeID string, r io.Reader, size int64, version int64) error {
	if version < 1 {
		return fmt.Errorf("invalid snapshot version %d", version)
	}
	if err := os.MkdirAll(v.storeDir(storeID), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	destPath := v.snapshotPath(storeID, version)
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("snapshot %d already exists for store %s", version, storeID)
	}
	return v.writeFile(destPath, r, size)
}

// GetSnapshot writes the snapshot of storeID at version to w.
func (v *FileSystemVault) GetSnapshot(storeID string, version int64, w io.Writer) error {
	f, err := os.Open(v.snapshotPath(storeID, version))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: store %s version %d", mcard.ErrSnapshotNotFound, storeID, version)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// LatestSnapshotVersion returns the highest version stored for storeID.
// Returns 0 if the store has no snapshots.
func (v *FileSystemVault) LatestSnapshotVersion(storeID string) (int64, error) {
	entries, err := os.ReadDir(v.storeDir(storeID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("listing snapshots: %w", err)
	}

	var latest int64
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), snapshotExt)
		if !ok || e.IsDir() {
			continue
		}
		version, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		latest = max(latest, version)
	}
	return latest, nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.snapshotsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Temp file in the same directory so the rename stays on one filesystem
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements mcard.Vault interface
var _ mcard.Vault = (*FileSystemVault)(nil)
