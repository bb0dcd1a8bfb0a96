package mcard

import "io"

// Vault stores versioned snapshots of a store outside the local machine.
// All operations stream through io.Reader/io.Writer so large stores are
// never held in memory.
type Vault interface {
	// PutSnapshot stores a snapshot of storeID under version.
	// size is the number of bytes that will be read from r.
	PutSnapshot(storeID string, r io.Reader, size int64, version int64) error

	// GetSnapshot writes the snapshot of storeID at version to w.
	// It returns ErrSnapshotNotFound when that version does not exist.
	GetSnapshot(storeID string, version int64, w io.Writer) error

	// LatestSnapshotVersion returns the highest stored version for storeID,
	// or 0 if there is none.
	LatestSnapshotVersion(storeID string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
