package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"mcard-go/internal/mcard"
)

// MemoryVault keeps snapshots in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name      string
	snapshots map[string]map[int64][]byte // storeID -> version -> snapshot
	mu        sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:      name,
		snapshots: make(map[string]map[int64][]byte),
	}
}

// PutSnapshot stores a snapshot of storeID under version.
func (m *MemoryVault) PutSnapshot(storeID string, r io.Reader, size int64, version int64) error {
	if version < 1 {
		return fmt.Errorf("invalid snapshot version %d", version)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	versions, ok := m.snapshots[storeID]
	if !ok {
		versions = make(map[int64][]byte)
		m.snapshots[storeID] = versions
	}
	if _, exists := versions[version]; exists {
		return fmt.Errorf("snapshot %d already exists for store %s", version, storeID)
	}
	versions[version] = data
	return nil
}

// GetSnapshot writes the snapshot of storeID at version to w.
func (m *MemoryVault) GetSnapshot(storeID string, version int64, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.snapshots[storeID][version]
	if !ok {
		return fmt.Errorf("%w: store %s version %d", mcard.ErrSnapshotNotFound, storeID, version)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

// LatestSnapshotVersion returns the highest version stored for storeID, or 0.
func (m *MemoryVault) LatestSnapshotVersion(storeID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest int64
	for v := range m.snapshots[storeID] {
		latest = max(latest, v)
	}
	return latest, nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryVault implements mcard.Vault interface
var _ mcard.Vault = (*MemoryVault)(nil)
