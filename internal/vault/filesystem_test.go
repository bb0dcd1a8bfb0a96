package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileSystemVault(t *testing.T) {
	t.Run("creates directory structure", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "vault")

		v, err := NewFileSystemVault("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}

		if _, err := os.Stat(filepath.Join(root, "snapshots")); err != nil {
			t.Errorf("snapshots directory not created: %v", err)
		}
		if v.name != "test" {
			t.Errorf("name = %q, want %q", v.name, "test")
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		if _, err := NewFileSystemVault("test", t.TempDir()); err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
	})
}

func TestFileSystemVault_Layout(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault("test", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	if err := v.PutSnapshot("store-a", strings.NewReader("data"), 4, 12); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	want := filepath.Join(root, "snapshots", "store-a", "12.snap")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("snapshot not written to %s: %v", want, err)
	}

	// Stray files in the store directory are ignored.
	os.WriteFile(filepath.Join(root, "snapshots", "store-a", "notes.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(root, "snapshots", "store-a", "99.tmp"), []byte("x"), 0644)

	latest, err := v.LatestSnapshotVersion("store-a")
	if err != nil {
		t.Fatalf("LatestSnapshotVersion() error = %v", err)
	}
	if latest != 12 {
		t.Errorf("LatestSnapshotVersion() = %d, want 12", latest)
	}
}

func TestFileSystemVault_ValidateSetupMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	v, err := NewFileSystemVault("test", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	os.RemoveAll(root)

	if err := v.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() succeeded after root was removed")
	}
}
