package mcard

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Snapshotter copies the whole store to a Vault and back. A snapshot is a
// consistent SQLite copy, compressed, then encrypted when an Encryptor is
// configured.
type Snapshotter struct {
	database    Database
	vault       Vault
	encryptor   Encryptor
	storeID     string
	compression Compression
	logger      Logger
}

// NewSnapshotter creates a Snapshotter. encryptor may be nil, in which case
// snapshots are stored unencrypted.
func NewSnapshotter(database Database, vault Vault, encryptor Encryptor, storeID string, compression Compression, logger Logger) *Snapshotter {
	return &Snapshotter{
		database:    database,
		vault:       vault,
		encryptor:   encryptor,
		storeID:     storeID,
		compression: compression,
		logger:      logger,
	}
}

// Create uploads a new snapshot and returns its version.
func (s *Snapshotter) Create() (int64, error) {
	latest, err := s.vault.LatestSnapshotVersion(s.storeID)
	if err != nil {
		return 0, fmt.Errorf("checking snapshot version: %w", err)
	}
	version := latest + 1

	tmpDir, err := os.MkdirTemp("", "mcard-snapshot-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	rawPath := filepath.Join(tmpDir, "store.db")
	if err := s.database.BackupTo(rawPath); err != nil {
		return 0, fmt.Errorf("backing up database: %w", err)
	}

	packedPath := filepath.Join(tmpDir, "store.pack")
	if err := transformFile(rawPath, packedPath, func(dst io.Writer, src io.Reader) error {
		return compress(s.compression, dst, src)
	}); err != nil {
		return 0, fmt.Errorf("compressing snapshot: %w", err)
	}

	if s.encryptor != nil {
		sealedPath := filepath.Join(tmpDir, "store.age")
		if err := transformFile(packedPath, sealedPath, func(dst io.Writer, src io.Reader) error {
			return s.encryptor.Encrypt(src, dst)
		}); err != nil {
			return 0, fmt.Errorf("encrypting snapshot: %w", err)
		}
		packedPath = sealedPath
	}

	f, err := os.Open(packedPath)
	if err != nil {
		return 0, fmt.Errorf("opening snapshot for upload: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat snapshot: %w", err)
	}

	if err := s.vault.PutSnapshot(s.storeID, f, info.Size(), version); err != nil {
		return 0, fmt.Errorf("uploading snapshot: %w", err)
	}

	s.logger.Info("snapshot created", "store", s.storeID, "version", version, "size", info.Size(), "compression", s.compression)
	return version, nil
}

// Restore writes snapshot version to dest and returns the version restored.
// Version 0 selects the latest snapshot. dctx may be nil for snapshots
// written without encryption. dest must not exist.
func (s *Snapshotter) Restore(version int64, dctx DecryptionContext, dest string) (int64, error) {
	if _, err := os.Stat(dest); err == nil {
		return 0, fmt.Errorf("restore destination already exists: %s", dest)
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("checking restore destination: %w", err)
	}

	if version == 0 {
		latest, err := s.vault.LatestSnapshotVersion(s.storeID)
		if err != nil {
			return 0, fmt.Errorf("checking snapshot version: %w", err)
		}
		if latest == 0 {
			return 0, fmt.Errorf("%w: store %s has no snapshots", ErrSnapshotNotFound, s.storeID)
		}
		version = latest
	}

	tmpDir, err := os.MkdirTemp(filepath.Dir(dest), ".mcard-restore-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	downloaded := filepath.Join(tmpDir, "store.download")
	out, err := os.Create(downloaded)
	if err != nil {
		return 0, fmt.Errorf("creating download file: %w", err)
	}
	if err := s.vault.GetSnapshot(s.storeID, version, out); err != nil {
		out.Close()
		return 0, fmt.Errorf("downloading snapshot %d: %w", version, err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("closing download file: %w", err)
	}

	packed := downloaded
	if dctx != nil {
		packed = filepath.Join(tmpDir, "store.pack")
		if err := transformFile(downloaded, packed, func(dst io.Writer, src io.Reader) error {
			return dctx.Decrypt(src, dst)
		}); err != nil {
			return 0, fmt.Errorf("decrypting snapshot %d: %w", version, err)
		}
	}

	staged := filepath.Join(tmpDir, "store.db")
	if err := transformFile(packed, staged, decompress); err != nil {
		return 0, fmt.Errorf("decompressing snapshot %d: %w", version, err)
	}
	if err := os.Rename(staged, dest); err != nil {
		return 0, fmt.Errorf("moving restored store into place: %w", err)
	}

	s.logger.Info("snapshot restored", "store", s.storeID, "version", version, "dest", dest)
	return version, nil
}

// transformFile streams src through fn into a new file at dst.
func transformFile(src, dst string, fn func(dst io.Writer, src io.Reader) error) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := fn(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
