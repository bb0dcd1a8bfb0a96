package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mcard-go/internal/card"
	"mcard-go/internal/config"
	"mcard-go/internal/database"
	"mcard-go/internal/ingest"
	"mcard-go/internal/mcard"
	"mcard-go/internal/testutil"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig("test-store", dir)
	cfg.LogDir = ""
	cfg.Snapshot.Encryption = config.EncryptionConfig{Type: "none"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *bytes.Buffer) {
	t.Helper()
	var stderr bytes.Buffer
	a, err := newApp(cfg, "test", &stderr, testutil.FixedClock(), testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, &stderr
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Hash.DefaultAlgorithm = "crc32"

	if _, err := newApp(cfg, "test", &bytes.Buffer{}, testutil.FixedClock(), testutil.NewStubIDGenerator()); err == nil {
		t.Fatal("newApp() expected error for unknown algorithm")
	}
}

func TestApp_AddFile(t *testing.T) {
	a, _ := newTestApp(t, newTestConfig(t))
	path := filepath.Join(t.TempDir(), "hello.txt")
	writeFile(t, path, "Hello MCard")

	digest, err := a.AddFile(context.Background(), path, "")
	if err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if digest != testutil.SHA256Hex([]byte("Hello MCard")) {
		t.Errorf("digest = %s, want sha256 of content", digest)
	}

	text, err := a.CardText(digest)
	if err != nil {
		t.Fatalf("CardText() error = %v", err)
	}
	if text != "Hello MCard" {
		t.Errorf("CardText() = %q", text)
	}

	c, err := a.Service().Get(digest)
	if err != nil || c == nil {
		t.Fatalf("Get() = %v, %v", c, err)
	}
	if !strings.HasPrefix(c.GTime(), "sha256|2024-01-15T10:30:00") || !strings.HasSuffix(c.GTime(), "|UTC") {
		t.Errorf("GTime() = %q", c.GTime())
	}
}

func TestApp_AddFileWithAlgorithm(t *testing.T) {
	a, _ := newTestApp(t, newTestConfig(t))
	path := filepath.Join(t.TempDir(), "doc.txt")
	writeFile(t, path, "payload")

	digest, err := a.AddFile(context.Background(), path, "SHA-512")
	if err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if len(digest) != 128 {
		t.Errorf("digest length = %d, want 128", len(digest))
	}

	if _, err := a.AddFile(context.Background(), path, "crc32"); mcard.Code(err) != mcard.CodeInvalidHashAlgorithm {
		t.Errorf("AddFile(crc32) code = %q, want %q", mcard.Code(err), mcard.CodeInvalidHashAlgorithm)
	}
}

func TestApp_AddReaderTooLarge(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Ingest.MaxBytes = 4
	a, _ := newTestApp(t, cfg)

	_, err := a.AddReader(context.Background(), strings.NewReader("12345"), "")
	if !errors.Is(err, mcard.ErrIngestTooLarge) {
		t.Fatalf("AddReader() error = %v, want ErrIngestTooLarge", err)
	}
	n, err := a.Service().Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

func TestApp_AddReaderEmpty(t *testing.T) {
	a, _ := newTestApp(t, newTestConfig(t))

	_, err := a.AddReader(context.Background(), strings.NewReader(""), "")
	if !errors.Is(err, card.ErrEmptyContent) {
		t.Fatalf("AddReader() error = %v, want ErrEmptyContent", err)
	}
}

func TestApp_AddDirectory(t *testing.T) {
	a, _ := newTestApp(t, newTestConfig(t))
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")
	writeFile(t, filepath.Join(root, "b.log"), "ignored")
	writeFile(t, filepath.Join(root, "empty.txt"), "")
	writeFile(t, filepath.Join(root, "sub", "c.txt"), "alpha")
	writeFile(t, filepath.Join(root, ingest.IgnoreFileName), "*.log\n")

	results, err := a.AddDirectory(context.Background(), root, true, "")
	if err != nil {
		t.Fatalf("AddDirectory() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3: %+v", len(results), results)
	}

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			if !errors.Is(r.Err, card.ErrEmptyContent) {
				t.Errorf("%s: error = %v, want ErrEmptyContent", r.Path, r.Err)
			}
		}
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}

	n, err := a.Service().Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1 (identical files share a card)", n)
	}
}

func TestApp_Handles(t *testing.T) {
	a, _ := newTestApp(t, newTestConfig(t))
	dir := t.TempDir()
	v1 := filepath.Join(dir, "v1.md")
	v2 := filepath.Join(dir, "v2.md")
	writeFile(t, v1, "draft one")
	writeFile(t, v2, "draft two")
	ctx := context.Background()

	d1, err := a.AddFileWithHandle(ctx, v1, "Notes", "")
	if err != nil {
		t.Fatalf("AddFileWithHandle() error = %v", err)
	}
	d2, err := a.UpdateHandleFromFile(ctx, "notes", v2, "")
	if err != nil {
		t.Fatalf("UpdateHandleFromFile() error = %v", err)
	}

	resolved, err := a.Service().ResolveHandle("notes")
	if err != nil {
		t.Fatal(err)
	}
	if resolved != d2 {
		t.Errorf("ResolveHandle() = %s, want %s", resolved, d2)
	}

	history, err := a.Service().HandleHistory("notes")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].PreviousDigest != d1 {
		t.Errorf("HandleHistory() = %+v, want one entry for %s", history, d1)
	}
}

func TestApp_Snapshot(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Snapshot.Compression = "lz4"
	a, _ := newTestApp(t, cfg)

	digest, err := a.AddReader(context.Background(), strings.NewReader("snapshot me"), "")
	if err != nil {
		t.Fatal(err)
	}

	snap, err := a.Snapshotter()
	if err != nil {
		t.Fatalf("Snapshotter() error = %v", err)
	}
	version, err := snap.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}

	dest := filepath.Join(t.TempDir(), "restored.db")
	if _, err := snap.Restore(0, nil, dest); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	restored, err := database.NewSQLiteDatabase(dest, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer restored.Close()
	c, err := restored.FindCard(digest)
	if err != nil || c == nil {
		t.Fatalf("FindCard() = %v, %v", c, err)
	}
}

func TestApp_SnapshotRequiresKeys(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Snapshot.Encryption = config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(t.TempDir(), "mcard.pub"),
		PrivateKeyPath: filepath.Join(t.TempDir(), "mcard.key"),
	}
	a, _ := newTestApp(t, cfg)

	if _, err := a.Snapshotter(); err == nil {
		t.Fatal("Snapshotter() expected error without keys")
	}
}

func TestApp_CloseLogsOutcome(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.LogLevel = "debug"
	var stderr bytes.Buffer
	a, err := newApp(cfg, "add", &stderr, testutil.FixedClock(), testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatal(err)
	}

	a.Fail(errors.New("boom"))
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got := stderr.String()
	if !strings.Contains(got, "\tid-1\toperation finished") {
		t.Errorf("log missing operation line: %q", got)
	}
	if !strings.Contains(got, "status=error") {
		t.Errorf("log missing failed status: %q", got)
	}
}
