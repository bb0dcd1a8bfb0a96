package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mcard-go/internal/card"
	"mcard-go/internal/config"
	"mcard-go/internal/database"
	"mcard-go/internal/encryption"
	"mcard-go/internal/hashing"
	"mcard-go/internal/ingest"
	"mcard-go/internal/mcard"
	"mcard-go/internal/vault"
)

// App is the application layer between the CLI/HTTP surfaces and the card
// service. It constructs all dependencies from config, exposes operations
// that accept raw paths and readers, and manages the store lifecycle on Close.
type App struct {
	cfg      *config.Config
	db       *database.SQLiteDatabase
	builder  *card.Builder
	ingester *ingest.Ingester
	service  *mcard.Service
	logger   *slog.Logger
	clock    mcard.Clock
	op       *Operation
	logFile  *os.File
}

// New creates a fully wired App from the given config.
// operation names the command being run (e.g. "add", "serve").
// The caller must call Close when done.
func New(cfg *config.Config, operation string) (*App, error) {
	return newApp(cfg, operation, os.Stderr, mcard.RealClock{}, mcard.UUIDGenerator{})
}

func newApp(cfg *config.Config, operation string, stderr io.Writer, clock mcard.Clock, ids mcard.IDGenerator) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	algo, err := hashing.ParseAlgorithm(cfg.Hash.DefaultAlgorithm)
	if err != nil {
		return nil, err
	}

	op := NewOperation(operation, ids, clock)
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, cfg.LogLevel, stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Store)
	if err != nil {
		closeFile(logFile)
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		closeFile(logFile)
		return nil, fmt.Errorf("store schema out of date: %w", err)
	}

	hasher := hashing.NewService()
	builder := card.NewBuilder(hasher,
		card.WithClock(clock.Now),
		card.WithRegion(cfg.Hash.Region),
		card.WithDefaultAlgorithm(algo),
	)
	svc := mcard.NewService(db, hasher, &slogAdapter{l: logger}, clock, ids)

	logger.Debug("operation started", "name", op.Name, "store", cfg.Store.Type)

	return &App{
		cfg:      cfg,
		db:       db,
		builder:  builder,
		ingester: ingest.New(cfg.Ingest.MaxBytes, time.Duration(cfg.Ingest.ReadTimeoutSeconds)*time.Second),
		service:  svc,
		logger:   logger,
		clock:    clock,
		op:       op,
		logFile:  logFile,
	}, nil
}

// Config returns the config the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Service returns the card service.
func (a *App) Service() *mcard.Service { return a.service }

// Builder returns the card builder configured with the default algorithm
// and region.
func (a *App) Builder() *card.Builder { return a.builder }

// Ingester returns the size and deadline bounded reader for external input.
func (a *App) Ingester() *ingest.Ingester { return a.ingester }

// Logger returns the operation's logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Operation returns the operation this App was opened for.
func (a *App) Operation() *Operation { return a.op }

// NewCard builds a card from data. An empty algorithm selects the
// configured default.
func (a *App) NewCard(data []byte, algorithm string) (*card.Card, error) {
	if algorithm == "" {
		return a.builder.New(card.Binary(data))
	}
	algo, err := hashing.ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	return a.builder.NewWithAlgorithm(card.Binary(data), algo)
}

// AddReader reads r under the ingest limits and stores the result.
func (a *App) AddReader(ctx context.Context, r io.Reader, algorithm string) (string, error) {
	data, err := a.ingester.Read(ctx, r)
	if err != nil {
		return "", err
	}
	return a.addBytes(data, algorithm)
}

// AddFile reads the regular file at rawPath and stores it.
func (a *App) AddFile(ctx context.Context, rawPath, algorithm string) (string, error) {
	data, err := a.ingester.ReadFile(ctx, rawPath)
	if err != nil {
		return "", err
	}
	return a.addBytes(data, algorithm)
}

func (a *App) addBytes(data []byte, algorithm string) (string, error) {
	c, err := a.NewCard(data, algorithm)
	if err != nil {
		return "", err
	}
	return a.service.Add(c)
}

// AddedFile is one result of AddDirectory.
type AddedFile struct {
	Path   string
	Digest string
	Err    error
}

// AddDirectory stores every file under root that the ignore rules let
// through. A file that fails does not stop the walk; its error is reported
// in its result. ErrStoreBusy aborts the remaining files.
func (a *App) AddDirectory(ctx context.Context, root string, recursive bool, algorithm string) ([]AddedFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	paths, err := ingest.FindFiles(absRoot, recursive, nil)
	if err != nil {
		return nil, err
	}

	results := make([]AddedFile, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		digest, err := a.AddFile(ctx, p, algorithm)
		results = append(results, AddedFile{Path: p, Digest: digest, Err: err})
		if err != nil {
			a.logger.Warn("skipping file", "path", p, "error", err)
			if mcard.Code(err) == mcard.CodeStoreBusy {
				return results, err
			}
			continue
		}
		a.logger.Info("added file", "path", p, "digest", digest)
	}
	return results, nil
}

// AddFileWithHandle stores the file at rawPath and registers name for it.
func (a *App) AddFileWithHandle(ctx context.Context, rawPath, name, algorithm string) (string, error) {
	data, err := a.ingester.ReadFile(ctx, rawPath)
	if err != nil {
		return "", err
	}
	c, err := a.NewCard(data, algorithm)
	if err != nil {
		return "", err
	}
	return a.service.AddWithHandle(c, name)
}

// UpdateHandleFromFile stores the file at rawPath and repoints name at it.
func (a *App) UpdateHandleFromFile(ctx context.Context, name, rawPath, algorithm string) (string, error) {
	data, err := a.ingester.ReadFile(ctx, rawPath)
	if err != nil {
		return "", err
	}
	c, err := a.NewCard(data, algorithm)
	if err != nil {
		return "", err
	}
	return a.service.UpdateHandle(name, c)
}

// CardText returns the stored card as UTF-8 text.
func (a *App) CardText(digest string) (string, error) {
	c, err := a.service.Get(digest)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", fmt.Errorf("card %s not found", digest)
	}
	return c.Text()
}

// CardBytes returns the stored card payload, or nil when it is absent.
func (a *App) CardBytes(digest string) ([]byte, error) {
	c, err := a.service.Get(digest)
	if err != nil || c == nil {
		return nil, err
	}
	return c.Bytes(), nil
}

// Encryptor builds the snapshot encryptor from config. It is nil when
// encryption is disabled.
func (a *App) Encryptor() (mcard.Encryptor, error) {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Snapshot.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	return enc, nil
}

// Snapshotter builds a Snapshotter over the configured vault and encryptor.
func (a *App) Snapshotter() (*mcard.Snapshotter, error) {
	v, err := vault.NewVaultFromConfig(a.cfg.Snapshot.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	if err := v.ValidateSetup(); err != nil {
		return nil, fmt.Errorf("validating vault: %w", err)
	}
	enc, err := a.Encryptor()
	if err != nil {
		return nil, err
	}
	if enc != nil && !enc.IsConfigured() {
		return nil, fmt.Errorf("encryption keys not found: run 'mcard keys init' first")
	}
	compression, err := mcard.ParseCompression(a.cfg.Snapshot.Compression)
	if err != nil {
		return nil, err
	}
	return mcard.NewSnapshotter(a.db, v, enc, a.cfg.StoreID, compression, &slogAdapter{l: a.logger}), nil
}

// Fail marks the operation as failed. Close logs the outcome.
func (a *App) Fail(err error) {
	a.op.Finish(err, a.clock)
}

// Close finishes the operation and closes the store and the log file.
func (a *App) Close() error {
	elapsed := a.op.Finish(nil, a.clock)
	a.logger.Debug("operation finished", "name", a.op.Name, "status", a.op.Status, "elapsed", elapsed)

	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	closeFile(a.logFile)
	return firstErr
}

func closeFile(f *os.File) {
	if f != nil {
		f.Close()
	}
}
