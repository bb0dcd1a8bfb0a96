package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"mcard-go/internal/card"
	"mcard-go/internal/database/migrations"
	"mcard-go/internal/hashing"
	"mcard-go/internal/mcard"
)

// MemoryPath opens a private in-memory store.
const MemoryPath = ":memory:"

// Options tunes the SQLite connection pool.
type Options struct {
	// MaxConnections caps open connections. In-memory stores always use one.
	MaxConnections int

	// LockTimeout is how long a statement waits for a lock before failing
	// with mcard.ErrStoreBusy.
	LockTimeout time.Duration
}

// DefaultOptions returns the pool settings used when none are configured.
func DefaultOptions() Options {
	return Options{MaxConnections: 4, LockTimeout: 5 * time.Second}
}

// SQLiteDatabase implements mcard.Database using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *Queries
	path    string
}

// NewSQLiteDatabase opens a SQLite store at path, or an in-memory store
// for MemoryPath. The schema is not migrated; see migrations.MigrateUp.
func NewSQLiteDatabase(path string, opts Options) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path, opts)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{
		db:      db,
		queries: New(db),
		path:    path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:      db,
		queries: New(db),
	}
}

// OpenConnection opens a SQLite connection pool configured through the DSN,
// so every pooled connection gets the same pragmas.
func OpenConnection(path string, opts Options) (*sql.DB, error) {
	memory := isMemory(path)
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch {
	case memory:
		// Each connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	case opts.MaxConnections > 0:
		db.SetMaxOpenConns(opts.MaxConnections)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func isMemory(path string) bool {
	return path == MemoryPath || strings.HasPrefix(path, "file::memory:")
}

// dsn builds a go-sqlite3 connection string. Write transactions begin
// IMMEDIATE so concurrent writers queue on the busy timeout instead of
// failing when a read lock is upgraded.
func dsn(path string, opts Options) string {
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultOptions().LockTimeout
	}

	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	params.Set("_txlock", "immediate")
	if !isMemory(path) {
		params.Set("_journal_mode", "WAL")
		params.Set("_synchronous", "NORMAL")
	}
	return path + "?" + params.Encode()
}

// wrapBusy maps lock contention to mcard.ErrStoreBusy.
func wrapBusy(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %v", mcard.ErrStoreBusy, err)
	}
	return err
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique)
}

func toCard(row Card) *card.Card {
	return card.Restore(row.Content, hashing.Algorithm(row.HashAlgorithm), row.Digest, row.GTime, row.ContentType)
}

func toCards(rows []Card) []*card.Card {
	out := make([]*card.Card, len(rows))
	for i, row := range rows {
		out[i] = toCard(row)
	}
	return out
}

func toMatchField(field mcard.SearchField) (MatchField, error) {
	switch field {
	case mcard.SearchContent:
		return MatchContent, nil
	case mcard.SearchDigest:
		return MatchDigest, nil
	case mcard.SearchGTime:
		return MatchGTime, nil
	case mcard.SearchAny:
		return MatchAny, nil
	default:
		return 0, fmt.Errorf("%w: %q", mcard.ErrInvalidSearchField, field)
	}
}

// Update runs fn in a single IMMEDIATE transaction.
func (s *SQLiteDatabase) Update(fn func(tx mcard.Tx) error) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", wrapBusy(err))
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{ctx: ctx, q: s.queries.WithTx(tx)}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", wrapBusy(err))
	}
	return nil
}

// View runs fn in a DEFERRED transaction on a dedicated connection. BeginTx
// would begin IMMEDIATE under _txlock, so the transaction is opened by hand.
// In WAL mode readers see one snapshot and do not block writers.
func (s *SQLiteDatabase) View(fn func(r mcard.Reader) error) error {
	ctx := context.Background()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", wrapBusy(err))
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN DEFERRED"); err != nil {
		return fmt.Errorf("starting read transaction: %w", wrapBusy(err))
	}
	committed := false
	defer func() {
		if !committed {
			conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	if err := fn(&sqliteReader{ctx: ctx, q: New(conn)}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("ending read transaction: %w", wrapBusy(err))
	}
	committed = true
	return nil
}

// Card operations

func (s *SQLiteDatabase) FindCard(digest string) (*card.Card, error) {
	return findCard(context.Background(), s.queries, digest)
}

func findCard(ctx context.Context, q *Queries, digest string) (*card.Card, error) {
	row, err := q.GetCardByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding card by digest: %w", wrapBusy(err))
	}
	return toCard(row), nil
}

func (s *SQLiteDatabase) DeleteCard(digest string) (bool, error) {
	n, err := s.queries.DeleteCardByDigest(context.Background(), digest)
	if err != nil {
		return false, fmt.Errorf("deleting card: %w", wrapBusy(err))
	}
	return n > 0, nil
}

func (s *SQLiteDatabase) CountCards() (int64, error) {
	return countStoredCards(context.Background(), s.queries)
}

func countStoredCards(ctx context.Context, q *Queries) (int64, error) {
	n, err := q.CountCards(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting cards: %w", wrapBusy(err))
	}
	return n, nil
}

func (s *SQLiteDatabase) ListCards(limit, offset int64) ([]*card.Card, error) {
	return listStoredCards(context.Background(), s.queries, limit, offset)
}

func listStoredCards(ctx context.Context, q *Queries, limit, offset int64) ([]*card.Card, error) {
	rows, err := q.ListCards(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", wrapBusy(err))
	}
	return toCards(rows), nil
}

func (s *SQLiteDatabase) CountMatches(field mcard.SearchField, query string) (int64, error) {
	return countMatches(context.Background(), s.queries, field, query)
}

func countMatches(ctx context.Context, q *Queries, field mcard.SearchField, query string) (int64, error) {
	mf, err := toMatchField(field)
	if err != nil {
		return 0, err
	}
	n, err := q.CountCardsMatching(ctx, mf, query)
	if err != nil {
		return 0, fmt.Errorf("counting matches: %w", wrapBusy(err))
	}
	return n, nil
}

func (s *SQLiteDatabase) SearchCards(field mcard.SearchField, query string, limit, offset int64) ([]*card.Card, error) {
	return searchCards(context.Background(), s.queries, field, query, limit, offset)
}

func searchCards(ctx context.Context, q *Queries, field mcard.SearchField, query string, limit, offset int64) ([]*card.Card, error) {
	mf, err := toMatchField(field)
	if err != nil {
		return nil, err
	}
	rows, err := q.SearchCards(ctx, mf, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("searching cards: %w", wrapBusy(err))
	}
	return toCards(rows), nil
}

func (s *SQLiteDatabase) ListEvents(digest string) ([]*mcard.Event, error) {
	rows, err := s.queries.ListCardEventsByDigest(context.Background(), digest)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", wrapBusy(err))
	}
	events := make([]*mcard.Event, len(rows))
	for i, row := range rows {
		events[i] = &mcard.Event{
			ID:        row.ID,
			Kind:      mcard.EventKind(row.Kind),
			Digest:    row.Digest,
			GTime:     row.GTime,
			Detail:    row.Detail,
			CreatedAt: row.CreatedAt,
		}
	}
	return events, nil
}

// Clear empties every table in one transaction.
func (s *SQLiteDatabase) Clear() error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", wrapBusy(err))
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	for _, step := range []func(context.Context) error{
		qtx.DeleteAllHandleHistory,
		qtx.DeleteAllHandles,
		qtx.DeleteAllCardEvents,
		qtx.DeleteAllCards,
	} {
		if err := step(ctx); err != nil {
			return fmt.Errorf("clearing tables: %w", wrapBusy(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", wrapBusy(err))
	}
	return nil
}

// Handle operations

func (s *SQLiteDatabase) FindHandle(name string) (*mcard.Handle, error) {
	return findHandle(context.Background(), s.queries, name)
}

func findHandle(ctx context.Context, q *Queries, name string) (*mcard.Handle, error) {
	row, err := q.GetHandle(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding handle: %w", wrapBusy(err))
	}
	return &mcard.Handle{
		Name:          row.Name,
		CurrentDigest: row.CurrentDigest,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func (s *SQLiteDatabase) ListHandles() ([]*mcard.Handle, error) {
	rows, err := s.queries.ListHandles(context.Background())
	if err != nil {
		return nil, fmt.Errorf("listing handles: %w", wrapBusy(err))
	}
	handles := make([]*mcard.Handle, len(rows))
	for i, row := range rows {
		handles[i] = &mcard.Handle{
			Name:          row.Name,
			CurrentDigest: row.CurrentDigest,
			CreatedAt:     row.CreatedAt,
			UpdatedAt:     row.UpdatedAt,
		}
	}
	return handles, nil
}

func (s *SQLiteDatabase) ListHandleHistory(name string) ([]mcard.HandleChange, error) {
	rows, err := s.queries.ListHandleHistory(context.Background(), name)
	if err != nil {
		return nil, fmt.Errorf("listing handle history: %w", wrapBusy(err))
	}
	changes := make([]mcard.HandleChange, len(rows))
	for i, row := range rows {
		changes[i] = mcard.HandleChange{PreviousDigest: row.PreviousDigest, ChangedAt: row.ChangedAt}
	}
	return changes, nil
}

func (s *SQLiteDatabase) DeleteHandle(name string) (bool, error) {
	n, err := s.queries.DeleteHandle(context.Background(), name)
	if err != nil {
		return false, fmt.Errorf("deleting handle: %w", wrapBusy(err))
	}
	return n > 0, nil
}

func (s *SQLiteDatabase) Path() string {
	return s.path
}

// MigrateUp brings the schema to the latest version.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", wrapBusy(err))
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// sqliteReader implements mcard.Reader on a connection holding an open
// read transaction.
type sqliteReader struct {
	ctx context.Context
	q   *Queries
}

func (r *sqliteReader) CountCards() (int64, error) {
	return countStoredCards(r.ctx, r.q)
}

func (r *sqliteReader) ListCards(limit, offset int64) ([]*card.Card, error) {
	return listStoredCards(r.ctx, r.q, limit, offset)
}

func (r *sqliteReader) CountMatches(field mcard.SearchField, query string) (int64, error) {
	return countMatches(r.ctx, r.q, field, query)
}

func (r *sqliteReader) SearchCards(field mcard.SearchField, query string, limit, offset int64) ([]*card.Card, error) {
	return searchCards(r.ctx, r.q, field, query, limit, offset)
}

// sqliteTx implements mcard.Tx on top of a transaction-bound Queries.
type sqliteTx struct {
	ctx context.Context
	q   *Queries
}

func (t *sqliteTx) FindCard(digest string) (*card.Card, error) {
	return findCard(t.ctx, t.q, digest)
}

func (t *sqliteTx) CreateCard(c *card.Card, createdAt time.Time) error {
	err := t.q.CreateCard(t.ctx, CreateCardParams{
		Digest:        c.Digest(),
		HashAlgorithm: string(c.Algorithm()),
		Content:       c.Bytes(),
		GTime:         c.GTime(),
		ContentType:   c.ContentType(),
		Size:          int64(c.Size()),
		CreatedAt:     createdAt,
	})
	if err != nil {
		return fmt.Errorf("creating card: %w", wrapBusy(err))
	}
	return nil
}

func (t *sqliteTx) CreateEvent(e *mcard.Event) error {
	err := t.q.CreateCardEvent(t.ctx, CardEvent{
		ID:        e.ID,
		Kind:      string(e.Kind),
		Digest:    e.Digest,
		GTime:     e.GTime,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("creating event: %w", wrapBusy(err))
	}
	return nil
}

func (t *sqliteTx) FindHandle(name string) (*mcard.Handle, error) {
	return findHandle(t.ctx, t.q, name)
}

func (t *sqliteTx) CreateHandle(h *mcard.Handle) error {
	err := t.q.CreateHandle(t.ctx, Handle{
		Name:          h.Name,
		CurrentDigest: h.CurrentDigest,
		CreatedAt:     h.CreatedAt,
		UpdatedAt:     h.UpdatedAt,
	})
	if isPrimaryKeyViolation(err) {
		return fmt.Errorf("%w: %s", mcard.ErrHandleAlreadyExists, h.Name)
	}
	if err != nil {
		return fmt.Errorf("creating handle: %w", wrapBusy(err))
	}
	return nil
}

func (t *sqliteTx) UpdateHandleDigest(name, digest string, updatedAt time.Time) error {
	n, err := t.q.UpdateHandleDigest(t.ctx, UpdateHandleDigestParams{
		Name:          name,
		CurrentDigest: digest,
		UpdatedAt:     updatedAt,
	})
	if err != nil {
		return fmt.Errorf("updating handle: %w", wrapBusy(err))
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", mcard.ErrHandleNotFound, name)
	}
	return nil
}

func (t *sqliteTx) AppendHandleHistory(name string, change mcard.HandleChange) error {
	if err := t.q.CreateHandleHistory(t.ctx, name, change.PreviousDigest, change.ChangedAt); err != nil {
		return fmt.Errorf("appending handle history: %w", wrapBusy(err))
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements mcard.Database interface
var _ mcard.Database = (*SQLiteDatabase)(nil)
