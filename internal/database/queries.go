package database

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the SQL statements for the card store.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries that runs every statement inside tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const cardColumns = `id, digest, hash_algorithm, content, g_time, content_type, size, created_at`

func scanCard(row interface{ Scan(...any) error }) (Card, error) {
	var c Card
	err := row.Scan(&c.ID, &c.Digest, &c.HashAlgorithm, &c.Content, &c.GTime, &c.ContentType, &c.Size, &c.CreatedAt)
	return c, err
}

func scanCards(rows *sql.Rows) ([]Card, error) {
	defer rows.Close()
	var items []Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCardByDigest = `SELECT ` + cardColumns + ` FROM cards WHERE digest = ?`

func (q *Queries) GetCardByDigest(ctx context.Context, digest string) (Card, error) {
	return scanCard(q.db.QueryRowContext(ctx, getCardByDigest, digest))
}

const createCard = `INSERT INTO cards (digest, hash_algorithm, content, g_time, content_type, size, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

type CreateCardParams struct {
	Digest        string
	HashAlgorithm string
	Content       []byte
	GTime         string
	ContentType   string
	Size          int64
	CreatedAt     interface{}
}

func (q *Queries) CreateCard(ctx context.Context, arg CreateCardParams) error {
	_, err := q.db.ExecContext(ctx, createCard,
		arg.Digest, arg.HashAlgorithm, arg.Content, arg.GTime, arg.ContentType, arg.Size, arg.CreatedAt)
	return err
}

const deleteCardByDigest = `DELETE FROM cards WHERE digest = ?`

func (q *Queries) DeleteCardByDigest(ctx context.Context, digest string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCardByDigest, digest)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countCards = `SELECT COUNT(*) FROM cards`

func (q *Queries) CountCards(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCards).Scan(&n)
	return n, err
}

const listCards = `SELECT ` + cardColumns + ` FROM cards ORDER BY id DESC LIMIT ? OFFSET ?`

func (q *Queries) ListCards(ctx context.Context, limit, offset int64) ([]Card, error) {
	rows, err := q.db.QueryContext(ctx, listCards, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanCards(rows)
}

// Match predicates. instr() is a case-sensitive substring test; with two
// BLOB arguments it compares raw bytes.
const (
	matchContent = `instr(content, ?1) > 0`
	matchDigest  = `instr(digest, ?2) > 0`
	matchGTime   = `instr(g_time, ?2) > 0`
	matchAny     = `(` + matchContent + ` OR ` + matchDigest + ` OR ` + matchGTime + `)`
)

// MatchField selects the predicate used by CountCardsMatching and SearchCards.
type MatchField int

const (
	MatchContent MatchField = iota
	MatchDigest
	MatchGTime
	MatchAny
)

func (f MatchField) predicate() string {
	switch f {
	case MatchContent:
		return matchContent
	case MatchDigest:
		return matchDigest
	case MatchGTime:
		return matchGTime
	default:
		return matchAny
	}
}

func (q *Queries) CountCardsMatching(ctx context.Context, field MatchField, query string) (int64, error) {
	stmt := `SELECT COUNT(*) FROM cards WHERE ` + field.predicate()
	var n int64
	err := q.db.QueryRowContext(ctx, stmt, []byte(query), query).Scan(&n)
	return n, err
}

func (q *Queries) SearchCards(ctx context.Context, field MatchField, query string, limit, offset int64) ([]Card, error) {
	stmt := `SELECT ` + cardColumns + ` FROM cards WHERE ` + field.predicate() + ` ORDER BY id DESC LIMIT ?3 OFFSET ?4`
	rows, err := q.db.QueryContext(ctx, stmt, []byte(query), query, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanCards(rows)
}

const deleteAllCards = `DELETE FROM cards`

func (q *Queries) DeleteAllCards(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllCards)
	return err
}

const createCardEvent = `INSERT INTO card_events (id, kind, digest, g_time, detail, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateCardEvent(ctx context.Context, arg CardEvent) error {
	_, err := q.db.ExecContext(ctx, createCardEvent,
		arg.ID, arg.Kind, arg.Digest, arg.GTime, arg.Detail, arg.CreatedAt)
	return err
}

const listCardEventsByDigest = `SELECT id, kind, digest, g_time, detail, created_at
FROM card_events WHERE digest = ? ORDER BY created_at, rowid`

func (q *Queries) ListCardEventsByDigest(ctx context.Context, digest string) ([]CardEvent, error) {
	rows, err := q.db.QueryContext(ctx, listCardEventsByDigest, digest)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CardEvent
	for rows.Next() {
		var e CardEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.Digest, &e.GTime, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteAllCardEvents = `DELETE FROM card_events`

func (q *Queries) DeleteAllCardEvents(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllCardEvents)
	return err
}

const getHandle = `SELECT name, current_digest, created_at, updated_at FROM handles WHERE name = ?`

func (q *Queries) GetHandle(ctx context.Context, name string) (Handle, error) {
	var h Handle
	err := q.db.QueryRowContext(ctx, getHandle, name).Scan(&h.Name, &h.CurrentDigest, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}

const listHandles = `SELECT name, current_digest, created_at, updated_at FROM handles ORDER BY name`

func (q *Queries) ListHandles(ctx context.Context) ([]Handle, error) {
	rows, err := q.db.QueryContext(ctx, listHandles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Handle
	for rows.Next() {
		var h Handle
		if err := rows.Scan(&h.Name, &h.CurrentDigest, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createHandle = `INSERT INTO handles (name, current_digest, created_at, updated_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateHandle(ctx context.Context, arg Handle) error {
	_, err := q.db.ExecContext(ctx, createHandle, arg.Name, arg.CurrentDigest, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const updateHandleDigest = `UPDATE handles SET current_digest = ?, updated_at = ? WHERE name = ?`

type UpdateHandleDigestParams struct {
	Name          string
	CurrentDigest string
	UpdatedAt     interface{}
}

func (q *Queries) UpdateHandleDigest(ctx context.Context, arg UpdateHandleDigestParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateHandleDigest, arg.CurrentDigest, arg.UpdatedAt, arg.Name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteHandle = `DELETE FROM handles WHERE name = ?`

func (q *Queries) DeleteHandle(ctx context.Context, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteHandle, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteAllHandles = `DELETE FROM handles`

func (q *Queries) DeleteAllHandles(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllHandles)
	return err
}

const createHandleHistory = `INSERT INTO handle_history (handle_name, previous_digest, changed_at) VALUES (?, ?, ?)`

func (q *Queries) CreateHandleHistory(ctx context.Context, name, previousDigest string, changedAt interface{}) error {
	_, err := q.db.ExecContext(ctx, createHandleHistory, name, previousDigest, changedAt)
	return err
}

const listHandleHistory = `SELECT id, handle_name, previous_digest, changed_at
FROM handle_history WHERE handle_name = ? ORDER BY id`

func (q *Queries) ListHandleHistory(ctx context.Context, name string) ([]HandleHistory, error) {
	rows, err := q.db.QueryContext(ctx, listHandleHistory, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []HandleHistory
	for rows.Next() {
		var h HandleHistory
		if err := rows.Scan(&h.ID, &h.HandleName, &h.PreviousDigest, &h.ChangedAt); err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteAllHandleHistory = `DELETE FROM handle_history`

func (q *Queries) DeleteAllHandleHistory(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllHandleHistory)
	return err
}
