package mcard

import (
	"time"

	"mcard-go/internal/card"
)

// Database provides an interface for card storage operations.
// Mutations that must be atomic run through Update.
type Database interface {
	// Update runs fn inside a single write transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise. Concurrent
	// Update calls are serialized by the store.
	Update(fn func(tx Tx) error) error

	// View runs fn inside a single read transaction, so every read made
	// through r sees the same snapshot of the store.
	View(fn func(r Reader) error) error

	Reader

	// Card operations

	// FindCard returns the card stored under digest, or nil if absent.
	FindCard(digest string) (*card.Card, error)

	// DeleteCard removes a card. It reports whether a card was removed.
	DeleteCard(digest string) (bool, error)

	// ListEvents returns audit events that reference digest, oldest first.
	ListEvents(digest string) ([]*Event, error)

	// Clear removes all cards, events and handles.
	Clear() error

	// Handle operations

	// FindHandle returns the handle with the given normalized name, or nil.
	FindHandle(name string) (*Handle, error)

	// ListHandles returns all handles ordered by name.
	ListHandles() ([]*Handle, error)

	// ListHandleHistory returns the changes of a handle, oldest first.
	ListHandleHistory(name string) ([]HandleChange, error)

	// DeleteHandle removes a handle and its history.
	DeleteHandle(name string) (bool, error)

	// BackupTo writes a consistent copy of the store to path.
	BackupTo(path string) error

	// Close closes the database connection.
	Close() error
}

// Reader is the set of listing queries available inside Database.View.
type Reader interface {
	// CountCards returns the number of stored cards.
	CountCards() (int64, error)

	// ListCards returns cards newest first.
	ListCards(limit, offset int64) ([]*card.Card, error)

	// CountMatches returns the number of cards whose field contains query.
	CountMatches(field SearchField, query string) (int64, error)

	// SearchCards returns cards whose field contains query, newest first.
	SearchCards(field SearchField, query string, limit, offset int64) ([]*card.Card, error)
}

// Tx is the set of operations available inside Database.Update.
type Tx interface {
	FindCard(digest string) (*card.Card, error)
	CreateCard(c *card.Card, createdAt time.Time) error
	CreateEvent(e *Event) error

	FindHandle(name string) (*Handle, error)
	CreateHandle(h *Handle) error
	UpdateHandleDigest(name, digest string, updatedAt time.Time) error
	AppendHandleHistory(name string, change HandleChange) error
}
