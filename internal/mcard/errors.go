package mcard

import (
	"errors"

	"mcard-go/internal/card"
	"mcard-go/internal/hashing"
)

var (
	// ErrCollisionUnresolved means two different payloads produced the same
	// digest under every algorithm on the strength ladder. The insert is
	// aborted.
	ErrCollisionUnresolved = errors.New("hash collision unresolved")

	ErrInvalidHandleName   = errors.New("invalid handle name")
	ErrHandleAlreadyExists = errors.New("handle already exists")
	ErrHandleNotFound      = errors.New("handle not found")

	// ErrStoreBusy is returned when the store lock could not be acquired
	// within the configured timeout. Callers may retry.
	ErrStoreBusy = errors.New("store busy")

	ErrIngestTooLarge = errors.New("ingest exceeds maximum size")
	ErrIngestTimeout  = errors.New("ingest read timed out")

	ErrInvalidPage        = errors.New("invalid page request")
	ErrInvalidSearchField = errors.New("invalid search field")

	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Error codes reported to API and CLI users.
const (
	CodeEmptyContent         = "EMPTY_CONTENT"
	CodeEncoding             = "ENCODING_ERROR"
	CodeInvalidHashAlgorithm = "INVALID_HASH_ALGORITHM"
	CodeUnsupportedAlgorithm = "UNSUPPORTED_ALGORITHM"
	CodeCollisionUnresolved  = "COLLISION_UNRESOLVED"
	CodeInvalidHandleName    = "INVALID_HANDLE_NAME"
	CodeHandleAlreadyExists  = "HANDLE_ALREADY_EXISTS"
	CodeHandleNotFound       = "HANDLE_NOT_FOUND"
	CodeStoreBusy            = "STORE_BUSY"
	CodeIngestTooLarge       = "INGEST_TOO_LARGE"
	CodeIngestTimeout        = "INGEST_TIMEOUT"
	CodeInvalidPage          = "INVALID_PAGE"
	CodeInvalidSearchField   = "INVALID_SEARCH_FIELD"
	CodeSnapshotNotFound     = "SNAPSHOT_NOT_FOUND"
	CodeInternal             = "INTERNAL"
)

var codes = []struct {
	err  error
	code string
}{
	{card.ErrEmptyContent, CodeEmptyContent},
	{card.ErrEncoding, CodeEncoding},
	{hashing.ErrInvalidHashAlgorithm, CodeInvalidHashAlgorithm},
	{hashing.ErrUnsupportedAlgorithm, CodeUnsupportedAlgorithm},
	{ErrCollisionUnresolved, CodeCollisionUnresolved},
	{ErrInvalidHandleName, CodeInvalidHandleName},
	{ErrHandleAlreadyExists, CodeHandleAlreadyExists},
	{ErrHandleNotFound, CodeHandleNotFound},
	{ErrStoreBusy, CodeStoreBusy},
	{ErrIngestTooLarge, CodeIngestTooLarge},
	{ErrIngestTimeout, CodeIngestTimeout},
	{ErrInvalidPage, CodeInvalidPage},
	{ErrInvalidSearchField, CodeInvalidSearchField},
	{ErrSnapshotNotFound, CodeSnapshotNotFound},
}

// Code returns the documented error code for err, or CodeInternal when err
// does not wrap a known error. A nil error has no code.
func Code(err error) string {
	if err == nil {
		return ""
	}
	// first match wins
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
