package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"mcard-go/internal/card"
	"mcard-go/internal/mcard"
)

// codeNotFound is reported for a card or handle that is not stored. The
// service reports absence as a nil result, not an error.
const codeNotFound = "NOT_FOUND"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// CardResponse describes a stored card. Content is base64 encoded and only
// present on single card lookups.
type CardResponse struct {
	Digest      string `json:"digest"`
	Algorithm   string `json:"algorithm"`
	GTime       string `json:"gTime"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	Content     []byte `json:"content,omitempty"`
}

// PageResponse is one page of cards.
type PageResponse struct {
	Items       []CardResponse `json:"items"`
	PageNumber  int            `json:"pageNumber"`
	PageSize    int            `json:"pageSize"`
	TotalItems  int64          `json:"totalItems"`
	TotalPages  int            `json:"totalPages"`
	HasNext     bool           `json:"hasNext"`
	HasPrevious bool           `json:"hasPrevious"`
}

// HandleResponse describes a registered handle.
type HandleResponse struct {
	Name      string    `json:"name"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HistoryEntry is one previous target of a handle.
type HistoryEntry struct {
	PreviousDigest string    `json:"previousDigest"`
	ChangedAt      time.Time `json:"changedAt"`
}

// EventResponse is a decoded audit event.
type EventResponse struct {
	ID        string          `json:"id"`
	Kind      mcard.EventKind `json:"kind"`
	Digest    string          `json:"digest"`
	GTime     string          `json:"gTime"`
	CreatedAt time.Time       `json:"createdAt"`
	Detail    any             `json:"detail"`
}

func newCardResponse(c *card.Card, withContent bool) CardResponse {
	resp := CardResponse{
		Digest:      c.Digest(),
		Algorithm:   c.Algorithm().String(),
		GTime:       c.GTime(),
		ContentType: c.ContentType(),
		Size:        c.Size(),
	}
	if withContent {
		resp.Content = c.Bytes()
	}
	return resp
}

func newPageResponse(p *mcard.Page) PageResponse {
	items := make([]CardResponse, 0, len(p.Items))
	for _, c := range p.Items {
		items = append(items, newCardResponse(c, false))
	}
	return PageResponse{
		Items:       items,
		PageNumber:  p.PageNumber,
		PageSize:    p.PageSize,
		TotalItems:  p.TotalItems,
		TotalPages:  p.TotalPages,
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
}

func newEventResponse(e *mcard.Event) (EventResponse, error) {
	resp := EventResponse{
		ID:        e.ID,
		Kind:      e.Kind,
		Digest:    e.Digest,
		GTime:     e.GTime,
		CreatedAt: e.CreatedAt,
	}
	var err error
	switch e.Kind {
	case mcard.EventDuplicate:
		resp.Detail, err = e.Duplicate()
	case mcard.EventCollision:
		resp.Detail, err = e.Collision()
	}
	return resp, err
}

// statusFor maps an error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case mcard.CodeEmptyContent, mcard.CodeInvalidHashAlgorithm, mcard.CodeUnsupportedAlgorithm,
		mcard.CodeInvalidHandleName, mcard.CodeInvalidPage, mcard.CodeInvalidSearchField:
		return http.StatusBadRequest
	case mcard.CodeEncoding:
		return http.StatusUnprocessableEntity
	case mcard.CodeHandleAlreadyExists:
		return http.StatusConflict
	case mcard.CodeHandleNotFound, codeNotFound:
		return http.StatusNotFound
	case mcard.CodeStoreBusy:
		return http.StatusServiceUnavailable
	case mcard.CodeIngestTooLarge:
		return http.StatusRequestEntityTooLarge
	case mcard.CodeIngestTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes value as JSON into w with the given status. An encoding
// failure means the client went away and is only logged.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		h.logger.Warn("writing JSON response", "error", err, "status", status)
	}
}

// sendError writes err as an ErrorResponse. Internal errors are logged and
// their detail is not sent to the client.
func (h *Handler) sendError(w http.ResponseWriter, err error) {
	code := mcard.Code(err)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		code = mcard.CodeIngestTooLarge
	}
	status := statusFor(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	h.writeJSON(w, status, ErrorResponse{Code: code, Error: msg})
}

func (h *Handler) sendNotFound(w http.ResponseWriter, what string) {
	h.writeJSON(w, http.StatusNotFound, ErrorResponse{Code: codeNotFound, Error: what + " not found"})
}
