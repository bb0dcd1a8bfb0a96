// Package httpapi exposes the card store over HTTP.
package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"mcard-go/internal/card"
	"mcard-go/internal/hashing"
	"mcard-go/internal/ingest"
	"mcard-go/internal/mcard"
)

// Default paging used when a request omits page or pageSize.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// Handler serves the card and handle routes.
type Handler struct {
	service  *mcard.Service
	builder  *card.Builder
	ingester *ingest.Ingester
	logger   *slog.Logger
}

// NewHandler creates a Handler. A nil logger uses slog.Default.
func NewHandler(service *mcard.Service, builder *card.Builder, ingester *ingest.Ingester, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:  service,
		builder:  builder,
		ingester: ingester,
		logger:   logger,
	}
}

// Routes returns a mux with every route registered.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /content/cards", h.HandleAddCard)
	mux.HandleFunc("GET /content/cards", h.HandleListCards)
	mux.HandleFunc("GET /content/cards/{digest}", h.HandleGetCard)
	mux.HandleFunc("DELETE /content/cards/{digest}", h.HandleDeleteCard)
	mux.HandleFunc("GET /content/cards/{digest}/events", h.HandleCardEvents)
	mux.HandleFunc("GET /content/handles", h.HandleListHandles)
	mux.HandleFunc("POST /content/handles/{name}", h.HandleAddWithHandle)
	mux.HandleFunc("PUT /content/handles/{name}", h.HandleUpdateHandle)
	mux.HandleFunc("GET /content/handles/{name}", h.HandleGetByHandle)
	mux.HandleFunc("DELETE /content/handles/{name}", h.HandleRemoveHandle)
	mux.HandleFunc("GET /content/handles/{name}/history", h.HandleHandleHistory)
	mux.HandleFunc("GET /health", h.HandleHealth)
	return mux
}

// readCard builds a card from the request body. The optional algorithm
// query parameter overrides the default algorithm.
func (h *Handler) readCard(w http.ResponseWriter, r *http.Request) (*card.Card, error) {
	body := http.MaxBytesReader(w, r.Body, h.ingester.MaxBytes+1)
	data, err := h.ingester.Read(r.Context(), body)
	if err != nil {
		return nil, err
	}

	name := r.URL.Query().Get("algorithm")
	if name == "" {
		return h.builder.New(card.Binary(data))
	}
	algo, err := hashing.ParseAlgorithm(name)
	if err != nil {
		return nil, err
	}
	return h.builder.NewWithAlgorithm(card.Binary(data), algo)
}

// HandleAddCard stores the request body. With ?handle= the card is also
// registered under that name.
func (h *Handler) HandleAddCard(w http.ResponseWriter, r *http.Request) {
	c, err := h.readCard(w, r)
	if err != nil {
		h.sendError(w, err)
		return
	}

	var digest string
	if name := r.URL.Query().Get("handle"); name != "" {
		digest, err = h.service.AddWithHandle(c, name)
	} else {
		digest, err = h.service.Add(c)
	}
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.writeStored(w, digest)
}

// writeStored answers a successful insert with the stored card, which may
// differ from the submitted one after a duplicate or collision.
func (h *Handler) writeStored(w http.ResponseWriter, digest string) {
	stored, err := h.service.Get(digest)
	if err != nil {
		h.sendError(w, err)
		return
	}
	if stored == nil {
		h.sendError(w, fmt.Errorf("card %s missing after insert", digest))
		return
	}
	h.writeJSON(w, http.StatusCreated, newCardResponse(stored, false))
}

// HandleListCards pages through all cards, or through search results when
// a query parameter is present.
func (h *Handler) HandleListCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), DefaultPage)
	if err != nil {
		h.sendError(w, err)
		return
	}
	pageSize, err := intParam(q.Get("pageSize"), DefaultPageSize)
	if err != nil {
		h.sendError(w, err)
		return
	}

	var result *mcard.Page
	if q.Has("query") {
		field, ferr := mcard.ParseSearchField(q.Get("field"))
		if ferr != nil {
			h.sendError(w, ferr)
			return
		}
		result, err = h.service.Search(field, q.Get("query"), page, pageSize)
	} else {
		result, err = h.service.Paginate(page, pageSize)
	}
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newPageResponse(result))
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", mcard.ErrInvalidPage, raw)
	}
	return n, nil
}

// HandleGetCard returns one card with its content. With ?format=text the
// content is returned as text/plain.
func (h *Handler) HandleGetCard(w http.ResponseWriter, r *http.Request) {
	digest := r.PathValue("digest")
	c, err := h.service.Get(digest)
	if err != nil {
		h.sendError(w, err)
		return
	}
	if c == nil {
		h.sendNotFound(w, "card "+digest)
		return
	}
	h.writeCard(w, r, c)
}

func (h *Handler) writeCard(w http.ResponseWriter, r *http.Request, c *card.Card) {
	if r.URL.Query().Get("format") != "text" {
		h.writeJSON(w, http.StatusOK, newCardResponse(c, true))
		return
	}
	text, err := c.Text()
	if err != nil {
		h.sendError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		h.logger.Warn("writing text response", "error", err)
	}
}

// HandleDeleteCard removes a card. Deleting an absent card is a 404.
func (h *Handler) HandleDeleteCard(w http.ResponseWriter, r *http.Request) {
	digest := r.PathValue("digest")
	deleted, err := h.service.Delete(digest)
	if err != nil {
		h.sendError(w, err)
		return
	}
	if !deleted {
		h.sendNotFound(w, "card "+digest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCardEvents lists the duplicate and collision events of a digest.
func (h *Handler) HandleCardEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Events(r.PathValue("digest"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp, err := newEventResponse(e)
		if err != nil {
			h.sendError(w, err)
			return
		}
		out = append(out, resp)
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleListHandles lists every registered handle.
func (h *Handler) HandleListHandles(w http.ResponseWriter, r *http.Request) {
	handles, err := h.service.Handles()
	if err != nil {
		h.sendError(w, err)
		return
	}
	out := make([]HandleResponse, 0, len(handles))
	for _, hd := range handles {
		out = append(out, newHandleResponse(hd))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func newHandleResponse(hd *mcard.Handle) HandleResponse {
	return HandleResponse{
		Name:      hd.Name,
		Digest:    hd.CurrentDigest,
		CreatedAt: hd.CreatedAt,
		UpdatedAt: hd.UpdatedAt,
	}
}

// HandleAddWithHandle stores the body and registers the path name for it.
func (h *Handler) HandleAddWithHandle(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := mcard.NormalizeHandle(name); err != nil {
		h.sendError(w, err)
		return
	}
	c, err := h.readCard(w, r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	digest, err := h.service.AddWithHandle(c, name)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.writeStored(w, digest)
}

// HandleUpdateHandle stores the body and repoints an existing handle at it.
func (h *Handler) HandleUpdateHandle(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := mcard.NormalizeHandle(name); err != nil {
		h.sendError(w, err)
		return
	}
	c, err := h.readCard(w, r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	digest, err := h.service.UpdateHandle(name, c)
	if err != nil {
		h.sendError(w, err)
		return
	}
	stored, err := h.service.Get(digest)
	if err != nil {
		h.sendError(w, err)
		return
	}
	if stored == nil {
		h.sendError(w, fmt.Errorf("card %s missing after update", digest))
		return
	}
	h.writeJSON(w, http.StatusOK, newCardResponse(stored, false))
}

// lookupHandle returns the handle record, writing a 404 when it is not
// registered.
func (h *Handler) lookupHandle(w http.ResponseWriter, name string) (*mcard.Handle, bool) {
	hd, err := h.service.Handle(name)
	if err != nil {
		h.sendError(w, err)
		return nil, false
	}
	if hd == nil {
		h.sendError(w, fmt.Errorf("%w: %s", mcard.ErrHandleNotFound, name))
		return nil, false
	}
	return hd, true
}

// HandleGetByHandle returns the card a handle points at.
func (h *Handler) HandleGetByHandle(w http.ResponseWriter, r *http.Request) {
	hd, ok := h.lookupHandle(w, r.PathValue("name"))
	if !ok {
		return
	}
	c, err := h.service.Get(hd.CurrentDigest)
	if err != nil {
		h.sendError(w, err)
		return
	}
	if c == nil {
		h.sendNotFound(w, "card "+hd.CurrentDigest)
		return
	}
	h.writeCard(w, r, c)
}

// HandleHandleHistory lists the previous targets of a handle, oldest first.
func (h *Handler) HandleHandleHistory(w http.ResponseWriter, r *http.Request) {
	hd, ok := h.lookupHandle(w, r.PathValue("name"))
	if !ok {
		return
	}
	history, err := h.service.HandleHistory(hd.Name)
	if err != nil {
		h.sendError(w, err)
		return
	}
	out := make([]HistoryEntry, 0, len(history))
	for _, c := range history {
		out = append(out, HistoryEntry{PreviousDigest: c.PreviousDigest, ChangedAt: c.ChangedAt})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleRemoveHandle unregisters a handle. Its cards are kept.
func (h *Handler) HandleRemoveHandle(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	removed, err := h.service.RemoveHandle(name)
	if err != nil {
		h.sendError(w, err)
		return
	}
	if !removed {
		h.sendError(w, fmt.Errorf("%w: %s", mcard.ErrHandleNotFound, name))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth reports whether the store answers queries.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Count()
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cards": n})
}
