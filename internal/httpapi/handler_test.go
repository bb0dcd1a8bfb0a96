package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mcard-go/internal/ingest"
	"mcard-go/internal/mcard"
	"mcard-go/internal/testutil"
)

type testServer struct {
	h   *testutil.Harness
	mux *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	h := testutil.NewHarness(t)
	handler := NewHandler(h.Service, h.Builder, ingest.New(16, time.Second), nil)
	return &testServer{h: h, mux: handler.Routes()}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Code != code {
		t.Errorf("code = %q, want %q", resp.Code, code)
	}
}

func TestAddCard(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "POST", "/content/cards", "Hello MCard")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	got := decode[CardResponse](t, rec)
	if got.Digest != testutil.SHA256Hex([]byte("Hello MCard")) {
		t.Errorf("digest = %s", got.Digest)
	}
	if got.Algorithm != "sha256" || !strings.HasPrefix(got.GTime, "sha256|") {
		t.Errorf("algorithm = %q, gTime = %q", got.Algorithm, got.GTime)
	}
	if got.ContentType != "text/plain" {
		t.Errorf("contentType = %q, want text/plain", got.ContentType)
	}
	if got.Content != nil {
		t.Error("insert response should not echo content")
	}

	again := decode[CardResponse](t, s.do(t, "POST", "/content/cards", "Hello MCard"))
	if again.Digest != got.Digest || again.GTime != got.GTime {
		t.Errorf("duplicate insert returned %+v, want the stored card %+v", again, got)
	}

	events := decode[[]EventResponse](t, s.do(t, "GET", "/content/cards/"+got.Digest+"/events", ""))
	if len(events) != 1 || events[0].Kind != mcard.EventDuplicate {
		t.Errorf("events = %+v, want one duplicate", events)
	}
}

func TestAddCardErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{"empty body", "/content/cards", "", 400, mcard.CodeEmptyContent},
		{"too large", "/content/cards", strings.Repeat("x", 17), 413, mcard.CodeIngestTooLarge},
		{"unknown algorithm", "/content/cards?algorithm=crc32", "data", 400, mcard.CodeInvalidHashAlgorithm},
		{"bad handle", "/content/cards?handle=9lives", "data", 400, mcard.CodeInvalidHandleName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			expectError(t, s.do(t, "POST", tt.target, tt.body), tt.status, tt.code)

			n, err := s.h.Service.Count()
			if err != nil {
				t.Fatal(err)
			}
			if n != 0 {
				t.Errorf("Count() = %d after rejected insert", n)
			}
		})
	}
}

func TestAddCardAtLimit(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "POST", "/content/cards?algorithm=sha512", strings.Repeat("x", 16))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if got := decode[CardResponse](t, rec); got.Algorithm != "sha512" {
		t.Errorf("algorithm = %q, want sha512", got.Algorithm)
	}
}

func TestGetCard(t *testing.T) {
	s := newTestServer(t)
	digest := decode[CardResponse](t, s.do(t, "POST", "/content/cards", "hello")).Digest
	binary := decode[CardResponse](t, s.do(t, "POST", "/content/cards", "\xff\xfe\x00")).Digest

	got := decode[CardResponse](t, s.do(t, "GET", "/content/cards/"+digest, ""))
	if string(got.Content) != "hello" || got.Size != 5 {
		t.Errorf("GET card = %+v", got)
	}

	rec := s.do(t, "GET", "/content/cards/"+digest+"?format=text", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Errorf("GET text = %d %q", rec.Code, rec.Body.String())
	}

	expectError(t, s.do(t, "GET", "/content/cards/"+binary+"?format=text", ""), 422, mcard.CodeEncoding)
	expectError(t, s.do(t, "GET", "/content/cards/missing", ""), 404, codeNotFound)
}

func TestDeleteCard(t *testing.T) {
	s := newTestServer(t)
	digest := decode[CardResponse](t, s.do(t, "POST", "/content/cards", "doomed")).Digest

	if rec := s.do(t, "DELETE", "/content/cards/"+digest, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("first DELETE status = %d, want 204", rec.Code)
	}
	expectError(t, s.do(t, "DELETE", "/content/cards/"+digest, ""), 404, codeNotFound)
}

func TestListCards(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []string{"alpha", "beta", "gamma"} {
		s.do(t, "POST", "/content/cards", body)
	}

	tests := []struct {
		name      string
		target    string
		wantItems int
		wantTotal int64
		wantPages int
		wantNext  bool
	}{
		{"defaults", "/content/cards", 3, 3, 1, false},
		{"first page", "/content/cards?page=1&pageSize=2", 2, 3, 2, true},
		{"last page", "/content/cards?page=2&pageSize=2", 1, 3, 2, false},
		{"past the end", "/content/cards?page=5&pageSize=2", 0, 3, 2, false},
		{"search content", "/content/cards?query=mm&field=content", 1, 1, 1, false},
		{"search any", "/content/cards?query=a", 3, 3, 1, false},
		{"search case sensitive", "/content/cards?query=ALPHA", 0, 0, 0, false},
		{"empty query", "/content/cards?query=", 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, "GET", tt.target, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			got := decode[PageResponse](t, rec)
			if len(got.Items) != tt.wantItems || got.TotalItems != tt.wantTotal || got.TotalPages != tt.wantPages || got.HasNext != tt.wantNext || got.PageNumber < 1 {
				t.Errorf("page = %+v", got)
			}
			if got.Items == nil {
				t.Error("items should be an empty array, not null")
			}
		})
	}
}

func TestListCardsFieldNames(t *testing.T) {
	s := newTestServer(t)
	s.do(t, "POST", "/content/cards", "alpha")

	rec := s.do(t, "GET", "/content/cards?page=1&pageSize=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	raw := decode[map[string]json.RawMessage](t, rec)

	want := []string{"items", "totalItems", "pageNumber", "pageSize", "totalPages", "hasNext", "hasPrevious"}
	for _, key := range want {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %v", key, raw)
		}
	}
	if len(raw) != len(want) {
		t.Errorf("got %d keys, want %d: %v", len(raw), len(want), raw)
	}
	if string(raw["pageNumber"]) != "1" || string(raw["pageSize"]) != "2" {
		t.Errorf("pageNumber = %s, pageSize = %s, want 1 and 2", raw["pageNumber"], raw["pageSize"])
	}
}

func TestListCardsErrors(t *testing.T) {
	s := newTestServer(t)
	expectError(t, s.do(t, "GET", "/content/cards?page=0", ""), 400, mcard.CodeInvalidPage)
	expectError(t, s.do(t, "GET", "/content/cards?pageSize=ten", ""), 400, mcard.CodeInvalidPage)
	expectError(t, s.do(t, "GET", "/content/cards?query=x&field=title", ""), 400, mcard.CodeInvalidSearchField)
}

func TestHandleRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "POST", "/content/handles/Notes", "draft one")
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST handle status = %d: %s", rec.Code, rec.Body.String())
	}
	first := decode[CardResponse](t, rec).Digest

	expectError(t, s.do(t, "POST", "/content/handles/notes", "other"), 409, mcard.CodeHandleAlreadyExists)

	rec = s.do(t, "PUT", "/content/handles/notes", "draft two")
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT handle status = %d: %s", rec.Code, rec.Body.String())
	}
	second := decode[CardResponse](t, rec).Digest

	got := decode[CardResponse](t, s.do(t, "GET", "/content/handles/NOTES", ""))
	if got.Digest != second || string(got.Content) != "draft two" {
		t.Errorf("GET handle = %+v, want %s", got, second)
	}

	history := decode[[]HistoryEntry](t, s.do(t, "GET", "/content/handles/notes/history", ""))
	if len(history) != 1 || history[0].PreviousDigest != first {
		t.Errorf("history = %+v, want [%s]", history, first)
	}

	handles := decode[[]HandleResponse](t, s.do(t, "GET", "/content/handles", ""))
	if len(handles) != 1 || handles[0].Name != "notes" {
		t.Errorf("handles = %+v", handles)
	}

	if rec := s.do(t, "DELETE", "/content/handles/notes", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE handle status = %d", rec.Code)
	}
	expectError(t, s.do(t, "GET", "/content/handles/notes", ""), 404, mcard.CodeHandleNotFound)
	expectError(t, s.do(t, "GET", "/content/handles/notes/history", ""), 404, mcard.CodeHandleNotFound)
	expectError(t, s.do(t, "DELETE", "/content/handles/notes", ""), 404, mcard.CodeHandleNotFound)
	expectError(t, s.do(t, "PUT", "/content/handles/notes", "x"), 404, mcard.CodeHandleNotFound)
	expectError(t, s.do(t, "PUT", "/content/handles/-bad", "x"), 400, mcard.CodeInvalidHandleName)

	// cards survive their handle
	if rec := s.do(t, "GET", "/content/cards/"+second, ""); rec.Code != http.StatusOK {
		t.Errorf("card status after handle removal = %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{mcard.CodeEmptyContent, 400},
		{mcard.CodeEncoding, 422},
		{mcard.CodeInvalidHashAlgorithm, 400},
		{mcard.CodeUnsupportedAlgorithm, 400},
		{mcard.CodeCollisionUnresolved, 500},
		{mcard.CodeInvalidHandleName, 400},
		{mcard.CodeHandleAlreadyExists, 409},
		{mcard.CodeHandleNotFound, 404},
		{mcard.CodeStoreBusy, 503},
		{mcard.CodeIngestTooLarge, 413},
		{mcard.CodeIngestTimeout, 408},
		{mcard.CodeInvalidPage, 400},
		{mcard.CodeInvalidSearchField, 400},
		{codeNotFound, 404},
		{mcard.CodeInternal, 500},
	}
	for _, tt := range tests {
		if got := statusFor(tt.code); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
