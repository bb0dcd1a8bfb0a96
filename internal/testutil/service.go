package testutil

import (
	"testing"
	"time"

	"mcard-go/internal/card"
	"mcard-go/internal/hashing"
	"mcard-go/internal/mcard"
)

// Harness bundles a Service with the collaborators tests need to reach.
type Harness struct {
	DB      mcard.Database
	Hasher  *hashing.Service
	Builder *card.Builder
	Clock   *StubClock
	IDs     *StubIDGenerator
	Service *mcard.Service
}

// NewHarness builds a Service over an in-memory store with a ticking clock.
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	return newHarness(NewTestDatabase(t))
}

// NewFileHarness builds a Service over a migrated SQLite file in a temp
// directory, with a pool of maxConnections so writers contend on the file
// lock rather than on the pool.
func NewFileHarness(t *testing.T, maxConnections int) *Harness {
	t.Helper()
	return newHarness(NewFileDatabase(t, maxConnections))
}

func newHarness(db mcard.Database) *Harness {
	hasher := hashing.NewService()
	clock := TickingClock(time.Millisecond)
	ids := NewStubIDGenerator()

	return &Harness{
		DB:      db,
		Hasher:  hasher,
		Builder: card.NewBuilder(hasher, card.WithClock(clock.Now)),
		Clock:   clock,
		IDs:     ids,
		Service: mcard.NewService(db, hasher, mcard.NewNopLogger(), clock, ids),
	}
}

// Card builds a text card with the harness builder and fails the test on error.
func (h *Harness) Card(t *testing.T, text string) *card.Card {
	t.Helper()
	c, err := h.Builder.New(card.Text(text))
	if err != nil {
		t.Fatalf("building card %q: %v", text, err)
	}
	return c
}
