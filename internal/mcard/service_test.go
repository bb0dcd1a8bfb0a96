package mcard_test

import (
	"errors"
	"sync"
	"testing"

	"mcard-go/internal/card"
	"mcard-go/internal/hashing"
	"mcard-go/internal/mcard"
	"mcard-go/internal/testutil"
)

func TestService_Add(t *testing.T) {
	t.Run("stores new content under its sha256 digest", func(t *testing.T) {
		h := testutil.NewHarness(t)
		c := h.Card(t, "Hello MCard")

		digest, err := h.Service.Add(c)
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}

		want := testutil.SHA256Hex([]byte("Hello MCard"))
		if digest != want {
			t.Errorf("Add() digest = %q, want %q", digest, want)
		}

		got, err := h.Service.Get(digest)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got == nil {
			t.Fatal("Get() returned nil for stored card")
		}
		if got.GTime() != c.GTime() {
			t.Errorf("stored gTime = %q, want %q", got.GTime(), c.GTime())
		}
		text, err := got.Text()
		if err != nil {
			t.Fatalf("Text() error = %v", err)
		}
		if text != "Hello MCard" {
			t.Errorf("Text() = %q, want %q", text, "Hello MCard")
		}
		if got.ContentType() != "text/plain" {
			t.Errorf("ContentType() = %q, want text/plain", got.ContentType())
		}
	})

	t.Run("records duplicate and keeps first card", func(t *testing.T) {
		h := testutil.NewHarness(t)
		first := h.Card(t, "same payload")
		second := h.Card(t, "same payload")

		d1, err := h.Service.Add(first)
		if err != nil {
			t.Fatalf("first Add() error = %v", err)
		}
		d2, err := h.Service.Add(second)
		if err != nil {
			t.Fatalf("second Add() error = %v", err)
		}
		if d1 != d2 {
			t.Errorf("duplicate digest = %q, want %q", d2, d1)
		}

		count, err := h.Service.Count()
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if count != 1 {
			t.Errorf("Count() = %d, want 1", count)
		}

		stored, _ := h.Service.Get(d1)
		if stored.GTime() != first.GTime() {
			t.Errorf("stored gTime = %q, want first gTime %q", stored.GTime(), first.GTime())
		}

		events, err := h.Service.Events(d1)
		if err != nil {
			t.Fatalf("Events() error = %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("Events() returned %d events, want 1", len(events))
		}
		if events[0].Kind != mcard.EventDuplicate {
			t.Errorf("event kind = %q, want %q", events[0].Kind, mcard.EventDuplicate)
		}
		dup, err := events[0].Duplicate()
		if err != nil {
			t.Fatalf("Duplicate() error = %v", err)
		}
		if dup.ExistingGTime != first.GTime() || dup.IncomingGTime != second.GTime() {
			t.Errorf("duplicate gTimes = (%q, %q), want (%q, %q)",
				dup.ExistingGTime, dup.IncomingGTime, first.GTime(), second.GTime())
		}
	})

	t.Run("resolves collision with next stronger algorithm", func(t *testing.T) {
		h := testutil.NewHarness(t)
		if err := h.Hasher.Register(hashing.SHA256, testutil.ConstantStrategy("c0ffee")); err != nil {
			t.Fatalf("Register() error = %v", err)
		}

		a := h.Card(t, "alpha")
		b := h.Card(t, "beta")
		if a.Digest() != b.Digest() {
			t.Fatalf("weak strategy did not collide: %q vs %q", a.Digest(), b.Digest())
		}

		if _, err := h.Service.Add(a); err != nil {
			t.Fatalf("Add(a) error = %v", err)
		}
		digest, err := h.Service.Add(b)
		if err != nil {
			t.Fatalf("Add(b) error = %v", err)
		}
		if digest == "c0ffee" {
			t.Fatal("Add(b) returned the colliding digest")
		}

		stored, err := h.Service.Get(digest)
		if err != nil || stored == nil {
			t.Fatalf("Get(%q) = %v, %v", digest, stored, err)
		}
		if stored.Algorithm() != hashing.SHA384 {
			t.Errorf("upgraded algorithm = %s, want %s", stored.Algorithm(), hashing.SHA384)
		}
		gt, err := card.ParseGTime(stored.GTime())
		if err != nil {
			t.Fatalf("ParseGTime() error = %v", err)
		}
		if gt.Algorithm != hashing.SHA384 {
			t.Errorf("gTime algorithm = %s, want %s", gt.Algorithm, hashing.SHA384)
		}

		original, _ := h.Service.Get("c0ffee")
		if original == nil || !original.SameContent(a) {
			t.Error("original card was replaced by colliding content")
		}

		events, err := h.Service.Events("c0ffee")
		if err != nil {
			t.Fatalf("Events() error = %v", err)
		}
		if len(events) != 1 || events[0].Kind != mcard.EventCollision {
			t.Fatalf("Events() = %+v, want one collision event", events)
		}
		col, err := events[0].Collision()
		if err != nil {
			t.Fatalf("Collision() error = %v", err)
		}
		if col.UpgradedTo != hashing.SHA384 {
			t.Errorf("UpgradedTo = %s, want %s", col.UpgradedTo, hashing.SHA384)
		}
		if col.ExistingSize != a.Size() || col.IncomingSize != b.Size() {
			t.Errorf("sizes = (%d, %d), want (%d, %d)", col.ExistingSize, col.IncomingSize, a.Size(), b.Size())
		}

		count, _ := h.Service.Count()
		if count != 2 {
			t.Errorf("Count() = %d, want 2", count)
		}
	})

	t.Run("climbs several rungs when upgrades also collide", func(t *testing.T) {
		h := testutil.NewHarness(t)
		for _, algo := range []hashing.Algorithm{hashing.SHA256, hashing.SHA384} {
			if err := h.Hasher.Register(algo, testutil.ConstantStrategy("c0ffee")); err != nil {
				t.Fatalf("Register(%s) error = %v", algo, err)
			}
		}

		if _, err := h.Service.Add(h.Card(t, "alpha")); err != nil {
			t.Fatalf("Add(alpha) error = %v", err)
		}
		digest, err := h.Service.Add(h.Card(t, "beta"))
		if err != nil {
			t.Fatalf("Add(beta) error = %v", err)
		}
		stored, _ := h.Service.Get(digest)
		if stored == nil || stored.Algorithm() != hashing.SHA512 {
			t.Fatalf("stored card = %v, want sha512 card", stored)
		}

		events, _ := h.Service.Events("c0ffee")
		if len(events) != 2 {
			t.Errorf("Events() returned %d events, want 2", len(events))
		}
	})

	t.Run("fails when every algorithm collides and rolls back", func(t *testing.T) {
		h := testutil.NewHarness(t)
		for _, algo := range hashing.Algorithms() {
			if err := h.Hasher.Register(algo, testutil.ConstantStrategy("c0ffee")); err != nil {
				t.Fatalf("Register(%s) error = %v", algo, err)
			}
		}

		if _, err := h.Service.Add(h.Card(t, "alpha")); err != nil {
			t.Fatalf("Add(alpha) error = %v", err)
		}
		_, err := h.Service.Add(h.Card(t, "beta"))
		if !errors.Is(err, mcard.ErrCollisionUnresolved) {
			t.Fatalf("Add(beta) error = %v, want ErrCollisionUnresolved", err)
		}
		if code := mcard.Code(err); code != mcard.CodeCollisionUnresolved {
			t.Errorf("Code() = %q, want %q", code, mcard.CodeCollisionUnresolved)
		}

		count, _ := h.Service.Count()
		if count != 1 {
			t.Errorf("Count() = %d, want 1", count)
		}
		events, _ := h.Service.Events("c0ffee")
		if len(events) != 0 {
			t.Errorf("Events() returned %d events after rollback, want 0", len(events))
		}
	})

	t.Run("rejects nil card", func(t *testing.T) {
		h := testutil.NewHarness(t)
		if _, err := h.Service.Add(nil); !errors.Is(err, card.ErrEmptyContent) {
			t.Errorf("Add(nil) error = %v, want ErrEmptyContent", err)
		}
	})
}

func TestService_ConcurrentIdenticalInserts(t *testing.T) {
	tests := []struct {
		name    string
		harness func(t *testing.T) *testutil.Harness
		writers int
	}{
		{"in-memory store", testutil.NewHarness, 8},
		{"file store with pooled connections", func(t *testing.T) *testutil.Harness {
			return testutil.NewFileHarness(t, 8)
		}, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.harness(t)

			var wg sync.WaitGroup
			digests := make([]string, tt.writers)
			errs := make([]error, tt.writers)
			for i := 0; i < tt.writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					c, err := h.Builder.New(card.Text("shared"))
					if err != nil {
						errs[i] = err
						return
					}
					digests[i], errs[i] = h.Service.Add(c)
				}(i)
			}
			wg.Wait()

			for i, err := range errs {
				if err != nil {
					t.Fatalf("writer %d error = %v", i, err)
				}
				if digests[i] != digests[0] {
					t.Errorf("writer %d digest = %q, want %q", i, digests[i], digests[0])
				}
			}
			count, err := h.Service.Count()
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if count != 1 {
				t.Errorf("Count() = %d, want 1", count)
			}
			events, err := h.Service.Events(digests[0])
			if err != nil {
				t.Fatalf("Events() error = %v", err)
			}
			if len(events) != tt.writers-1 {
				t.Errorf("Events() returned %d events, want %d", len(events), tt.writers-1)
			}
			for _, e := range events {
				if e.Kind != mcard.EventDuplicate {
					t.Errorf("event kind = %q, want %q", e.Kind, mcard.EventDuplicate)
				}
			}
		})
	}
}

func TestService_GetMissing(t *testing.T) {
	h := testutil.NewHarness(t)

	got, err := h.Service.Get("does-not-exist")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %v, want nil", got)
	}
}

func TestService_Delete(t *testing.T) {
	h := testutil.NewHarness(t)
	digest, err := h.Service.Add(h.Card(t, "to delete"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	deleted, err := h.Service.Delete(digest)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleted {
		t.Error("Delete() = false, want true")
	}

	got, _ := h.Service.Get(digest)
	if got != nil {
		t.Error("card still present after Delete()")
	}

	deleted, err = h.Service.Delete(digest)
	if err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if deleted {
		t.Error("second Delete() = true, want false")
	}
}

func TestService_Clear(t *testing.T) {
	h := testutil.NewHarness(t)
	if _, err := h.Service.Add(h.Card(t, "one")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := h.Service.Add(h.Card(t, "one")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := h.Service.AddWithHandle(h.Card(t, "two"), "doc"); err != nil {
		t.Fatalf("AddWithHandle() error = %v", err)
	}

	if err := h.Service.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	count, _ := h.Service.Count()
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}
	handles, _ := h.Service.Handles()
	if len(handles) != 0 {
		t.Errorf("Handles() returned %d, want 0", len(handles))
	}
	events, _ := h.Service.Events(testutil.SHA256Hex([]byte("one")))
	if len(events) != 0 {
		t.Errorf("Events() returned %d, want 0", len(events))
	}
}
