package mcard

import (
	"testing"
	"time"

	"mcard-go/internal/card"
	"mcard-go/internal/hashing"
)

func TestEventDetailDecoding(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	existing := card.Restore([]byte("alpha"), hashing.SHA256, "d1", "sha256|2024-01-15T10:30:00.000000Z|UTC", "")
	incoming := card.Restore([]byte("{\"k\":1}"), hashing.SHA256, "d1", "sha256|2024-01-15T10:30:01.000000Z|UTC", "")

	t.Run("collision", func(t *testing.T) {
		e, err := newCollisionEvent("ev-1", existing, incoming, hashing.SHA384, now)
		if err != nil {
			t.Fatalf("newCollisionEvent() error = %v", err)
		}
		if e.Digest != "d1" || e.GTime != incoming.GTime() {
			t.Errorf("event keyed by (%s, %s), want (d1, %s)", e.Digest, e.GTime, incoming.GTime())
		}

		col, err := e.Collision()
		if err != nil {
			t.Fatalf("Collision() error = %v", err)
		}
		want := CollisionEvent{
			Digest:              "d1",
			Algorithm:           hashing.SHA256,
			ExistingGTime:       existing.GTime(),
			ExistingSize:        5,
			ExistingContentType: existing.ContentType(),
			IncomingGTime:       incoming.GTime(),
			IncomingSize:        7,
			IncomingContentType: incoming.ContentType(),
			UpgradedTo:          hashing.SHA384,
		}
		if *col != want {
			t.Errorf("Collision() = %+v, want %+v", *col, want)
		}

		if _, err := e.Duplicate(); err == nil {
			t.Error("Duplicate() on a collision event should return error")
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		e, err := newDuplicateEvent("ev-2", existing, existing, now)
		if err != nil {
			t.Fatalf("newDuplicateEvent() error = %v", err)
		}
		dup, err := e.Duplicate()
		if err != nil {
			t.Fatalf("Duplicate() error = %v", err)
		}
		if dup.Digest != "d1" || dup.Algorithm != hashing.SHA256 {
			t.Errorf("Duplicate() = %+v", dup)
		}
		if _, err := e.Collision(); err == nil {
			t.Error("Collision() on a duplicate event should return error")
		}
	})
}
