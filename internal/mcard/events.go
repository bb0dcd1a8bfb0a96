package mcard

import (
	"fmt"
	"time"

	"mcard-go/internal/card"
	"mcard-go/internal/codec"
	"mcard-go/internal/hashing"
)

// EventKind distinguishes the audit records written during insertion.
type EventKind string

const (
	EventDuplicate EventKind = "duplicate"
	EventCollision EventKind = "collision"
)

// Event is a persisted audit record. Detail holds the CBOR encoding of a
// DuplicateEvent or CollisionEvent.
type Event struct {
	ID        string
	Kind      EventKind
	Digest    string
	GTime     string
	Detail    []byte
	CreatedAt time.Time
}

// DuplicateEvent records an insert of content that was already stored.
type DuplicateEvent struct {
	Digest        string            `cbor:"1,keyasint"`
	Algorithm     hashing.Algorithm `cbor:"2,keyasint"`
	ExistingGTime string            `cbor:"3,keyasint"`
	IncomingGTime string            `cbor:"4,keyasint"`
}

// CollisionEvent records two different payloads sharing a digest.
type CollisionEvent struct {
	Digest              string            `cbor:"1,keyasint"`
	Algorithm           hashing.Algorithm `cbor:"2,keyasint"`
	ExistingGTime       string            `cbor:"3,keyasint"`
	ExistingSize        int               `cbor:"4,keyasint"`
	ExistingContentType string            `cbor:"5,keyasint"`
	IncomingGTime       string            `cbor:"6,keyasint"`
	IncomingSize        int               `cbor:"7,keyasint"`
	IncomingContentType string            `cbor:"8,keyasint"`
	UpgradedTo          hashing.Algorithm `cbor:"9,keyasint,omitempty"`
}

func newDuplicateEvent(id string, existing, incoming *card.Card, now time.Time) (*Event, error) {
	detail, err := codec.Marshal(DuplicateEvent{
		Digest:        existing.Digest(),
		Algorithm:     existing.Algorithm(),
		ExistingGTime: existing.GTime(),
		IncomingGTime: incoming.GTime(),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding duplicate event: %w", err)
	}
	return &Event{
		ID:        id,
		Kind:      EventDuplicate,
		Digest:    existing.Digest(),
		GTime:     incoming.GTime(),
		Detail:    detail,
		CreatedAt: now,
	}, nil
}

func newCollisionEvent(id string, existing, incoming *card.Card, upgradedTo hashing.Algorithm, now time.Time) (*Event, error) {
	detail, err := codec.Marshal(CollisionEvent{
		Digest:              existing.Digest(),
		Algorithm:           incoming.Algorithm(),
		ExistingGTime:       existing.GTime(),
		ExistingSize:        existing.Size(),
		ExistingContentType: existing.ContentType(),
		IncomingGTime:       incoming.GTime(),
		IncomingSize:        incoming.Size(),
		IncomingContentType: incoming.ContentType(),
		UpgradedTo:          upgradedTo,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding collision event: %w", err)
	}
	return &Event{
		ID:        id,
		Kind:      EventCollision,
		Digest:    existing.Digest(),
		GTime:     incoming.GTime(),
		Detail:    detail,
		CreatedAt: now,
	}, nil
}

// Duplicate decodes the detail of a duplicate event.
func (e *Event) Duplicate() (*DuplicateEvent, error) {
	if e.Kind != EventDuplicate {
		return nil, fmt.Errorf("event %s is a %s event", e.ID, e.Kind)
	}
	var d DuplicateEvent
	if err := codec.Unmarshal(e.Detail, &d); err != nil {
		return nil, fmt.Errorf("decoding event %s: %w", e.ID, err)
	}
	return &d, nil
}

// Collision decodes the detail of a collision event.
func (e *Event) Collision() (*CollisionEvent, error) {
	if e.Kind != EventCollision {
		return nil, fmt.Errorf("event %s is a %s event", e.ID, e.Kind)
	}
	var c CollisionEvent
	if err := codec.Unmarshal(e.Detail, &c); err != nil {
		return nil, fmt.Errorf("decoding event %s: %w", e.ID, err)
	}
	return &c, nil
}
