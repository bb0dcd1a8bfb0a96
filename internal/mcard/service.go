package mcard

import (
	"errors"
	"fmt"

	"mcard-go/internal/card"
	"mcard-go/internal/hashing"
)

// Service is the storage engine and handle registry. It owns no state of
// its own; everything lives in the Database.
type Service struct {
	database Database
	hasher   *hashing.Service
	logger   Logger
	clock    Clock
	idgen    IDGenerator
}

// NewService creates a new Service with the provided dependencies. The
// hasher must be the one the cards were built with, since collision
// resolution rehashes through it.
func NewService(database Database, hasher *hashing.Service, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		database: database,
		hasher:   hasher,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// Add stores c and returns the digest it is stored under. Storing content
// that is already present records a duplicate event and returns the
// existing digest. A digest shared with different content is a collision:
// it is recorded and the card is rehashed with the next stronger algorithm
// until the digest is free.
func (s *Service) Add(c *card.Card) (string, error) {
	if c == nil {
		return "", card.ErrEmptyContent
	}

	var digest string
	err := s.database.Update(func(tx Tx) error {
		d, err := s.insert(tx, c)
		if err != nil {
			return err
		}
		digest = d
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("adding card: %w", err)
	}
	return digest, nil
}

// insert runs inside the caller's transaction so that a collision retry and
// its audit events commit or roll back together.
func (s *Service) insert(tx Tx, c *card.Card) (string, error) {
	existing, err := tx.FindCard(c.Digest())
	if err != nil {
		return "", fmt.Errorf("finding card %s: %w", c.Digest(), err)
	}
	now := s.clock.Now()

	if existing == nil {
		if err := tx.CreateCard(c, now); err != nil {
			return "", fmt.Errorf("creating card %s: %w", c.Digest(), err)
		}
		s.logger.Debug("card stored", "digest", c.Digest(), "algorithm", c.Algorithm(), "size", c.Size())
		return c.Digest(), nil
	}

	if existing.SameContent(c) {
		event, err := newDuplicateEvent(s.idgen.New(), existing, c, now)
		if err != nil {
			return "", err
		}
		if err := tx.CreateEvent(event); err != nil {
			return "", fmt.Errorf("recording duplicate of %s: %w", existing.Digest(), err)
		}
		s.logger.Info("duplicate content", "digest", existing.Digest())
		return existing.Digest(), nil
	}

	next, err := s.hasher.NextStronger(c.Algorithm())
	if errors.Is(err, hashing.ErrUnsupportedAlgorithm) {
		s.logger.Error("hash collision unresolved", "digest", c.Digest(), "algorithm", c.Algorithm())
		return "", fmt.Errorf("%w: digest %s under %s", ErrCollisionUnresolved, c.Digest(), c.Algorithm())
	}
	if err != nil {
		return "", fmt.Errorf("upgrading from %s: %w", c.Algorithm(), err)
	}

	event, err := newCollisionEvent(s.idgen.New(), existing, c, next, now)
	if err != nil {
		return "", err
	}
	if err := tx.CreateEvent(event); err != nil {
		return "", fmt.Errorf("recording collision on %s: %w", existing.Digest(), err)
	}
	s.logger.Warn("hash collision", "digest", c.Digest(), "algorithm", c.Algorithm(), "upgrade", next)

	upgraded, err := c.Rehash(s.hasher, next)
	if err != nil {
		return "", err
	}
	return s.insert(tx, upgraded)
}

// Get returns the card stored under digest, or nil if there is none.
func (s *Service) Get(digest string) (*card.Card, error) {
	c, err := s.database.FindCard(digest)
	if err != nil {
		return nil, fmt.Errorf("getting card %s: %w", digest, err)
	}
	return c, nil
}

// Delete removes the card stored under digest. It reports false, without an
// error, when there was nothing to remove.
func (s *Service) Delete(digest string) (bool, error) {
	deleted, err := s.database.DeleteCard(digest)
	if err != nil {
		return false, fmt.Errorf("deleting card %s: %w", digest, err)
	}
	if deleted {
		s.logger.Info("card deleted", "digest", digest)
	}
	return deleted, nil
}

// Count returns the number of stored cards.
func (s *Service) Count() (int64, error) {
	n, err := s.database.CountCards()
	if err != nil {
		return 0, fmt.Errorf("counting cards: %w", err)
	}
	return n, nil
}

// Clear removes every card, audit event and handle.
func (s *Service) Clear() error {
	if err := s.database.Clear(); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}
	s.logger.Warn("store cleared")
	return nil
}

// Events returns the audit events recorded against digest, oldest first.
func (s *Service) Events(digest string) ([]*Event, error) {
	events, err := s.database.ListEvents(digest)
	if err != nil {
		return nil, fmt.Errorf("listing events for %s: %w", digest, err)
	}
	return events, nil
}
