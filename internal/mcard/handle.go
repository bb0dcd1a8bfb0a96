package mcard

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"mcard-go/internal/card"
)

// MaxHandleLength is the maximum number of characters in a handle name.
const MaxHandleLength = 63

// Handle is a mutable name that resolves to a stored card.
type Handle struct {
	Name          string
	CurrentDigest string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HandleChange is one entry of a handle's history: the digest the handle
// pointed at before an update.
type HandleChange struct {
	PreviousDigest string
	ChangedAt      time.Time
}

// NormalizeHandle validates name and returns its lowercase form. A name
// starts with a letter and continues with letters, digits, '_' or '-'.
// Surrounding whitespace is rejected, not trimmed.
func NormalizeHandle(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidHandleName)
	}
	if n := utf8.RuneCountInString(name); n > MaxHandleLength {
		return "", fmt.Errorf("%w: %q is %d characters, limit is %d", ErrInvalidHandleName, name, n, MaxHandleLength)
	}
	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) {
				return "", fmt.Errorf("%w: %q must start with a letter", ErrInvalidHandleName, name)
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidHandleName, name, r)
		}
	}
	return strings.ToLower(name), nil
}

// AddWithHandle stores c and registers name pointing at the resulting
// digest. It fails with ErrHandleAlreadyExists if name is taken, in which
// case nothing is stored.
func (s *Service) AddWithHandle(c *card.Card, name string) (string, error) {
	name, err := NormalizeHandle(name)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", card.ErrEmptyContent
	}

	var digest string
	err = s.database.Update(func(tx Tx) error {
		existing, err := tx.FindHandle(name)
		if err != nil {
			return fmt.Errorf("finding handle %s: %w", name, err)
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrHandleAlreadyExists, name)
		}

		d, err := s.insert(tx, c)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := tx.CreateHandle(&Handle{Name: name, CurrentDigest: d, CreatedAt: now, UpdatedAt: now}); err != nil {
			return fmt.Errorf("creating handle %s: %w", name, err)
		}
		digest = d
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("adding card with handle: %w", err)
	}

	s.logger.Info("handle created", "handle", name, "digest", digest)
	return digest, nil
}

// UpdateHandle stores c and repoints name at it, appending the previous
// digest to the handle's history.
func (s *Service) UpdateHandle(name string, c *card.Card) (string, error) {
	name, err := NormalizeHandle(name)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", card.ErrEmptyContent
	}

	var digest string
	err = s.database.Update(func(tx Tx) error {
		h, err := tx.FindHandle(name)
		if err != nil {
			return fmt.Errorf("finding handle %s: %w", name, err)
		}
		if h == nil {
			return fmt.Errorf("%w: %s", ErrHandleNotFound, name)
		}

		d, err := s.insert(tx, c)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := tx.AppendHandleHistory(name, HandleChange{PreviousDigest: h.CurrentDigest, ChangedAt: now}); err != nil {
			return fmt.Errorf("recording history of %s: %w", name, err)
		}
		if err := tx.UpdateHandleDigest(name, d, now); err != nil {
			return fmt.Errorf("updating handle %s: %w", name, err)
		}
		digest = d
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("updating handle: %w", err)
	}

	s.logger.Info("handle updated", "handle", name, "digest", digest)
	return digest, nil
}

// Handle returns the handle record for name, or nil if it is not registered.
func (s *Service) Handle(name string) (*Handle, error) {
	name, err := NormalizeHandle(name)
	if err != nil {
		return nil, err
	}
	h, err := s.database.FindHandle(name)
	if err != nil {
		return nil, fmt.Errorf("finding handle %s: %w", name, err)
	}
	return h, nil
}

// Handles returns every registered handle ordered by name.
func (s *Service) Handles() ([]*Handle, error) {
	handles, err := s.database.ListHandles()
	if err != nil {
		return nil, fmt.Errorf("listing handles: %w", err)
	}
	return handles, nil
}

// ResolveHandle returns the digest name points at, or "" if name is not
// registered.
func (s *Service) ResolveHandle(name string) (string, error) {
	h, err := s.Handle(name)
	if err != nil || h == nil {
		return "", err
	}
	return h.CurrentDigest, nil
}

// GetByHandle returns the card name points at, or nil if name is not
// registered or its card has been deleted.
func (s *Service) GetByHandle(name string) (*card.Card, error) {
	digest, err := s.ResolveHandle(name)
	if err != nil || digest == "" {
		return nil, err
	}
	return s.Get(digest)
}

// HandleHistory returns the previous digests of name, oldest first. An
// unregistered name has an empty history.
func (s *Service) HandleHistory(name string) ([]HandleChange, error) {
	name, err := NormalizeHandle(name)
	if err != nil {
		return nil, err
	}
	history, err := s.database.ListHandleHistory(name)
	if err != nil {
		return nil, fmt.Errorf("listing history of %s: %w", name, err)
	}
	if history == nil {
		history = []HandleChange{}
	}
	return history, nil
}

// RemoveHandle unregisters name and drops its history. The cards it pointed
// at are kept. It reports false when name was not registered.
func (s *Service) RemoveHandle(name string) (bool, error) {
	name, err := NormalizeHandle(name)
	if err != nil {
		return false, err
	}
	removed, err := s.database.DeleteHandle(name)
	if err != nil {
		return false, fmt.Errorf("removing handle %s: %w", name, err)
	}
	if removed {
		s.logger.Info("handle removed", "handle", name)
	}
	return removed, nil
}
