package mcard

import (
	"fmt"
	"strings"

	"mcard-go/internal/card"
)

// Page is a slice of an ordered result set with its position metadata.
type Page struct {
	Items       []*card.Card
	PageNumber  int
	PageSize    int
	TotalItems  int64
	TotalPages  int
	HasNext     bool
	HasPrevious bool
}

func newPage(items []*card.Card, pageNumber, pageSize int, total int64) *Page {
	if items == nil {
		items = []*card.Card{}
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &Page{
		Items:       items,
		PageNumber:  pageNumber,
		PageSize:    pageSize,
		TotalItems:  total,
		TotalPages:  totalPages,
		HasNext:     pageNumber < totalPages,
		HasPrevious: pageNumber > 1,
	}
}

func checkPage(pageNumber, pageSize int) error {
	if pageNumber < 1 {
		return fmt.Errorf("%w: page number %d must be at least 1", ErrInvalidPage, pageNumber)
	}
	if pageSize < 1 {
		return fmt.Errorf("%w: page size %d must be positive", ErrInvalidPage, pageSize)
	}
	return nil
}

// SearchField selects which card field a search matches against.
type SearchField string

const (
	SearchContent SearchField = "content"
	SearchDigest  SearchField = "digest"
	SearchGTime   SearchField = "gtime"
	SearchAny     SearchField = "any"
)

// ParseSearchField converts a user supplied name to a SearchField. An empty
// name selects SearchAny.
func ParseSearchField(name string) (SearchField, error) {
	switch f := SearchField(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return SearchAny, nil
	case SearchContent, SearchDigest, SearchGTime, SearchAny:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSearchField, name)
	}
}

// Paginate returns page pageNumber of all cards, newest first. A page past
// the end has no items but still reports the totals.
func (s *Service) Paginate(pageNumber, pageSize int) (*Page, error) {
	if err := checkPage(pageNumber, pageSize); err != nil {
		return nil, err
	}

	var (
		total int64
		items []*card.Card
	)
	err := s.database.View(func(r Reader) error {
		var err error
		total, err = r.CountCards()
		if err != nil {
			return fmt.Errorf("counting cards: %w", err)
		}
		offset := int64(pageNumber-1) * int64(pageSize)
		if offset >= total {
			return nil
		}
		items, err = r.ListCards(int64(pageSize), offset)
		if err != nil {
			return fmt.Errorf("listing cards: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newPage(items, pageNumber, pageSize, total), nil
}

// Search returns cards whose field contains query as a case-sensitive
// substring. An empty query matches nothing.
func (s *Service) Search(field SearchField, query string, pageNumber, pageSize int) (*Page, error) {
	if err := checkPage(pageNumber, pageSize); err != nil {
		return nil, err
	}
	field, err := ParseSearchField(string(field))
	if err != nil {
		return nil, err
	}
	if query == "" {
		return newPage(nil, pageNumber, pageSize, 0), nil
	}

	var (
		total int64
		items []*card.Card
	)
	err = s.database.View(func(r Reader) error {
		var err error
		total, err = r.CountMatches(field, query)
		if err != nil {
			return fmt.Errorf("counting matches: %w", err)
		}
		offset := int64(pageNumber-1) * int64(pageSize)
		if offset >= total {
			return nil
		}
		items, err = r.SearchCards(field, query, int64(pageSize), offset)
		if err != nil {
			return fmt.Errorf("searching cards: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newPage(items, pageNumber, pageSize, total), nil
}
