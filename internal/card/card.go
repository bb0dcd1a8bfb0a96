// Package card defines the immutable content entity stored by mcard.
//
// A Card holds a payload, the algorithm used to address it, the resulting
// digest and a gTime stamp of the form "{algorithm}|{timestamp}|{region}".
// The content type is sniffed on first access and cached.
package card

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"mcard-go/internal/hashing"
)

var (
	// ErrEmptyContent is returned when a card is built from an empty payload.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEncoding is returned when a text view is requested for bytes that
	// are not valid UTF-8.
	ErrEncoding = errors.New("content is not valid UTF-8")
)

// DefaultRegion is the region code stamped into gTime when none is configured.
const DefaultRegion = "UTC"

const gTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Card is an immutable content entity.
type Card struct {
	content   []byte
	algorithm hashing.Algorithm
	digest    string
	gTime     string

	typeOnce    sync.Once
	contentType string
}

// Digest returns the hex digest that identifies the card.
func (c *Card) Digest() string {
	return c.digest
}

// Algorithm returns the hash algorithm used to compute the digest.
func (c *Card) Algorithm() hashing.Algorithm {
	return c.algorithm
}

// GTime returns the composite timestamp assigned at construction.
func (c *Card) GTime() string {
	return c.gTime
}

// Size returns the payload size in bytes.
func (c *Card) Size() int {
	return len(c.content)
}

// Bytes returns a copy of the payload.
func (c *Card) Bytes() []byte {
	out := make([]byte, len(c.content))
	copy(out, c.content)
	return out
}

// Text returns the payload as a string.
func (c *Card) Text() (string, error) {
	if !utf8.Valid(c.content) {
		return "", fmt.Errorf("card %s: %w", c.digest, ErrEncoding)
	}
	return string(c.content), nil
}

// ContentType returns the detected media type of the payload.
func (c *Card) ContentType() string {
	c.typeOnce.Do(func() {
		if c.contentType == "" {
			c.contentType = DetectContentType(c.content)
		}
	})
	return c.contentType
}

// SameContent reports whether both cards carry byte-identical payloads.
func (c *Card) SameContent(other *Card) bool {
	return other != nil && string(c.content) == string(other.content)
}

// Rehash returns a copy of the card addressed under algo. The timestamp and
// region of the gTime are kept; only its algorithm prefix changes.
func (c *Card) Rehash(hasher *hashing.Service, algo hashing.Algorithm) (*Card, error) {
	digest, err := hasher.Compute(c.content, algo)
	if err != nil {
		return nil, fmt.Errorf("rehashing card %s: %w", c.digest, err)
	}
	_, rest, _ := strings.Cut(c.gTime, "|")
	return &Card{
		content:     c.content,
		algorithm:   algo,
		digest:      digest,
		gTime:       string(algo) + "|" + rest,
		contentType: c.ContentType(),
	}, nil
}

// Restore rebuilds a card from stored fields without recomputing the
// digest. An empty contentType is detected on first access.
func Restore(content []byte, algo hashing.Algorithm, digest, gTime, contentType string) *Card {
	return &Card{
		content:     content,
		algorithm:   algo,
		digest:      digest,
		gTime:       gTime,
		contentType: contentType,
	}
}

// GTime is the parsed form of a gTime stamp.
type GTime struct {
	Algorithm hashing.Algorithm
	Time      time.Time
	Region    string
}

// ParseGTime splits a gTime stamp into its parts.
func ParseGTime(s string) (GTime, error) {
	parts := strings.SplitN(s, "|", 3)
	if len(parts) != 3 {
		return GTime{}, fmt.Errorf("malformed gTime %q", s)
	}
	algo, err := hashing.ParseAlgorithm(parts[0])
	if err != nil {
		return GTime{}, fmt.Errorf("parsing gTime %q: %w", s, err)
	}
	ts, err := time.Parse(gTimeLayout, parts[1])
	if err != nil {
		return GTime{}, fmt.Errorf("parsing gTime %q: %w", s, err)
	}
	return GTime{Algorithm: algo, Time: ts, Region: parts[2]}, nil
}

// FormatGTime renders a gTime stamp.
func FormatGTime(algo hashing.Algorithm, t time.Time, region string) string {
	return string(algo) + "|" + t.UTC().Format(gTimeLayout) + "|" + region
}
