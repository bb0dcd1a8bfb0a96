package card

import (
	"fmt"
	"time"

	"mcard-go/internal/hashing"
)

// Builder constructs cards with a shared hash service, clock and region.
type Builder struct {
	hasher    *hashing.Service
	now       func() time.Time
	region    string
	algorithm hashing.Algorithm
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the time source used for gTime stamps.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithRegion sets the region code stamped into gTime.
func WithRegion(region string) Option {
	return func(b *Builder) { b.region = region }
}

// WithDefaultAlgorithm sets the algorithm used by New.
func WithDefaultAlgorithm(algo hashing.Algorithm) Option {
	return func(b *Builder) { b.algorithm = algo }
}

// NewBuilder returns a Builder using hasher for digests.
func NewBuilder(hasher *hashing.Service, opts ...Option) *Builder {
	b := &Builder{
		hasher:    hasher,
		now:       time.Now,
		region:    DefaultRegion,
		algorithm: hashing.Default,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Hasher returns the hash service used by the builder.
func (b *Builder) Hasher() *hashing.Service {
	return b.hasher
}

// DefaultAlgorithm returns the algorithm used by New.
func (b *Builder) DefaultAlgorithm() hashing.Algorithm {
	return b.algorithm
}

// New builds a card addressed under the default algorithm.
func (b *Builder) New(content Content) (*Card, error) {
	return b.NewWithAlgorithm(content, b.algorithm)
}

// NewWithAlgorithm builds a card addressed under algo.
func (b *Builder) NewWithAlgorithm(content Content, algo hashing.Algorithm) (*Card, error) {
	if content.Len() == 0 {
		return nil, ErrEmptyContent
	}
	digest, err := b.hasher.Compute(content.data, algo)
	if err != nil {
		return nil, fmt.Errorf("building card: %w", err)
	}
	return &Card{
		content:   content.data,
		algorithm: algo,
		digest:    digest,
		gTime:     FormatGTime(algo, b.now(), b.region),
	}, nil
}
