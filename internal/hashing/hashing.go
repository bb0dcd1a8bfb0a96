// Package hashing computes content digests and ranks hash algorithms by
// strength so that digest collisions can be resolved by upgrading to a
// stronger algorithm.
package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
)

var (
	// ErrInvalidHashAlgorithm is returned for an algorithm identifier that is
	// not part of the closed set.
	ErrInvalidHashAlgorithm = errors.New("invalid hash algorithm")

	// ErrUnsupportedAlgorithm is returned when no stronger algorithm exists.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
)

// Algorithm identifies a hash algorithm. The string form is used in gTime
// stamps and in the database.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA224 Algorithm = "sha224"
	SHA256 Algorithm = "sha256"
	SHA384 Algorithm = "sha384"
	SHA512 Algorithm = "sha512"
	Custom Algorithm = "custom"

	Default = SHA256
)

// ladder lists every algorithm in ascending strength.
var ladder = []Algorithm{MD5, SHA1, SHA224, SHA256, SHA384, SHA512, Custom}

var strengths = map[Algorithm]int{
	MD5:    1,
	SHA1:   1,
	SHA224: 2,
	SHA256: 3,
	SHA384: 4,
	SHA512: 5,
	Custom: 6,
}

// Algorithms returns all known algorithms in ascending strength.
func Algorithms() []Algorithm {
	out := make([]Algorithm, len(ladder))
	copy(out, ladder)
	return out
}

// ParseAlgorithm converts a name such as "SHA256" or "sha-256" to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "-", "")
	a := Algorithm(n)
	if _, ok := strengths[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidHashAlgorithm, name)
	}
	return a, nil
}

// Valid reports whether a is part of the closed algorithm set.
func (a Algorithm) Valid() bool {
	_, ok := strengths[a]
	return ok
}

func (a Algorithm) String() string {
	return string(a)
}

// Strategy produces a hex digest for a byte buffer.
type Strategy interface {
	Digest(data []byte) string
}

// HashFunc adapts a hash.Hash constructor to a Strategy.
type HashFunc func() hash.Hash

// Digest implements Strategy.
func (f HashFunc) Digest(data []byte) string {
	h := f()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Service computes digests using one Strategy per algorithm.
type Service struct {
	mu         sync.RWMutex
	strategies map[Algorithm]Strategy
}

// NewService returns a Service with the standard library digests registered
// and BLAKE3-256 registered under Custom.
func NewService() *Service {
	return &Service{
		strategies: map[Algorithm]Strategy{
			MD5:    HashFunc(md5.New),
			SHA1:   HashFunc(sha1.New),
			SHA224: HashFunc(sha256.New224),
			SHA256: HashFunc(sha256.New),
			SHA384: HashFunc(sha512.New384),
			SHA512: HashFunc(sha512.New),
			Custom: HashFunc(func() hash.Hash { return blake3.New() }),
		},
	}
}

// Register replaces the strategy used for algo.
func (s *Service) Register(algo Algorithm, strategy Strategy) error {
	if !algo.Valid() {
		return fmt.Errorf("registering strategy: %w: %q", ErrInvalidHashAlgorithm, algo)
	}
	if strategy == nil {
		return fmt.Errorf("registering strategy for %s: strategy is nil", algo)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[algo] = strategy
	return nil
}

// Compute returns the hex digest of data under algo.
func (s *Service) Compute(data []byte, algo Algorithm) (string, error) {
	s.mu.RLock()
	strategy, ok := s.strategies[algo]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidHashAlgorithm, algo)
	}
	return strategy.Digest(data), nil
}

// StrengthOf returns the strength rank of algo.
func StrengthOf(algo Algorithm) (int, error) {
	s, ok := strengths[algo]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHashAlgorithm, algo)
	}
	return s, nil
}

// NextStronger returns the weakest algorithm that is strictly stronger than algo.
func NextStronger(algo Algorithm) (Algorithm, error) {
	current, err := StrengthOf(algo)
	if err != nil {
		return "", err
	}
	for _, a := range ladder {
		if strengths[a] > current {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: no algorithm stronger than %s", ErrUnsupportedAlgorithm, algo)
}

// StrengthOf returns the strength rank of algo.
func (s *Service) StrengthOf(algo Algorithm) (int, error) {
	return StrengthOf(algo)
}

// NextStronger returns the weakest algorithm that is strictly stronger than algo.
func (s *Service) NextStronger(algo Algorithm) (Algorithm, error) {
	return NextStronger(algo)
}
