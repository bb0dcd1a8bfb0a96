package testutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the SHA-256 digest of data as a lowercase hex string.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ConstantStrategy is a hash strategy that gives every payload the same
// digest. Registering it forces collisions.
type ConstantStrategy string

func (s ConstantStrategy) Digest([]byte) string { return string(s) }

// PrefixStrategy digests a payload by its first N bytes only, so payloads
// sharing a prefix collide.
type PrefixStrategy int

func (n PrefixStrategy) Digest(data []byte) string {
	if len(data) > int(n) {
		data = data[:n]
	}
	return "prefix-" + hex.EncodeToString(data)
}
