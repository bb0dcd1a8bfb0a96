package testutil

import (
	"mcard-go/internal/encryption"
	"mcard-go/internal/mcard"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() mcard.Encryptor {
	return encryption.NewTestEncryptor()
}
