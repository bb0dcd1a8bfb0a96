package testutil

import (
	"mcard-go/internal/mcard"
	"mcard-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() mcard.Vault {
	return vault.NewMemoryVault("test-vault")
}
