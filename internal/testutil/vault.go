package testutil

import (
	"testing"

	"filippo.io/age"

	"riverbank/internal/encryption"
	"riverbank/internal/vault"
)

// NewTestVault creates an in-memory snapshot vault.
func NewTestVault(t *testing.T) *vault.MemoryVault {
	t.Helper()
	return vault.NewMemoryVault("test")
}

// NewTestSealer returns an age sealer and the matching opener backed by a
// freshly generated identity, skipping passphrase-protected key files.
func NewTestSealer(t *testing.T) (*encryption.AgeSealer, *encryption.Opener) {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generating identity: %v", err)
	}
	return encryption.NewAgeSealer(id.Recipient()), encryption.NewOpener(id)
}
