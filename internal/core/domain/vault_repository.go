package domain

import "context"

// VaultRepository is the persistence boundary for the encrypted backup
// mnemonic.
type VaultRepository interface {
	GetOrCreateVault(ctx context.Context, mnemonic, passphrase string) (*Vault, error)
	GetVault(ctx context.Context) (*Vault, error)
	UpdateVault(
		ctx context.Context,
		updateFn func(v *Vault) (*Vault, error),
	) error
}
