package inmemory

import (
	"context"
	"sync"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
)

type vaultRepositoryImpl struct {
	vault *domain.Vault
	lock  *sync.RWMutex
}

func newVaultRepositoryImpl() domain.VaultRepository {
	return &vaultRepositoryImpl{lock: &sync.RWMutex{}}
}

func (r *vaultRepositoryImpl) GetOrCreateVault(
	ctx context.Context, mnemonic, passphrase string,
) (*domain.Vault, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.vault != nil {
		vault := *r.vault
		return &vault, nil
	}

	vault, err := domain.NewVault(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	r.vault = vault

	clone := *vault
	return &clone, nil
}

func (r *vaultRepositoryImpl) GetVault(ctx context.Context) (*domain.Vault, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.vault == nil {
		return nil, domain.ErrVaultNotFound
	}
	vault := *r.vault
	return &vault, nil
}

func (r *vaultRepositoryImpl) UpdateVault(
	ctx context.Context,
	updateFn func(v *domain.Vault) (*domain.Vault, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.vault == nil {
		return domain.ErrVaultNotFound
	}

	vault := *r.vault
	updated, err := updateFn(&vault)
	if err != nil {
		return err
	}

	r.vault = updated
	return nil
}
