package dbbadger

import (
	"context"

	"github.com/timshannon/badgerhold/v4"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
)

const vaultKey = "vault"

type vaultRepositoryImpl struct {
	store *badgerhold.Store
}

func newVaultRepositoryImpl(store *badgerhold.Store) domain.VaultRepository {
	return vaultRepositoryImpl{store: store}
}

func (r vaultRepositoryImpl) GetOrCreateVault(
	ctx context.Context, mnemonic, passphrase string,
) (*domain.Vault, error) {
	vault, err := r.GetVault(ctx)
	if err == nil {
		return vault, nil
	}
	if err != domain.ErrVaultNotFound {
		return nil, err
	}

	vault, err = domain.NewVault(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}

	if tx := txFromContext(ctx); tx != nil {
		err = r.store.TxInsert(tx, vaultKey, *vault)
	} else {
		err = r.store.Insert(vaultKey, *vault)
	}
	if err != nil && err != badgerhold.ErrKeyExists {
		return nil, err
	}
	return vault, nil
}

func (r vaultRepositoryImpl) GetVault(ctx context.Context) (*domain.Vault, error) {
	var vault domain.Vault
	var err error
	if tx := txFromContext(ctx); tx != nil {
		err = r.store.TxGet(tx, vaultKey, &vault)
	} else {
		err = r.store.Get(vaultKey, &vault)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrVaultNotFound
		}
		return nil, err
	}
	return &vault, nil
}

func (r vaultRepositoryImpl) UpdateVault(
	ctx context.Context,
	updateFn func(v *domain.Vault) (*domain.Vault, error),
) error {
	vault, err := r.GetVault(ctx)
	if err != nil {
		return err
	}

	updated, err := updateFn(vault)
	if err != nil {
		return err
	}

	if tx := txFromContext(ctx); tx != nil {
		return r.store.TxUpdate(tx, vaultKey, *updated)
	}
	return r.store.Update(vaultKey, *updated)
}
