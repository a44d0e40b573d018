package dbbadger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
	"github.com/heirvault/heirvault-daemon/internal/core/ports"
	"github.com/heirvault/heirvault-daemon/pkg/slip39"
)

var ctx = context.Background()

func newTestRepoManager(t *testing.T) ports.RepoManager {
	t.Helper()
	repoManager, err := NewRepoManager(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)
	return repoManager
}

func TestAccountRepository(t *testing.T) {
	repo := newTestRepoManager(t).AccountRepository()

	account, err := domain.NewAccount("savings", 0)
	require.NoError(t, err)
	require.NoError(t, repo.AddAccount(ctx, account))

	found, err := repo.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.Name, found.Name)

	_, err = repo.GetAccountByID(ctx, "unknown")
	assert.Equal(t, domain.ErrAccountNotFound, err)

	err = repo.UpdateAccount(
		ctx, account.ID, func(a *domain.Account) (*domain.Account, error) {
			return a, a.AddDerivedAddress(domain.DerivedAddress{
				Index: 0, Address: "bcrt1p...0",
			})
		},
	)
	require.NoError(t, err)

	found, err = repo.GetAccountByAddress(ctx, "bcrt1p...0")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	all, err := repo.GetAllAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].DerivedAddresses, 1)
}

func TestVaultRepository(t *testing.T) {
	repo := newTestRepoManager(t).VaultRepository()

	_, err := repo.GetVault(ctx)
	assert.Equal(t, domain.ErrVaultNotFound, err)

	mnemonic := newTestMnemonic(t)
	vault, err := repo.GetOrCreateVault(ctx, mnemonic, "password")
	require.NoError(t, err)
	require.NotNil(t, vault)

	// second call returns the stored vault, ignoring the arguments
	again, err := repo.GetOrCreateVault(ctx, mnemonic, "other password")
	require.NoError(t, err)
	assert.Equal(t, vault.EncryptedMnemonic, again.EncryptedMnemonic)

	err = repo.UpdateVault(ctx, func(v *domain.Vault) (*domain.Vault, error) {
		if err := v.ChangePassphrase("password", "new password"); err != nil {
			return nil, err
		}
		return v, nil
	})
	require.NoError(t, err)

	stored, err := repo.GetVault(ctx)
	require.NoError(t, err)
	revealed, err := stored.RevealMnemonic("new password")
	require.NoError(t, err)
	assert.Equal(t, mnemonic, revealed)
}

func TestRunTransaction(t *testing.T) {
	repoManager := newTestRepoManager(t)

	account, err := domain.NewAccount("savings", 0)
	require.NoError(t, err)

	// a failing handler discards every write made inside the transaction
	_, err = repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			if err := repoManager.AccountRepository().AddAccount(ctx, account); err != nil {
				return nil, err
			}
			return nil, domain.ErrFundingClosed
		},
	)
	assert.Equal(t, domain.ErrFundingClosed, err)

	_, err = repoManager.AccountRepository().GetAccountByID(ctx, account.ID)
	assert.Equal(t, domain.ErrAccountNotFound, err)

	// a successful handler commits atomically
	_, err = repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			return nil, repoManager.AccountRepository().AddAccount(ctx, account)
		},
	)
	require.NoError(t, err)

	found, err := repoManager.AccountRepository().GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.Name, found.Name)
}

func newTestMnemonic(t *testing.T) string {
	t.Helper()
	mnemonic, err := slip39.GenerateMnemonic(slip39.GenerateMnemonicOpts{
		MasterSecret: []byte("0123456789abcdef"),
	})
	require.NoError(t, err)
	return mnemonic
}
